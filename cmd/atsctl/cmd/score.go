package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/garnizeh/ats/internal/ai"
	"github.com/garnizeh/ats/internal/app"
	"github.com/garnizeh/ats/internal/extract"
	"github.com/garnizeh/ats/internal/repository/sqlite"
	"github.com/spf13/cobra"
)

const sampleResume = `Jane Doe - Backend Engineer
Seven years building Go services: HTTP APIs, PostgreSQL and SQLite storage,
message queues and CI pipelines. Led a migration from a monolith to small services.`

var (
	scoreResume      string
	scoreTitle       string
	scoreDescription string
)

// healthChecker is implemented by backends that can verify the model is installed.
type healthChecker interface {
	Health(ctx context.Context) error
}

var scoreCheckCmd = &cobra.Command{
	Use:   "score-check",
	Short: "Score one resume with the configured model and print the parsed result",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		text := sampleResume
		if scoreResume != "" {
			var err error
			if text, err = readResume(ctx, scoreResume); err != nil {
				return err
			}
		}

		d, err := app.OpenDB(ctx, cfg, lg)
		if err != nil {
			return err
		}
		defer d.Close()
		repo := sqlite.New(d, lg)

		gen, closeGen, err := app.NewGenerator(ctx, cfg, lg)
		if err != nil {
			return err
		}
		defer closeGen()

		if hc, ok := gen.(healthChecker); ok {
			if err := hc.Health(ctx); err != nil {
				return fmt.Errorf("model %s unavailable: %w", gen.Model(), err)
			}
		}

		engine, err := ai.NewEngine(ctx, gen, cfg.EngineConfig, repo, repo, lg)
		if err != nil {
			return err
		}
		res, err := engine.Score(ctx, ai.ScoringInput{
			JobTitle:       scoreTitle,
			JobDescription: scoreDescription,
			ResumeText:     text,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Model string `json:"model"`
			*ai.Result
		}{Model: engine.Model(), Result: res})
	},
}

// readResume returns the text of a PDF or DOCX file, or the file itself when
// it is neither.
func readResume(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if extract.Detect(data) == extract.FormatUnknown {
		return string(data), nil
	}
	x, err := extract.New(cfg.Extract.UnidocLicenseKey, cfg.Extract.MaxBytes, lg)
	if err != nil {
		return "", err
	}
	return x.Extract(ctx, data)
}

func init() {
	scoreCheckCmd.Flags().StringVarP(&scoreResume, "resume", "r", "", "resume file (PDF, DOCX or plain text); a built-in sample when empty")
	scoreCheckCmd.Flags().StringVar(&scoreTitle, "title", "Backend Engineer", "job title")
	scoreCheckCmd.Flags().StringVar(&scoreDescription, "description", "Build and operate Go services.", "job description")

	rootCmd.AddCommand(scoreCheckCmd)
}
