// Package cmd implements the atsctl admin commands.
package cmd

import (
	"log/slog"

	"github.com/garnizeh/ats/internal/config"
	"github.com/garnizeh/ats/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const appName = "atsctl"

var (
	// Used for flags.
	cfgFile string
	debug   bool
	jsonLog bool

	cfg *config.Config
	lg  *slog.Logger

	rootCmd = &cobra.Command{
		Use:           appName,
		Short:         "atsctl administers the applicant tracking service database and scoring model",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == versionCmd.Name() {
				return nil
			}
			return initConfig()
		},
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config YAML file (default: ATS_* environment only)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&jsonLog, "json", "j", false, "json format for logging")
}

func initConfig() error {
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	c, err := config.LoadConfig(cfgFile)
	if err != nil {
		return err
	}
	if debug {
		c.Log.Level = "debug"
	}
	if jsonLog {
		c.Log.Format = "json"
	}
	cfg = c
	lg = logger.New(cfg.Log)
	return nil
}
