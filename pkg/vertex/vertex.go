// Package vertex is the Vertex AI scoring backend.
package vertex

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"go.uber.org/zap"
)

const defaultModel = "gemini-1.5-flash"

// contentGenerator is satisfied by *genai.GenerativeModel.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Generator sends scoring prompts to a Vertex AI Gemini model.
type Generator struct {
	client *genai.Client
	model  contentGenerator
	name   string
	logger *zap.Logger
}

// NewGenerator creates a Vertex AI client for project and location. The model
// is tuned for consistent scoring and asked for JSON output.
func NewGenerator(ctx context.Context, project, location, model string, logger *zap.Logger) (*Generator, error) {
	if strings.TrimSpace(project) == "" {
		return nil, errors.New("vertex project is required")
	}
	if location = strings.TrimSpace(location); location == "" {
		location = "us-central1"
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, project, location)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
	}

	m := client.GenerativeModel(model)
	m.SetTemperature(0.2)
	m.SetTopK(40)
	m.SetTopP(0.95)
	m.SetMaxOutputTokens(2048)
	m.ResponseMIMEType = "application/json"

	g := newGenerator(m, model, logger)
	g.client = client
	g.logger.Info("vertex generator created", zap.String("project", project), zap.String("location", location))
	return g, nil
}

func newGenerator(m contentGenerator, name string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{model: m, name: name, logger: logger.With(zap.String("provider", "vertex"), zap.String("model", name))}
}

func (g *Generator) Model() string { return g.name }

// Complete returns the text parts of the first candidate.
func (g *Generator) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		g.logger.Error("vertex request failed", zap.Error(err))
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no response candidates returned")
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", errors.New("vertex returned empty response")
	}
	return b.String(), nil
}

// Close closes the Vertex AI client.
func (g *Generator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
