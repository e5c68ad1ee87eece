package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/generativelanguage/v1beta"
	"google.golang.org/api/option"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-flash-latest"

// ErrEmptyResponse is returned when Gemini answers without any text.
var ErrEmptyResponse = errors.New("empty response from model")

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeminiConfig configures a Gemini generator.
type GeminiConfig struct {
	APIKey string
	Model  string

	// Endpoint overrides the API base URL.
	Endpoint string
}

// Gemini calls the generativelanguage generateContent method.
type Gemini struct {
	models *generativelanguage.ModelsService
	model  string
}

var _ Generator = (*Gemini)(nil)

// NewGemini creates a Gemini generator authenticated with an API key.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := generativelanguage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini service: %w", err)
	}

	return &Gemini{models: svc.Models, model: cfg.Model}, nil
}

// Generate sends prompt as a single user turn and returns the first candidate's text.
func (g *Gemini) Generate(ctx context.Context, prompt string) (string, error) {
	req := &generativelanguage.GenerateContentRequest{
		Contents: []*generativelanguage.Content{{
			Role:  "user",
			Parts: []*generativelanguage.Part{{Text: prompt}},
		}},
	}

	resp, err := g.models.GenerateContent(modelName(g.model), req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("generate content with %s: %w", g.model, err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func modelName(model string) string {
	if strings.HasPrefix(model, "models/") {
		return model
	}
	return "models/" + model
}
