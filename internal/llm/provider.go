package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider defines the interface for LLM providers.
type Provider interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	// Name returns the name of this provider.
	Name() string
}

// Generator is the single text-generation capability the query pipeline
// depends on: a prompt in, raw text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a plain function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ProviderGenerator exposes a Provider as a Generator by sending the
// prompt as a single user message.
type ProviderGenerator struct {
	Provider    Provider
	Model       string
	MaxTokens   int
	Temperature float64
}

// NewGenerator wraps p with deterministic defaults suited to extraction
// and adjudication prompts.
func NewGenerator(p Provider, model string) *ProviderGenerator {
	return &ProviderGenerator{
		Provider:    p,
		Model:       model,
		MaxTokens:   2048,
		Temperature: 0,
	}
}

func (g *ProviderGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.Provider.Complete(ctx, CompletionRequest{
		Model:       g.Model,
		Messages:    []Message{{Role: RoleUser, Content: prompt}},
		MaxTokens:   g.MaxTokens,
		Temperature: g.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", g.Provider.Name(), err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
