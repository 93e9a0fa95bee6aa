// Package embeddings turns policy text into vectors for the clause index.
package embeddings

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Embedder defines the interface for generating text embeddings.
type Embedder interface {
	// Embed generates embeddings for one or more texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the number of dimensions in the embedding vectors.
	Dimensions() int

	// Name returns the name/identifier of the embedding model.
	Name() string
}

// New builds an embedder for the given provider and model, reading
// credentials from the environment.
func New(provider, model string) (Embedder, error) {
	switch provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set (needed for embeddings)")
		}
		return NewOpenAIEmbedder(apiKey, OpenAIModel(model)), nil
	case "google":
		apiKey := os.Getenv("GOOGLE_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY environment variable is not set (needed for embeddings)")
		}
		return NewGoogleEmbedder(apiKey, GoogleModel(model)), nil
	case "ollama":
		if model == "" {
			model = "nomic-embed-text"
		}
		return NewOllamaEmbedder(model, 768, os.Getenv("OLLAMA_HOST")), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", provider)
	}
}

// batches splits texts into consecutive slices of at most size elements.
func batches(texts []string, size int) [][]string {
	var out [][]string
	for len(texts) > size {
		out = append(out, texts[:size])
		texts = texts[size:]
	}
	if len(texts) > 0 {
		out = append(out, texts)
	}
	return out
}

// blankPlaceholder stands in for inputs that are empty after normalization;
// hosted APIs reject empty strings but each input still needs a vector.
const blankPlaceholder = "(blank)"

// prepare collapses runs of whitespace so line-wrapped policy text embeds
// the same as its reflowed form.
func prepare(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		t = strings.Join(strings.Fields(t), " ")
		if t == "" {
			t = blankPlaceholder
		}
		out[i] = t
	}
	return out
}
