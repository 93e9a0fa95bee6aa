package llm

import (
	"fmt"
	"os"
	"time"
)

// Options tune the wrappers NewProvider applies around the base provider.
type Options struct {
	// MaxRPM limits requests per minute; zero disables limiting.
	MaxRPM int
	// RetryAttempts is the total number of tries for transient failures.
	RetryAttempts uint
	// RetryDelay is the initial backoff delay.
	RetryDelay time.Duration
}

// NewProvider creates an LLM provider for the given provider type and model,
// reading credentials from the environment.
// Supported provider types: "openai", "google", "ollama".
func NewProvider(providerType, model string, opts Options) (Provider, error) {
	var p Provider
	switch providerType {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		p = NewOpenAIProvider(apiKey, model, os.Getenv("OPENAI_BASE_URL"))

	case "google":
		apiKey := os.Getenv("GOOGLE_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY environment variable is not set")
		}
		p = NewGoogleProvider(apiKey, model)

	case "ollama":
		host := os.Getenv("OLLAMA_HOST")
		if host == "" {
			host = "http://localhost:11434"
		}
		p = NewOllamaProvider(host, model)

	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}

	if opts.MaxRPM > 0 {
		p = NewRateLimitedProvider(p, opts.MaxRPM)
	}
	if opts.RetryAttempts > 1 {
		p = NewRetryProvider(p, opts.RetryAttempts, opts.RetryDelay)
	}
	return p, nil
}
