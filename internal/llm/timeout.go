package llm

import (
	"context"
	"time"
)

// WithTimeout bounds every Generate call on g to d. A non-positive d
// returns g unchanged.
func WithTimeout(g Generator, d time.Duration) Generator {
	if d <= 0 {
		return g
	}
	return GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return g.Generate(ctx, prompt)
	})
}
