package embeddings

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
)

// ToChromemFunc adapts e to chromem, which embeds one text per call.
func ToChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		results, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(results) != 1 {
			return nil, fmt.Errorf("%s returned %d embeddings for one text", e.Name(), len(results))
		}
		if len(results[0]) == 0 {
			return nil, fmt.Errorf("%s returned an empty embedding", e.Name())
		}
		return results[0], nil
	}
}
