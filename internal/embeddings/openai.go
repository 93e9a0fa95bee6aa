package embeddings

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const openAIBatchSize = 100

// OpenAIModel represents a supported OpenAI embedding model.
type OpenAIModel string

const (
	ModelTextEmbedding3Small OpenAIModel = "text-embedding-3-small"
	ModelTextEmbedding3Large OpenAIModel = "text-embedding-3-large"
)

// OpenAIEmbedder generates embeddings using OpenAI's API.
type OpenAIEmbedder struct {
	client *openai.Client
	model  OpenAIModel
}

// NewOpenAIEmbedder creates a new OpenAI embedder with the given API key and model.
func NewOpenAIEmbedder(apiKey string, model OpenAIModel) *OpenAIEmbedder {
	if model == "" {
		model = ModelTextEmbedding3Small
	}
	return &OpenAIEmbedder{client: openai.NewClient(apiKey), model: model}
}

func (e *OpenAIEmbedder) Name() string {
	return string(e.model)
}

func (e *OpenAIEmbedder) Dimensions() int {
	if e.model == ModelTextEmbedding3Large {
		return 3072
	}
	return 1536
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(prepare(texts), openAIBatchSize) {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: batch,
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedding request failed: %w", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("openai returned %d embeddings, expected %d", len(resp.Data), len(batch))
		}
		// Data is documented to follow input order but carries its own index.
		vecs := make([][]float32, len(batch))
		for _, emb := range resp.Data {
			if emb.Index < 0 || emb.Index >= len(batch) || vecs[emb.Index] != nil {
				return nil, fmt.Errorf("openai returned embedding with unexpected index %d", emb.Index)
			}
			vecs[emb.Index] = emb.Embedding
		}
		out = append(out, vecs...)
	}
	return out, nil
}
