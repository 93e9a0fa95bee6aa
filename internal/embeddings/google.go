package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const googleEmbedBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// googleBatchSize is the batchEmbedContents request limit.
const googleBatchSize = 100

// GoogleModel represents a supported Google embedding model.
type GoogleModel string

const (
	ModelGeminiEmbedding001 GoogleModel = "gemini-embedding-001"
	ModelTextEmbedding004   GoogleModel = "text-embedding-004"
)

// GoogleEmbedder generates embeddings using the Gemini batchEmbedContents API.
type GoogleEmbedder struct {
	apiKey     string
	model      GoogleModel
	baseURL    string
	httpClient *http.Client
}

// NewGoogleEmbedder creates a new Google embedder.
func NewGoogleEmbedder(apiKey string, model GoogleModel) *GoogleEmbedder {
	if model == "" {
		model = ModelGeminiEmbedding001
	}
	return &GoogleEmbedder{
		apiKey:     apiKey,
		model:      model,
		baseURL:    googleEmbedBaseURL,
		httpClient: &http.Client{},
	}
}

func (e *GoogleEmbedder) Name() string {
	return string(e.model)
}

func (e *GoogleEmbedder) Dimensions() int {
	if e.model == ModelTextEmbedding004 {
		return 768
	}
	return 3072
}

type googleEmbedRequest struct {
	Model   string `json:"model"`
	Content struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"content"`
}

type googleBatchRequest struct {
	Requests []googleEmbedRequest `json:"requests"`
}

type googleBatchResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

func (e *GoogleEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, batch := range batches(prepare(texts), googleBatchSize) {
		vecs, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *GoogleEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	modelRef := "models/" + string(e.model)
	body := googleBatchRequest{Requests: make([]googleEmbedRequest, len(texts))}
	for i, text := range texts {
		r := &body.Requests[i]
		r.Model = modelRef
		r.Content.Parts = append(r.Content.Parts, struct {
			Text string `json:"text"`
		}{Text: text})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal google embed request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s:batchEmbedContents?key=%s", e.baseURL, url.PathEscape(string(e.model)), url.QueryEscape(e.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create google embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("google embed API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result googleBatchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode google embed response: %w", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("google returned %d embeddings, expected %d", len(result.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}
