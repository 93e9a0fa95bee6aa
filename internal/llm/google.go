package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const googleAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GoogleProvider implements Provider using the Gemini generateContent API.
type GoogleProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGoogleProvider creates a new Gemini provider.
func NewGoogleProvider(apiKey, model string) *GoogleProvider {
	return &GoogleProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: googleAPIBaseURL,
		client:  &http.Client{},
	}
}

func (p *GoogleProvider) Name() string {
	return "google"
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      *geminiContent `json:"content"`
		FinishReason string         `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

func (p *GoogleProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := req.Model
	if model == "" {
		model = p.model
	}

	apiReq := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxTokens,
		},
	}
	var system []geminiPart
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, geminiPart{Text: msg.Content})
		case RoleAssistant:
			apiReq.Contents = append(apiReq.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: msg.Content}}})
		default:
			apiReq.Contents = append(apiReq.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: msg.Content}}})
		}
	}
	if len(apiReq.Contents) == 0 {
		apiReq.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: ""}}}}
	}
	if len(system) > 0 {
		apiReq.SystemInstruction = &geminiContent{Parts: system}
	}
	if req.JSONMode {
		apiReq.GenerationConfig.ResponseMIMEType = "application/json"
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", p.baseURL, url.PathEscape(model), url.QueryEscape(p.apiKey))
	var apiResp geminiResponse
	if err := postJSON(ctx, p.client, p.Name(), endpoint, apiReq, &apiResp); err != nil {
		return nil, err
	}

	out := &CompletionResponse{Model: model}
	if len(apiResp.Candidates) > 0 {
		c := apiResp.Candidates[0]
		out.FinishReason = c.FinishReason
		if c.Content != nil {
			var sb strings.Builder
			for _, part := range c.Content.Parts {
				sb.WriteString(part.Text)
			}
			out.Content = sb.String()
		}
	}
	if apiResp.UsageMetadata != nil {
		out.InputTokens = apiResp.UsageMetadata.PromptTokenCount
		out.OutputTokens = apiResp.UsageMetadata.CandidatesTokenCount
	}
	return out, nil
}
