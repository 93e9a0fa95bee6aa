package llm

import (
	"errors"
	"fmt"
	"net/http"
)

// Role represents the role of a message sender in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a single message in a conversation.
type Message struct {
	Role    Role
	Content string
}

// CompletionRequest contains the parameters for an LLM completion request.
type CompletionRequest struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// CompletionResponse contains the result of an LLM completion request.
type CompletionResponse struct {
	Content      string
	InputTokens  int
	OutputTokens int
	Model        string
	FinishReason string
}

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// APIError is a non-2xx answer from a provider's HTTP API.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Transient reports whether the failure is worth retrying: rate limits,
// overload and upstream 5xx.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
