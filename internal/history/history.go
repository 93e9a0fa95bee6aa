// Package history keeps per-user conversation logs for the chat surfaces.
package history

import (
	"context"
	"errors"
	"time"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a conversation.
type Message struct {
	ID        string         `json:"id"`
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"timestamp"`
}

// ErrNoUser is returned when an operation is called without a user id.
var ErrNoUser = errors.New("history: user id is required")

// Store persists conversations. Implementations are safe for concurrent use.
type Store interface {
	// Append adds messages to the end of the user's conversation.
	Append(ctx context.Context, userID string, msgs ...Message) error
	// List returns the user's messages, oldest first.
	List(ctx context.Context, userID string) ([]Message, error)
	// Clear drops the conversation and reports whether one existed.
	Clear(ctx context.Context, userID string) (bool, error)
	// Users returns every user id with a stored conversation, sorted.
	Users(ctx context.Context) ([]string, error)
	Close() error
}

// UserMessage builds a user message stamped with the current time.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, CreatedAt: time.Now().UTC()}
}

// AssistantMessage builds an assistant message stamped with the current time.
func AssistantMessage(content string, metadata map[string]any) Message {
	return Message{Role: RoleAssistant, Content: content, Metadata: metadata, CreatedAt: time.Now().UTC()}
}
