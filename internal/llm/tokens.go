package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts prompt tokens with a tiktoken encoding, falling back
// to a character estimate when the encoding cannot be loaded.
type TokenCounter struct {
	encoding string

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenCounter returns a counter for the named encoding (for example
// "cl100k_base"). The encoding is loaded on first use.
func NewTokenCounter(encoding string) *TokenCounter {
	return &TokenCounter{encoding: encoding}
}

// Count returns the number of tokens in text.
func (c *TokenCounter) Count(text string) int {
	if c == nil {
		return EstimateTokens(text)
	}
	c.once.Do(func() {
		if enc, err := tiktoken.GetEncoding(c.encoding); err == nil {
			c.enc = enc
		}
	})
	if c.enc == nil {
		return EstimateTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// EstimateTokens provides a rough token count for text using the
// approximation of 1 token per 4 characters.
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && len(text) > 0 {
		return 1
	}
	return n
}
