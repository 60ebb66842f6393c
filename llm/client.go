// Package llm provides chat-completion clients for the text-generation
// providers the assistant can be configured with.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn handed to a provider.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options holds per-request sampling parameters.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Client generates a completion for an ordered list of messages.
type Client interface {
	Generate(ctx context.Context, messages []Message, opts Options) (string, error)
	Name() string
}

// Error classification: transient errors (network, 5xx, 429) may succeed on a
// fresh attempt next turn; permanent errors (other 4xx) will not.
var (
	ErrPermanent = errors.New("permanent error")
	ErrTransient = errors.New("transient error")
)

func classifyStatus(provider string, status int) error {
	if status >= 500 || status == 429 {
		return fmt.Errorf("%w: %s status %d", ErrTransient, provider, status)
	}
	return fmt.Errorf("%w: %s status %d", ErrPermanent, provider, status)
}
