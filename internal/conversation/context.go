// Package conversation holds per-call dialogue state and the turn
// synthesizer that drives it.
package conversation

import (
	"strings"
	"sync"
	"time"

	"github.com/voice-diary-lab/llm"
)

// Turn roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single utterance by one party. Turns are append-only: once added
// to a Context they are never mutated or reordered.
type Turn struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// Context is the dialogue state for one call. The first turn is always the
// system guidance turn. A Context is created when the call's media session
// starts and removed from the registry when the call ends.
type Context struct {
	CallID    string
	UserID    string
	StartedAt time.Time

	mu       sync.Mutex
	turns    []Turn
	isEnding bool
}

// NewContext creates a context seeded with the system guidance turn.
func NewContext(callID, systemPrompt string) *Context {
	c := &Context{
		CallID:    callID,
		StartedAt: time.Now().UTC(),
	}
	c.AddTurn(RoleSystem, systemPrompt)
	return c
}

// AddTurn appends one utterance.
func (c *Context) AddTurn(role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, Turn{Role: role, Content: content, Timestamp: time.Now().UTC()})
}

// Turns returns a snapshot of the dialogue so far.
func (c *Context) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

// Len returns the number of turns including the system turn.
func (c *Context) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// SetEnding marks the conversation as wrapping up.
func (c *Context) SetEnding() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isEnding = true
}

// IsEnding reports whether the caller asked to end the conversation.
func (c *Context) IsEnding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isEnding
}

// Messages formats the dialogue for a chat-completion request.
func (c *Context) Messages() []llm.Message {
	turns := c.Turns()
	out := make([]llm.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, llm.Message{Role: t.Role, Content: t.Content})
	}
	return out
}

// Transcript renders the dialogue as plain text, omitting the system turn.
func (c *Context) Transcript() string {
	var lines []string
	for _, t := range c.Turns() {
		if t.Role == RoleSystem {
			continue
		}
		speaker := "User"
		if t.Role == RoleAssistant {
			speaker = "AI"
		}
		lines = append(lines, speaker+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}
