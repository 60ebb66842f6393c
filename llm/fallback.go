package llm

import (
	"context"
	"errors"

	"github.com/voice-diary-lab/internal/logging"
)

// fallbackClient tries the primary provider and retries the secondary when
// the primary fails transiently. Permanent failures (bad key, bad request)
// are returned as-is since the secondary request would be built the same way.
type fallbackClient struct {
	primary   Client
	secondary Client
}

// WithFallback wraps primary so transient failures retry once against
// secondary.
func WithFallback(primary, secondary Client) Client {
	return &fallbackClient{primary: primary, secondary: secondary}
}

func (c *fallbackClient) Name() string {
	return c.primary.Name() + "+" + c.secondary.Name()
}

func (c *fallbackClient) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	out, err := c.primary.Generate(ctx, messages, opts)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrTransient) || ctx.Err() != nil {
		return "", err
	}
	logging.Warnw("primary llm failed, trying fallback",
		"primary", c.primary.Name(), "fallback", c.secondary.Name(), "err", err)
	return c.secondary.Generate(ctx, messages, opts)
}
