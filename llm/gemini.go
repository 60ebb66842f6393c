package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiClient generates completions with the Gemini API via the official
// genai SDK.
type GeminiClient struct {
	Model  string
	client *genai.Client
}

// NewGemini creates a Gemini-backed client.
func NewGemini(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiClient{Model: model, client: client}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if opts.Temperature > 0 {
		cfg.Temperature = genai.Ptr(float32(opts.Temperature))
	}
	if opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(opts.MaxTokens)
	}

	// Gemini takes the system prompt separately and names the assistant role
	// "model".
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			cfg.SystemInstruction = genai.NewContentFromText(m.Content, genai.RoleUser)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("%w: gemini: %v", ErrTransient, err)
	}
	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: gemini returned no text", ErrTransient)
	}
	return text, nil
}
