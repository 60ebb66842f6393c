package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const anthropicAPIVersion = "2023-06-01"

// AnthropicClient talks to the Anthropic Messages API.
type AnthropicClient struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

// NewAnthropic creates a client for the Anthropic Messages API.
func NewAnthropic(apiKey, model string, httpClient *http.Client) *AnthropicClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AnthropicClient{
		BaseURL: "https://api.anthropic.com",
		APIKey:  apiKey,
		Model:   model,
		HTTP:    httpClient,
	}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (c *AnthropicClient) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	// The Messages API takes the system prompt as a top-level field.
	var system string
	filtered := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		filtered = append(filtered, m)
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	payload := anthropicRequest{
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: opts.Temperature,
		System:      system,
		Messages:    filtered,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.APIKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyStatus("anthropic", resp.StatusCode)
	}

	var out anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrTransient, err)
	}
	for _, block := range out.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("%w: anthropic returned no text content", ErrTransient)
}
