package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OpenAIClient talks to an OpenAI-compatible chat completions endpoint. It is
// also the transport for OpenRouter, which speaks the same protocol.
type OpenAIClient struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client

	// ExtraHeaders are added to every request (OpenRouter attribution).
	ExtraHeaders map[string]string

	name string
}

// NewOpenAI creates a client for the OpenAI chat completions API.
func NewOpenAI(baseURL, apiKey, model string, httpClient *http.Client) *OpenAIClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAIClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTP:    httpClient,
		name:    "openai",
	}
}

// NewOpenRouter creates a client for OpenRouter's unified API. siteURL and
// appName are optional attribution headers.
func NewOpenRouter(apiKey, model, siteURL, appName string, httpClient *http.Client) *OpenAIClient {
	c := NewOpenAI("https://openrouter.ai/api/v1", apiKey, model, httpClient)
	c.name = "openrouter"
	headers := map[string]string{}
	if siteURL != "" {
		headers["HTTP-Referer"] = siteURL
	}
	if appName != "" {
		headers["X-Title"] = appName
	}
	c.ExtraHeaders = headers
	return c
}

func (c *OpenAIClient) Name() string { return c.name }

type openAIChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *OpenAIClient) Generate(ctx context.Context, messages []Message, opts Options) (string, error) {
	payload := openAIChatRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	for k, v := range c.ExtraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyStatus(c.name, resp.StatusCode)
	}

	var out openAIChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode error: %v", ErrTransient, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: %s returned no choices", ErrTransient, c.name)
	}
	return out.Choices[0].Message.Content, nil
}
