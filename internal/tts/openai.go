package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// openAIPCMRate is the sample rate of OpenAI's raw PCM speech output.
const openAIPCMRate = 24000

// OpenAIProvider synthesizes speech with the OpenAI speech API.
type OpenAIProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	Voice   string
	HTTP    *http.Client
}

// NewOpenAI creates an OpenAI-backed TTS provider.
func NewOpenAI(apiKey, model, voice string, httpClient *http.Client) *OpenAIProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAIProvider{
		BaseURL: "https://api.openai.com/v1",
		APIKey:  apiKey,
		Model:   model,
		Voice:   voice,
		HTTP:    httpClient,
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload := map[string]string{
		"model": p.Model,
		"voice": p.Voice,
		"input": text,
		// Raw 24kHz 16-bit mono PCM; converted below.
		"response_format": "pcm",
	}
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("openai tts status %d: %s", resp.StatusCode, msg)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio body: %w", err)
	}
	return ResampleToTelephony(pcm, openAIPCMRate), nil
}
