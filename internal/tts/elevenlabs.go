package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// elevenLabsPCMRate matches the pcm_16000 output format requested below.
const elevenLabsPCMRate = 16000

// ElevenLabsProvider synthesizes speech with the ElevenLabs API.
type ElevenLabsProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	VoiceID string
	HTTP    *http.Client
}

// NewElevenLabs creates an ElevenLabs-backed TTS provider. voiceID selects
// the voice; model is an ElevenLabs model id such as eleven_turbo_v2.
func NewElevenLabs(apiKey, model, voiceID string, httpClient *http.Client) *ElevenLabsProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &ElevenLabsProvider{
		BaseURL: "https://api.elevenlabs.io/v1",
		APIKey:  apiKey,
		Model:   model,
		VoiceID: voiceID,
		HTTP:    httpClient,
	}
}

func (p *ElevenLabsProvider) Name() string { return "elevenlabs" }

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text string) ([]byte, error) {
	payload := map[string]string{
		"text":          text,
		"model_id":      p.Model,
		"output_format": "pcm_16000",
	}
	body, _ := json.Marshal(payload)

	endpoint := p.BaseURL + "/text-to-speech/" + url.PathEscape(p.VoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", p.APIKey)

	resp, err := p.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("elevenlabs status %d: %s", resp.StatusCode, msg)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio body: %w", err)
	}
	return ResampleToTelephony(pcm, elevenLabsPCMRate), nil
}
