// Package tts synthesizes speech and converts it to the transport's native
// audio format.
package tts

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/voice-diary-lab/internal/config"
)

// Provider synthesizes text into audio ready for the telephony transport:
// 8kHz mono mu-law bytes.
type Provider interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Name() string
}

// FromConfig constructs the configured TTS provider. The HTTP client carries
// the per-turn synthesis timeout.
func FromConfig(cfg config.Config) (Provider, error) {
	httpClient := &http.Client{Timeout: time.Duration(cfg.TTSTimeoutMS) * time.Millisecond}

	switch cfg.TTSProvider {
	case "openai":
		return NewOpenAI(cfg.OpenAIAPIKey, cfg.TTSModel, cfg.TTSVoice, httpClient), nil
	case "elevenlabs":
		return NewElevenLabs(cfg.ElevenLabsAPIKey, cfg.TTSModel, cfg.TTSVoice, httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported TTS_PROVIDER %q", cfg.TTSProvider)
	}
}
