// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Transcribe holds the streaming transcription connection parameters. These
// map one-to-one onto the recognizer's WebSocket query parameters.
type Transcribe struct {
	APIKey        string
	Model         string
	Language      string
	Encoding      string
	SampleRate    int
	Channels      int
	EndpointingMS int
}

// Config is the full process configuration. All fields come from the
// environment; see FromEnv for variable names and defaults.
type Config struct {
	ListenAddr string

	Transcribe Transcribe

	// LLM provider selection: openai, anthropic, openrouter, gemini. The
	// optional fallback provider is retried once on transient failures.
	LLMProvider         string
	LLMFallbackProvider string

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	AnthropicAPIKey   string
	AnthropicModel    string
	OpenRouterAPIKey  string
	OpenRouterModel   string
	OpenRouterSiteURL string
	OpenRouterAppName string
	GeminiAPIKey      string
	GeminiModel       string

	// TTS provider selection: openai, elevenlabs.
	TTSProvider      string
	TTSVoice         string
	TTSModel         string
	ElevenLabsAPIKey string

	// Per-turn bounds. The reference behavior had none; these cap how long a
	// single generation or synthesis call may stall the conversation.
	LLMTimeoutMS int
	TTSTimeoutMS int

	// Postgres DSN for the journal store. Empty disables persistence.
	DatabaseDSN string
}

// FromEnv builds a Config from environment variables, applying defaults
// suitable for a Twilio-style mulaw 8kHz media stream.
func FromEnv() Config {
	return Config{
		ListenAddr: getenv("LISTEN_ADDR", ":8080"),

		Transcribe: Transcribe{
			APIKey:        os.Getenv("DEEPGRAM_API_KEY"),
			Model:         getenv("DEEPGRAM_MODEL", "nova-2"),
			Language:      getenv("DEEPGRAM_LANGUAGE", "en"),
			Encoding:      getenv("DEEPGRAM_ENCODING", "mulaw"),
			SampleRate:    getint("DEEPGRAM_SAMPLE_RATE", 8000),
			Channels:      getint("DEEPGRAM_CHANNELS", 1),
			EndpointingMS: getint("DEEPGRAM_ENDPOINTING_MS", 300),
		},

		LLMProvider:         strings.ToLower(getenv("LLM_PROVIDER", "openai")),
		LLMFallbackProvider: strings.ToLower(os.Getenv("LLM_FALLBACK_PROVIDER")),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:       getenv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:         getenv("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey:     os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:      getenv("ANTHROPIC_MODEL", "claude-sonnet-4-5"),
		OpenRouterAPIKey:    os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterModel:     getenv("OPENROUTER_MODEL", "openai/gpt-4o-mini"),
		OpenRouterSiteURL:   os.Getenv("OPENROUTER_SITE_URL"),
		OpenRouterAppName:   os.Getenv("OPENROUTER_APP_NAME"),
		GeminiAPIKey:        os.Getenv("GEMINI_API_KEY"),
		GeminiModel:         getenv("GEMINI_MODEL", "gemini-2.0-flash"),

		TTSProvider:      strings.ToLower(getenv("TTS_PROVIDER", "openai")),
		TTSVoice:         getenv("TTS_VOICE", "alloy"),
		TTSModel:         getenv("TTS_MODEL", "tts-1"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),

		LLMTimeoutMS: getint("LLM_TIMEOUT_MS", 30000),
		TTSTimeoutMS: getint("TTS_TIMEOUT_MS", 10000),

		DatabaseDSN: os.Getenv("DATABASE_URL"),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
