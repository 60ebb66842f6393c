package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	tc := cfg.Transcribe
	if tc.Model != "nova-2" || tc.Encoding != "mulaw" || tc.SampleRate != 8000 || tc.Channels != 1 {
		t.Errorf("transcribe defaults = %+v", tc)
	}
	if tc.EndpointingMS != 300 {
		t.Errorf("EndpointingMS = %d", tc.EndpointingMS)
	}
	if cfg.LLMProvider != "openai" || cfg.TTSProvider != "openai" {
		t.Errorf("providers = %q/%q", cfg.LLMProvider, cfg.TTSProvider)
	}
	if cfg.LLMTimeoutMS != 30000 || cfg.TTSTimeoutMS != 10000 {
		t.Errorf("timeouts = %d/%d", cfg.LLMTimeoutMS, cfg.TTSTimeoutMS)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "Anthropic")
	t.Setenv("DEEPGRAM_SAMPLE_RATE", "16000")
	t.Setenv("DEEPGRAM_ENDPOINTING_MS", "bogus")

	cfg := FromEnv()
	if cfg.LLMProvider != "anthropic" {
		t.Errorf("LLMProvider = %q, want lowercased override", cfg.LLMProvider)
	}
	if cfg.Transcribe.SampleRate != 16000 {
		t.Errorf("SampleRate = %d", cfg.Transcribe.SampleRate)
	}
	if cfg.Transcribe.EndpointingMS != 300 {
		t.Errorf("EndpointingMS = %d, want default for unparseable value", cfg.Transcribe.EndpointingMS)
	}
}

func TestLoadDotenv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := `# comment
FOO_A=plain
FOO_B="quoted value"
FOO_C='single quoted'
export FOO_D=exported
FOO_EXISTING=from-file
not-a-pair
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FOO_EXISTING", "from-env")
	for _, k := range []string{"FOO_A", "FOO_B", "FOO_C", "FOO_D"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	if err := LoadDotenv(path); err != nil {
		t.Fatalf("LoadDotenv: %v", err)
	}

	cases := map[string]string{
		"FOO_A":        "plain",
		"FOO_B":        "quoted value",
		"FOO_C":        "single quoted",
		"FOO_D":        "exported",
		"FOO_EXISTING": "from-env",
	}
	for k, want := range cases {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestLoadDotenvMissingFile(t *testing.T) {
	if err := LoadDotenv(filepath.Join(t.TempDir(), "nope.env")); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
}
