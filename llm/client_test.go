package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{500, ErrTransient},
		{503, ErrTransient},
		{429, ErrTransient},
		{400, ErrPermanent},
		{401, ErrPermanent},
		{404, ErrPermanent},
	}
	for _, c := range cases {
		if err := classifyStatus("test", c.status); !errors.Is(err, c.want) {
			t.Errorf("status %d classified as %v", c.status, err)
		}
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var gotAuth string
	var gotReq openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hi there"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL, "sk-test", "gpt-test", srv.Client())
	out, err := c.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hello"},
	}, Options{Temperature: 0.8, MaxTokens: 150})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "hi there" {
		t.Errorf("out = %q", out)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotReq.Model != "gpt-test" || gotReq.MaxTokens != 150 || len(gotReq.Messages) != 2 {
		t.Errorf("request = %+v", gotReq)
	}
}

func TestOpenAIGenerateErrorClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, ErrTransient},
		{http.StatusUnauthorized, ErrPermanent},
	}
	for _, c := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(c.status)
		}))
		client := NewOpenAI(srv.URL, "k", "m", srv.Client())
		_, err := client.Generate(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Options{})
		if !errors.Is(err, c.want) {
			t.Errorf("status %d: err = %v, want %v", c.status, err, c.want)
		}
		srv.Close()
	}
}

func TestOpenAIGenerateNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAI(srv.URL, "k", "m", srv.Client())
	_, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Options{})
	if !errors.Is(err, ErrTransient) {
		t.Errorf("err = %v, want transient", err)
	}
}

func TestOpenRouterAttributionHeaders(t *testing.T) {
	c := NewOpenRouter("key", "some/model", "https://example.com", "diary", nil)
	if c.Name() != "openrouter" {
		t.Errorf("name = %q", c.Name())
	}
	if c.ExtraHeaders["HTTP-Referer"] != "https://example.com" || c.ExtraHeaders["X-Title"] != "diary" {
		t.Errorf("headers = %v", c.ExtraHeaders)
	}
}

type scriptedClient struct {
	name  string
	reply string
	err   error
	calls int
}

func (s *scriptedClient) Generate(context.Context, []Message, Options) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *scriptedClient) Name() string { return s.name }

func TestWithFallbackRetriesTransient(t *testing.T) {
	primary := &scriptedClient{name: "a", err: classifyStatus("a", 503)}
	secondary := &scriptedClient{name: "b", reply: "from fallback"}

	c := WithFallback(primary, secondary)
	out, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Options{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "from fallback" || secondary.calls != 1 {
		t.Errorf("out = %q, fallback calls = %d", out, secondary.calls)
	}
}

func TestWithFallbackSkipsPermanent(t *testing.T) {
	primary := &scriptedClient{name: "a", err: classifyStatus("a", 401)}
	secondary := &scriptedClient{name: "b", reply: "unused"}

	c := WithFallback(primary, secondary)
	if _, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Options{}); !errors.Is(err, ErrPermanent) {
		t.Fatalf("err = %v, want permanent", err)
	}
	if secondary.calls != 0 {
		t.Errorf("fallback called %d times for a permanent error", secondary.calls)
	}
}

func TestWithFallbackPrefersPrimary(t *testing.T) {
	primary := &scriptedClient{name: "a", reply: "from primary"}
	secondary := &scriptedClient{name: "b", reply: "unused"}

	c := WithFallback(primary, secondary)
	out, err := c.Generate(context.Background(), []Message{{Role: RoleUser, Content: "x"}}, Options{})
	if err != nil || out != "from primary" {
		t.Fatalf("out = %q err = %v", out, err)
	}
	if secondary.calls != 0 {
		t.Errorf("fallback called %d times when primary succeeded", secondary.calls)
	}
}

func TestAnthropicGenerateLiftsSystemPrompt(t *testing.T) {
	var gotReq anthropicRequest
	var gotVersion, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotVersion = r.Header.Get("anthropic-version")
		gotKey = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"sure thing"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropic("ak-test", "claude-test", srv.Client())
	c.BaseURL = srv.URL
	out, err := c.Generate(context.Background(), []Message{
		{Role: RoleSystem, Content: "be warm"},
		{Role: RoleUser, Content: "hello"},
	}, Options{MaxTokens: 0})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "sure thing" {
		t.Errorf("out = %q", out)
	}
	if gotReq.System != "be warm" {
		t.Errorf("system = %q, want lifted system prompt", gotReq.System)
	}
	for _, m := range gotReq.Messages {
		if m.Role == RoleSystem {
			t.Error("system message left in messages array")
		}
	}
	if gotReq.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d, want 1024 default", gotReq.MaxTokens)
	}
	if gotVersion == "" || gotKey != "ak-test" {
		t.Errorf("headers version=%q key=%q", gotVersion, gotKey)
	}
}
