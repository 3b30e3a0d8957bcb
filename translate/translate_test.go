package translate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Response parsing
// ---------------------------------------------------------------------------

func TestExtractResponseText(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"openai", `{"choices":[{"message":{"content":"Bonjour"}}]}`, "Bonjour"},
		{"gemini", `{"candidates":[{"content":{"parts":[{"text":"Bon"},{"text":"jour"}]}}]}`, "Bonjour"},
		{"anthropic", `{"content":[{"type":"thinking","text":"x"},{"type":"text","text":"Bonjour"}]}`, "Bonjour"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := extractResponseText([]byte(tc.body))
			if err != nil {
				t.Fatalf("extractResponseText: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}

	if _, err := extractResponseText([]byte(`{"error":{"message":"bad key"}}`)); err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("API error not surfaced: %v", err)
	}
	if _, err := extractResponseText([]byte(`{"unexpected":1}`)); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestParseRetryDelay(t *testing.T) {
	body := `{"error":{"details":[{"@type":"type.googleapis.com/google.rpc.RetryInfo","retryDelay":"30s"}]}}`
	if got := parseRetryDelay([]byte(body), ""); got != 35*time.Second {
		t.Errorf("RetryInfo delay = %v, want 35s", got)
	}
	if got := parseRetryDelay(nil, "2"); got != 7*time.Second {
		t.Errorf("Retry-After delay = %v, want 7s", got)
	}
	if got := parseRetryDelay([]byte("not json"), ""); got != 65*time.Second {
		t.Errorf("default delay = %v, want 65s", got)
	}
}

func TestCleanResponse(t *testing.T) {
	if got := cleanResponse("```\nBonjour\n[_]\nMonde\n```\n"); got != "Bonjour\n[_]\nMonde" {
		t.Errorf("fenced = %q", got)
	}
	if got := cleanResponse("```text\nBonjour```"); got != "Bonjour" {
		t.Errorf("fenced with language = %q", got)
	}
	if got := cleanResponse("use ``` fences"); got != "use ``` fences" {
		t.Errorf("unfenced text changed: %q", got)
	}
}

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

func TestResolvedPrompt(t *testing.T) {
	o := Options{From: "en", To: "fr", ToName: "French", Joiner: "\n###\n"}
	p := o.resolvedPrompt()
	if !strings.Contains(p, "from en to French") {
		t.Errorf("languages not substituted: %q", p[:200])
	}
	if !strings.Contains(p, "lines consisting of ###") {
		t.Error("joiner not substituted")
	}

	o.SystemPrompt = "{{targetLang}} only"
	if got := o.resolvedPrompt(); got != "French only" {
		t.Errorf("custom prompt = %q", got)
	}
}

func TestNewValidation(t *testing.T) {
	ctx := context.Background()
	provs := DefaultProviders()

	noKey := Options{Provider: provs[ProviderOpenAI]}
	if _, err := New(ctx, noKey); err == nil || !strings.Contains(err.Error(), "API key") {
		t.Errorf("missing key: err = %v", err)
	}

	noModel := Options{Provider: provs[ProviderOllama]}
	if _, err := New(ctx, noModel); err == nil || !strings.Contains(err.Error(), "model") {
		t.Errorf("missing model: err = %v", err)
	}

	ollama := provs[ProviderOllama]
	ollama.Model = "llama3"
	tr, err := New(ctx, Options{Provider: ollama})
	if err != nil {
		t.Fatalf("New(ollama): %v", err)
	}
	if h, ok := tr.(*httpTranslator); !ok || h.format != formatOpenAIChat {
		t.Errorf("ollama translator = %T", tr)
	}

	anth := provs[ProviderAnthropic]
	anth.APIKey = "k"
	tr, err = New(ctx, Options{Provider: anth})
	if err != nil {
		t.Fatalf("New(anthropic): %v", err)
	}
	if h := tr.(*httpTranslator); h.format != formatAnthropic {
		t.Errorf("anthropic format = %v", h.format)
	}

	if _, err := New(ctx, Options{}); err == nil {
		t.Error("expected error without provider")
	}
}

func TestMakeHTTPClientProxy(t *testing.T) {
	c, err := makeHTTPClient("http://proxy.local:3128", 5*time.Second)
	if err != nil {
		t.Fatalf("makeHTTPClient: %v", err)
	}
	if c.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", c.Timeout)
	}
	req := httptest.NewRequest(http.MethodPost, "https://api.example.com/v1", nil)
	u, err := c.Transport.(*http.Transport).Proxy(req)
	if err != nil || u == nil || u.Host != "proxy.local:3128" {
		t.Errorf("Proxy = %v, %v", u, err)
	}

	for _, bad := range []string{"http://[::1", "proxy.local"} {
		if _, err := makeHTTPClient(bad, 0); err == nil || !strings.Contains(err.Error(), "invalid proxy URL") {
			t.Errorf("makeHTTPClient(%q): err = %v", bad, err)
		}
	}

	provs := DefaultProviders()
	for _, id := range []string{ProviderOllama, ProviderGenAI} {
		prov := provs[id]
		prov.Model = "m"
		prov.APIKey = "k"
		prov.Proxy = "http://[::1"
		if _, err := New(context.Background(), Options{Provider: prov}); err == nil {
			t.Errorf("New(%s) accepted a broken proxy", id)
		}
	}
}

func TestProviderIDsSorted(t *testing.T) {
	ids := ProviderIDs()
	if len(ids) != len(DefaultProviders()) {
		t.Fatalf("ProviderIDs = %v", ids)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1] > ids[i] {
			t.Fatalf("not sorted: %v", ids)
		}
	}
}

// ---------------------------------------------------------------------------
// HTTP translator
// ---------------------------------------------------------------------------

func newTestTranslator(t *testing.T, url string, format apiFormat) *httpTranslator {
	t.Helper()
	h, err := newHTTP(Options{
		Provider: Provider{ID: "test-" + t.Name(), Name: "test", BaseURL: url, APIKey: "secret", Model: "m"},
		From:     "en",
		To:       "de",
		ToName:   "German",
	}, format)
	if err != nil {
		t.Fatalf("newHTTP: %v", err)
	}
	h.backoff = time.Millisecond
	return h
}

func TestHTTPTranslatorOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("bad request body: %v", err)
			return
		}
		if req.Model != "m" || len(req.Messages) != 2 {
			t.Errorf("request = %+v", req)
			return
		}
		if !strings.Contains(req.Messages[0].Content, "German") {
			t.Error("system prompt lacks target language")
		}
		if req.Messages[1].Content != "Hello" {
			t.Errorf("user message = %q", req.Messages[1].Content)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"` + "```\\nHallo\\n```" + `"}}]}`))
	}))
	defer srv.Close()

	got, err := newTestTranslator(t, srv.URL, formatOpenAIChat).Translate(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got != "Hallo" {
		t.Errorf("got %q, want fence stripped", got)
	}
}

func TestHTTPTranslatorGeminiEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/m:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "secret" {
			t.Error("missing api key header")
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Hallo"}]}}]}`))
	}))
	defer srv.Close()

	got, err := newTestTranslator(t, srv.URL, formatGeminiNative).Translate(context.Background(), "Hello")
	if err != nil || got != "Hallo" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
}

func TestHTTPTranslatorRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	got, err := newTestTranslator(t, srv.URL, formatOpenAIChat).Translate(context.Background(), "x")
	if err != nil || got != "ok" {
		t.Fatalf("Translate = %q, %v", got, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestHTTPTranslatorClientErrorNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"error":{"message":"invalid model"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestTranslator(t, srv.URL, formatOpenAIChat).Translate(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("err = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestHTTPTranslatorHonorsCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	h := newTestTranslator(t, srv.URL, formatOpenAIChat)
	h.backoff = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := h.Translate(ctx, "x"); err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

// ---------------------------------------------------------------------------
// Cache
// ---------------------------------------------------------------------------

func TestCached(t *testing.T) {
	var calls int
	tr := Cached(Func(func(_ context.Context, s string) (string, error) {
		calls++
		return strings.ToUpper(s), nil
	}), 2)

	ctx := context.Background()
	for _, s := range []string{"a", "b", "a", "a"} {
		if got, _ := tr.Translate(ctx, s); got != strings.ToUpper(s) {
			t.Fatalf("Translate(%q) = %q", s, got)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestCachedSkipsErrors(t *testing.T) {
	var calls int
	tr := Cached(Func(func(context.Context, string) (string, error) {
		calls++
		if calls == 1 {
			return "", io.ErrUnexpectedEOF
		}
		return "ok", nil
	}), 0)

	if _, err := tr.Translate(context.Background(), "x"); err == nil {
		t.Fatal("expected first call to fail")
	}
	if got, err := tr.Translate(context.Background(), "x"); err != nil || got != "ok" {
		t.Fatalf("second call = %q, %v", got, err)
	}
}
