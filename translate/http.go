package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Rate limit gate
// ---------------------------------------------------------------------------

// gate holds back every request to one endpoint after a 429, so a rate
// limit hit while translating one language pauses the others too.
type gate struct {
	mu    sync.Mutex
	until time.Time
}

var gates sync.Map // "id|baseURL" -> *gate

func gateFor(prov Provider) *gate {
	g, _ := gates.LoadOrStore(prov.ID+"|"+prov.BaseURL, &gate{})
	return g.(*gate)
}

func (g *gate) hold(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t := time.Now().Add(d); t.After(g.until) {
		g.until = t
	}
}

func (g *gate) wait(ctx context.Context) error {
	g.mu.Lock()
	remaining := time.Until(g.until)
	g.mu.Unlock()
	if remaining <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ---------------------------------------------------------------------------
// Wire formats
// ---------------------------------------------------------------------------

type apiFormat int

const (
	formatOpenAIChat   apiFormat = iota // POST {base}/chat/completions
	formatGeminiNative                  // POST {base}/v1beta/models/{model}:generateContent
	formatAnthropic                     // POST {base}/messages
)

const temperature = 0.3

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	Stream      bool          `json:"stream"`
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature float64 `json:"temperature"`
	} `json:"generationConfig"`
}

// request builds the endpoint, headers and JSON body of one call.
func (f apiFormat) request(prov Provider, system, user string) (string, http.Header, []byte, error) {
	base := strings.TrimRight(prov.BaseURL, "/")
	header := http.Header{}
	header.Set("Content-Type", "application/json")

	var endpoint string
	var payload any
	switch f {
	case formatGeminiNative:
		endpoint = fmt.Sprintf("%s/v1beta/models/%s:generateContent", base, url.PathEscape(prov.Model))
		if prov.APIKey != "" {
			header.Set("x-goog-api-key", prov.APIKey)
		}
		req := geminiRequest{Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: user}}}}}
		req.GenerationConfig.Temperature = temperature
		if system != "" {
			req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
		}
		payload = req
	case formatAnthropic:
		endpoint = base + "/messages"
		if prov.APIKey != "" {
			header.Set("x-api-key", prov.APIKey)
		}
		header.Set("anthropic-version", "2023-06-01")
		payload = anthropicRequest{
			Model:     prov.Model,
			MaxTokens: 8192,
			System:    system,
			Messages:  []chatMessage{{Role: "user", Content: user}},
		}
	default:
		endpoint = base
		if !strings.HasSuffix(endpoint, "/chat/completions") {
			endpoint += "/chat/completions"
		}
		if prov.APIKey != "" {
			header.Set("Authorization", "Bearer "+prov.APIKey)
		}
		payload = chatRequest{
			Model:       prov.Model,
			Messages:    []chatMessage{{Role: "system", Content: system}, {Role: "user", Content: user}},
			Temperature: temperature,
		}
	}
	body, err := json.Marshal(payload)
	return endpoint, header, body, err
}

// apiResponse covers the answer shapes of all three formats.
type apiResponse struct {
	Error   json.RawMessage `json:"error"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// extractResponseText returns the answer text of any known format.
func extractResponseText(body []byte) (string, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}
	if len(resp.Error) > 0 && string(resp.Error) != "null" {
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(resp.Error, &e) == nil && e.Message != "" {
			return "", fmt.Errorf("API error: %s", e.Message)
		}
		return "", fmt.Errorf("API error: %s", resp.Error)
	}

	switch {
	case len(resp.Choices) > 0:
		return resp.Choices[0].Message.Content, nil
	case len(resp.Candidates) > 0 && len(resp.Candidates[0].Content.Parts) > 0:
		var sb strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		return sb.String(), nil
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// parseRetryDelay returns how long to pause after a 429: Retry-After in
// seconds, else Google's RetryInfo detail, else 60s. Five seconds are
// always added.
func parseRetryDelay(body []byte, retryAfter string) time.Duration {
	const margin = 5 * time.Second

	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
		return time.Duration(secs)*time.Second + margin
	}
	var info struct {
		Error struct {
			Details []struct {
				Type       string `json:"@type"`
				RetryDelay string `json:"retryDelay"`
			} `json:"details"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &info) == nil {
		for _, d := range info.Error.Details {
			if !strings.HasSuffix(d.Type, "RetryInfo") || d.RetryDelay == "" {
				continue
			}
			if v, err := time.ParseDuration(d.RetryDelay); err == nil {
				return v + margin
			}
		}
	}
	return time.Minute + margin
}

var fencedAnswer = regexp.MustCompile("(?s)^\\s*```[a-zA-Z-]*[ \\t]*\\n(.*?)\\n?```\\s*$")

// cleanResponse removes a markdown fence wrapped around the whole answer.
func cleanResponse(s string) string {
	if m := fencedAnswer.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// ---------------------------------------------------------------------------
// HTTP translator
// ---------------------------------------------------------------------------

// statusError is a non-200 answer.
type statusError struct {
	code       int
	body       []byte
	retryAfter string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.code, truncate(string(e.body), 500))
}

// answerError is a 200 answer without usable text; it is not retried.
type answerError struct{ error }

func (e *answerError) Unwrap() error { return e.error }

type httpTranslator struct {
	opts   Options
	format apiFormat
	client *http.Client
	gate   *gate
	system string
	// backoff is the first wait after a failed request; it doubles per
	// attempt.
	backoff time.Duration
}

// makeHTTPClient returns a client that goes through proxy, or through the
// HTTP_PROXY/HTTPS_PROXY environment when proxy is empty.
func makeHTTPClient(proxy string, timeout time.Duration) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyFromEnvironment
	if proxy != "" {
		u, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", proxy, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy URL %q: scheme and host are required", proxy)
		}
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

func newHTTP(opts Options, format apiFormat) (*httpTranslator, error) {
	client, err := makeHTTPClient(opts.Provider.Proxy, opts.effectiveTimeout())
	if err != nil {
		return nil, err
	}
	return &httpTranslator{
		opts:    opts,
		format:  format,
		client:  client,
		gate:    gateFor(opts.Provider),
		system:  opts.resolvedPrompt(),
		backoff: time.Second,
	}, nil
}

// Translate sends text as the user message.
func (h *httpTranslator) Translate(ctx context.Context, text string) (string, error) {
	endpoint, header, body, err := h.format.request(h.opts.Provider, h.system, text)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	name := h.opts.Provider.Name
	retries := h.opts.effectiveMaxRetries()
	for attempt := 0; ; attempt++ {
		if err := h.gate.wait(ctx); err != nil {
			return "", err
		}
		h.opts.debug("[DEBUG] %s attempt %d: POST %s", name, attempt+1, endpoint)

		answer, err := h.post(ctx, endpoint, header, body)
		if err == nil {
			return cleanResponse(answer), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var se *statusError
		var ae *answerError
		isStatus := errors.As(err, &se)
		switch {
		case errors.As(err, &ae):
			return "", err
		case isStatus && se.code == http.StatusTooManyRequests:
			if attempt >= retries {
				return "", fmt.Errorf("rate limited after %d retries: %s", retries, truncate(string(se.body), 500))
			}
			delay := parseRetryDelay(se.body, se.retryAfter)
			h.opts.log("[WARN] %s: 429 rate limited, waiting %v before retry (attempt %d/%d)", name, delay, attempt+1, retries)
			h.gate.hold(delay)
		case attempt >= retries, isStatus && se.code < 500:
			return "", err
		default:
			if err := h.sleep(ctx, attempt); err != nil {
				return "", err
			}
		}
	}
}

// post performs one request and extracts the answer text.
func (h *httpTranslator) post(ctx context.Context, endpoint string, header http.Header, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header = header.Clone()

	resp, err := h.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{code: resp.StatusCode, body: data, retryAfter: resp.Header.Get("Retry-After")}
	}
	text, err := extractResponseText(data)
	if err != nil {
		return "", &answerError{err}
	}
	return text, nil
}

// sleep waits backoff * 2^attempt.
func (h *httpTranslator) sleep(ctx context.Context, attempt int) error {
	t := time.NewTimer(h.backoff << attempt)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
