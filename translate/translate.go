// Package translate sends catalog text to machine translation services:
// OpenAI-compatible chat APIs (OpenAI, Groq, Ollama, custom endpoints),
// the Gemini REST API, the Anthropic messages API, and Gemini through the
// Google Gen AI SDK.
package translate

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Translator turns source text into target-language text. Implementations
// are bound to one language pair.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Func adapts a function to the Translator interface.
type Func func(ctx context.Context, text string) (string, error)

// Translate calls f.
func (f Func) Translate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// ---------------------------------------------------------------------------
// Provider IDs
// ---------------------------------------------------------------------------

const (
	ProviderOpenAI       = "openai"
	ProviderGoogle       = "google"
	ProviderGenAI        = "genai"
	ProviderGroq         = "groq"
	ProviderAnthropic    = "anthropic"
	ProviderCustomOpenAI = "custom-openai"
	ProviderOllama       = "ollama"
)

// ---------------------------------------------------------------------------
// Provider configuration
// ---------------------------------------------------------------------------

// Provider holds the configuration for a translation service.
type Provider struct {
	// ID is the provider identifier (openai, google, groq, etc.).
	ID string
	// Name is the display name.
	Name string
	// BaseURL is the API base URL.
	BaseURL string
	// APIKey is the authentication key (empty for local services).
	APIKey string
	// Model is the model identifier.
	Model string
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string
	// Timeout is the request timeout.
	Timeout time.Duration
	// EnvKey is the environment variable conventionally holding the key.
	EnvKey string
}

// NeedsKey reports whether the provider refuses requests without a key.
func (p Provider) NeedsKey() bool {
	switch p.ID {
	case ProviderOllama, ProviderCustomOpenAI:
		return false
	}
	return true
}

// DefaultProviders returns the pre-configured provider definitions.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		ProviderOpenAI: {
			ID:      ProviderOpenAI,
			Name:    "OpenAI",
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
			Timeout: 60 * time.Second,
			EnvKey:  "OPENAI_API_KEY",
		},
		ProviderGoogle: {
			ID:      ProviderGoogle,
			Name:    "Google AI (Gemini REST)",
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.5-flash",
			Timeout: 120 * time.Second,
			EnvKey:  "GEMINI_API_KEY",
		},
		ProviderGenAI: {
			ID:      ProviderGenAI,
			Name:    "Google Gen AI SDK",
			Model:   "gemini-2.5-flash",
			Timeout: 120 * time.Second,
			EnvKey:  "GOOGLE_API_KEY",
		},
		ProviderGroq: {
			ID:      ProviderGroq,
			Name:    "Groq",
			BaseURL: "https://api.groq.com/openai/v1",
			Model:   "llama-3.3-70b-versatile",
			Timeout: 60 * time.Second,
			EnvKey:  "GROQ_API_KEY",
		},
		ProviderAnthropic: {
			ID:      ProviderAnthropic,
			Name:    "Anthropic",
			BaseURL: "https://api.anthropic.com/v1",
			Model:   "claude-3-5-haiku-latest",
			Timeout: 120 * time.Second,
			EnvKey:  "ANTHROPIC_API_KEY",
		},
		ProviderCustomOpenAI: {
			ID:      ProviderCustomOpenAI,
			Name:    "Custom OpenAI",
			Timeout: 60 * time.Second,
		},
		ProviderOllama: {
			ID:      ProviderOllama,
			Name:    "Ollama",
			BaseURL: "http://localhost:11434/v1",
			Timeout: 120 * time.Second,
		},
	}
}

// ProviderIDs returns the known provider IDs in sorted order.
func ProviderIDs() []string {
	var ids []string
	for id := range DefaultProviders() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ---------------------------------------------------------------------------
// Default system prompt
// ---------------------------------------------------------------------------

// DefaultSystemPrompt instructs the model how to treat catalog text.
// {{sourceLang}}, {{targetLang}} and {{joiner}} are substituted.
const DefaultSystemPrompt = `You are a professional translator specializing in software and product localization. You are translating UI strings of a web application from {{sourceLang}} to {{targetLang}}.

IMPORTANT TRANSLATION PRINCIPLES:
- Translate for NATURALNESS and FLUENCY in {{targetLang}}, not word-for-word
- Use established IT terminology in {{targetLang}}
- Maintain the original tone and intent

TECHNICAL REQUIREMENTS:
- The input may contain several independent strings separated by lines consisting of {{joiner}}. Keep every separator line exactly as-is and translate each string separately. Never add or remove separators.
- Tokens such as A0R0Z1A0R1Z2A0R2Z are placeholders. Copy them unchanged.
- A line consisting of a single "-" must stay "-".
- Preserve format specifiers (%s, %d, {{name}}) and HTML tags.
- Keep brand names and proper nouns unchanged.
- Return ONLY the translated text, no explanations, quotes or markdown code blocks.`

// ---------------------------------------------------------------------------
// Translation options
// ---------------------------------------------------------------------------

// Options configures a translator for one language pair.
type Options struct {
	// Provider is the service configuration.
	Provider Provider
	// From and To are language codes.
	From string
	To   string
	// FromName and ToName are human-readable language names used in the
	// prompt; the codes are used when empty.
	FromName string
	ToName   string
	// Joiner is the separator line the translator must keep.
	Joiner string
	// SystemPrompt overrides DefaultSystemPrompt.
	SystemPrompt string
	// Timeout overrides the provider timeout.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries on rate limits and
	// server errors. Default: 3.
	MaxRetries int
	// Verbose enables request logging through OnLog.
	Verbose bool
	// OnLog emits log messages.
	OnLog func(format string, args ...any)
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) debug(format string, args ...any) {
	if o.Verbose {
		o.log(format, args...)
	}
}

func (o *Options) effectiveTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	if o.Provider.Timeout > 0 {
		return o.Provider.Timeout
	}
	return 120 * time.Second
}

func (o *Options) effectiveMaxRetries() int {
	if o.MaxRetries > 0 {
		return o.MaxRetries
	}
	return 3
}

// resolvedPrompt returns the system prompt with placeholders replaced.
func (o *Options) resolvedPrompt() string {
	prompt := o.SystemPrompt
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	from, to := o.FromName, o.ToName
	if from == "" {
		from = o.From
	}
	if to == "" {
		to = o.To
	}
	joiner := strings.TrimSpace(o.Joiner)
	if joiner == "" {
		joiner = "[_]"
	}
	return strings.NewReplacer(
		"{{sourceLang}}", from,
		"{{targetLang}}", to,
		"{{joiner}}", joiner,
	).Replace(prompt)
}

// New returns a translator for the configured provider.
func New(ctx context.Context, opts Options) (Translator, error) {
	prov := opts.Provider
	if prov.ID == "" {
		return nil, fmt.Errorf("no provider configured")
	}
	if prov.Model == "" {
		return nil, fmt.Errorf("provider %s: model is required", prov.ID)
	}
	if prov.NeedsKey() && prov.APIKey == "" {
		return nil, fmt.Errorf("provider %s: API key is required", prov.ID)
	}
	if prov.ID != ProviderGenAI && prov.BaseURL == "" {
		return nil, fmt.Errorf("provider %s: base URL is required", prov.ID)
	}

	switch prov.ID {
	case ProviderGenAI:
		return newGenAI(ctx, opts)
	case ProviderGoogle:
		return newHTTP(opts, formatGeminiNative)
	case ProviderAnthropic:
		return newHTTP(opts, formatAnthropic)
	default:
		// OpenAI, Groq, Ollama, custom endpoints and unknown IDs.
		return newHTTP(opts, formatOpenAIChat)
	}
}

// truncate truncates a string to maxLen runes.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
