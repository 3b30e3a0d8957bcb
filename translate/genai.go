package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// genaiTranslator calls Gemini through the Google Gen AI SDK.
type genaiTranslator struct {
	cli    *genai.Client
	opts   Options
	system string
}

func newGenAI(ctx context.Context, opts Options) (*genaiTranslator, error) {
	prov := opts.Provider
	client, err := makeHTTPClient(prov.Proxy, opts.effectiveTimeout())
	if err != nil {
		return nil, err
	}
	cfg := &genai.ClientConfig{
		Backend:    genai.BackendGeminiAPI,
		APIKey:     prov.APIKey,
		HTTPClient: client,
	}
	if prov.BaseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: prov.BaseURL}
	}
	cli, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &genaiTranslator{cli: cli, opts: opts, system: opts.resolvedPrompt()}, nil
}

// Translate sends text as a single user turn.
func (g *genaiTranslator) Translate(ctx context.Context, text string) (string, error) {
	maxRetries := g.opts.effectiveMaxRetries()
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<(attempt-1)) * time.Second
			g.opts.debug("[DEBUG] genai retry %d/%d in %v: %v", attempt, maxRetries, wait, lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(wait):
			}
		}

		resp, err := g.cli.Models.GenerateContent(ctx, g.opts.Provider.Model,
			[]*genai.Content{{Role: "user", Parts: []*genai.Part{{Text: text}}}},
			&genai.GenerateContentConfig{
				SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: g.system}}},
				Temperature:       genai.Ptr[float32](0.3),
			},
		)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("genai: empty response")
		}
		var sb strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			if p != nil {
				sb.WriteString(p.Text)
			}
		}
		return cleanResponse(sb.String()), nil
	}
	return "", fmt.Errorf("genai request failed after %d retries: %w", maxRetries, lastErr)
}
