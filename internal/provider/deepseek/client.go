// Package deepseek implements the fallback text-generation client. The
// DeepSeek API is chat-completion compatible, so the client delegates to
// the shared llm transport with its own endpoint, model, and pricing.
package deepseek

import (
	"context"
	"strings"

	"showrunner/internal/config"
	"showrunner/internal/provider"
	"showrunner/internal/provider/llm"
)

const (
	defaultBaseURL = "https://api.deepseek.com/chat/completions"
	defaultModel   = "deepseek-chat"

	// DeepSeek is roughly an order of magnitude cheaper than the
	// primary model.
	ratePerMTok = 1.10
)

// Client is the DeepSeek text-generation provider.
type Client struct {
	inner *llm.Client
}

// New constructs a DeepSeek client from configuration.
func New(cfg config.DeepSeek, opts ...llm.Option) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	return &Client{
		inner: llm.NewClient(llm.Config{
			Name:           "deepseek",
			APIKey:         cfg.APIKey,
			BaseURL:        baseURL,
			Model:          model,
			TimeoutSeconds: cfg.TimeoutSeconds,
		}, opts...),
	}
}

// Name identifies this provider within its chain.
func (c *Client) Name() string { return c.inner.Name() }

// EstimateCost approximates the spend for a prompt of the given size.
func (c *Client) EstimateCost(promptChars int) float64 {
	tokens := float64(promptChars) / 4
	return 2 * tokens * ratePerMTok / 1e6
}

// Complete issues one chat completion request.
func (c *Client) Complete(ctx context.Context, req provider.TextRequest) (provider.TextResult, error) {
	return c.inner.Complete(ctx, req)
}

// HealthCheck verifies the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.inner.HealthCheck(ctx)
}
