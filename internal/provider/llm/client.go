package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"showrunner/internal/pipeerr"
	"showrunner/internal/provider"
)

const (
	jsonResponseType   = "json_object"
	defaultHTTPTimeout = 120 * time.Second
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"

	// Blended per-token rates used for cost attribution. Close enough
	// for budget tracking; billing truth lives with the provider.
	promptRatePerMTok     = 3.00
	completionRatePerMTok = 15.00
)

// Config captures the runtime settings required to talk to the model.
type Config struct {
	Name           string
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client wraps an OpenRouter-compatible chat completion API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	costs      *provider.Tracker
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithCostTracker wires the shared spend tracker.
func WithCostTracker(costs *provider.Tracker) Option {
	return func(c *Client) {
		c.costs = costs
	}
}

// NewClient constructs a text-generation client.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			Name:           strings.TrimSpace(cfg.Name),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.Name == "" {
		client.cfg.Name = "claude"
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	return client
}

// Name identifies this provider within its chain.
func (c *Client) Name() string { return c.cfg.Name }

// EstimateCost approximates the spend for a prompt of the given size.
func (c *Client) EstimateCost(promptChars int) float64 {
	// Rough 4 chars/token heuristic; completions assumed comparable in
	// size to the prompt.
	tokens := float64(promptChars) / 4
	return tokens*promptRatePerMTok/1e6 + tokens*completionRatePerMTok/1e6
}

// Complete issues one chat completion request.
func (c *Client) Complete(ctx context.Context, req provider.TextRequest) (provider.TextResult, error) {
	var empty provider.TextResult
	system := strings.TrimSpace(req.System)
	prompt := strings.TrimSpace(req.Prompt)
	if system == "" || prompt == "" {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "LLM_EMPTY_PROMPT", "", "system and user prompts are required")
	}
	if c.cfg.APIKey == "" {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "LLM_NO_API_KEY", "", c.cfg.Name+": api key required")
	}

	payload := chatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
	}
	if req.JSONOnly {
		payload.ResponseFormat = map[string]string{"type": jsonResponseType}
	}

	completion, body, err := c.send(ctx, payload)
	if err != nil {
		return empty, err
	}

	content, finishReason := extractContent(completion)
	if content == "" {
		refusal := extractRefusal(completion)
		return empty, pipeerr.Fallback("LLM_EMPTY_CONTENT", "",
			fmt.Errorf("%s: empty content (finish_reason=%q, refusal=%q, snippet=%s)",
				c.cfg.Name, finishReason, refusal, snippet(string(body))))
	}

	cost := c.usageCost(completion)
	if c.costs != nil {
		c.costs.Add(c.cfg.Name, cost)
	}
	return provider.TextResult{Content: content, CostUSD: cost}, nil
}

// HealthCheck issues a fast ping to verify the API key and model are usable.
func (c *Client) HealthCheck(ctx context.Context) error {
	result, err := c.Complete(ctx, provider.TextRequest{
		System:   "You must respond with JSON only.",
		Prompt:   "Respond with {\"ok\":true}",
		JSONOnly: true,
	})
	if err != nil {
		return err
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(result.Content, &parsed); err != nil {
		return fmt.Errorf("%s health: parse payload: %w", c.cfg.Name, err)
	}
	if !parsed.OK {
		return fmt.Errorf("%s health: unexpected response", c.cfg.Name)
	}
	return nil
}

type chatCompletionRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
		// Some providers return the streaming schema (delta) even when
		// stream=false, so tolerate it.
		Delta        chatCompletionMessage `json:"delta"`
		Text         string                `json:"text"`
		FinishReason string                `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type chatCompletionMessage struct {
	Content string `json:"content"`
	Refusal string `json:"refusal"`
}

func (c *Client) send(ctx context.Context, payload chatCompletionRequest) (chatCompletionResponse, []byte, error) {
	var completion chatCompletionResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, pipeerr.New(pipeerr.SeverityCritical, "LLM_ENCODE", "", err.Error())
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, pipeerr.New(pipeerr.SeverityCritical, "LLM_REQUEST", "", err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return completion, nil, c.classifyTransport(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, pipeerr.Retryable("LLM_READ_BODY", "", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return completion, body, c.classifyStatus(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, pipeerr.Fallback("LLM_DECODE", "",
			fmt.Errorf("%s: decode response: %w", c.cfg.Name, err))
	}
	if completion.Error != nil {
		return completion, body, pipeerr.Fallback("LLM_API_ERROR", "",
			fmt.Errorf("%s: api error: %s", c.cfg.Name, strings.TrimSpace(completion.Error.Message)))
	}
	return completion, body, nil
}

// classifyStatus maps HTTP failures onto the severity taxonomy: transient
// server-side conditions retry against the same provider, everything that
// marks this provider unusable for the call falls through to the next one.
func (c *Client) classifyStatus(status int, body []byte) error {
	cause := fmt.Errorf("%s: http %d: %s", c.cfg.Name, status, snippet(string(body)))
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return pipeerr.Retryable(fmt.Sprintf("LLM_HTTP_%d", status), "", cause)
	default:
		return pipeerr.Fallback(fmt.Sprintf("LLM_HTTP_%d", status), "", cause)
	}
}

func (c *Client) classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pipeerr.Retryable("LLM_TIMEOUT", "", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pipeerr.Retryable("LLM_TIMEOUT", "", err)
	}
	return pipeerr.Retryable("LLM_TRANSPORT", "", err)
}

func (c *Client) usageCost(completion chatCompletionResponse) float64 {
	return float64(completion.Usage.PromptTokens)*promptRatePerMTok/1e6 +
		float64(completion.Usage.CompletionTokens)*completionRatePerMTok/1e6
}

func extractContent(completion chatCompletionResponse) (string, string) {
	var finishReason string
	for _, choice := range completion.Choices {
		if finishReason == "" {
			finishReason = strings.TrimSpace(choice.FinishReason)
		}
		for _, candidate := range []string{choice.Message.Content, choice.Delta.Content, choice.Text} {
			if trimmed := strings.TrimSpace(candidate); trimmed != "" {
				return trimmed, finishReason
			}
		}
	}
	return "", finishReason
}

func extractRefusal(completion chatCompletionResponse) string {
	for _, choice := range completion.Choices {
		for _, candidate := range []string{choice.Message.Refusal, choice.Delta.Refusal} {
			if trimmed := strings.TrimSpace(candidate); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func snippet(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		return body[:200] + "..."
	}
	return body
}

// DecodeJSON parses model output that may be wrapped in markdown fences.
func DecodeJSON(content string, target any) error {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		if idx := strings.LastIndex(content, "```"); idx >= 0 {
			content = content[:idx]
		}
		content = strings.TrimSpace(content)
	}
	return json.Unmarshal([]byte(content), target)
}
