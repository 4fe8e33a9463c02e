// Package tts implements speech synthesis against a Google Cloud
// text-to-speech style REST API. The two configured voice tiers are
// exposed as two distinct providers in the speech chain: the high-quality
// chirp3-hd voice as primary and the standard voice as fallback.
package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/pipeerr"
	"showrunner/internal/provider"
)

const (
	defaultBaseURL     = "https://texttospeech.googleapis.com"
	defaultHTTPTimeout = 300 * time.Second

	// Per-million-character synthesis rates by voice family.
	chirpRatePerMChar    = 30.0
	standardRatePerMChar = 4.0
)

// Client synthesizes speech with one fixed voice.
type Client struct {
	voice      string
	apiKey     string
	baseURL    string
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

// NewClient constructs a synthesis client bound to one voice.
func NewClient(cfg config.TTS, voice string, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := &Client{
		voice:      strings.TrimSpace(voice),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Name identifies this provider within its chain. Fallback entries in the
// quality context use this name, so the gate can tell voice tiers apart.
func (c *Client) Name() string { return c.voice }

// EstimateCost approximates the spend for a script of the given size.
func (c *Client) EstimateCost(scriptChars int) float64 {
	rate := standardRatePerMChar
	if strings.HasPrefix(c.voice, "chirp") {
		rate = chirpRatePerMChar
	}
	return float64(scriptChars) * rate / 1e6
}

type synthesizeRequest struct {
	Input struct {
		Text string `json:"text"`
	} `json:"input"`
	Voice struct {
		Name string `json:"name"`
	} `json:"voice"`
	AudioConfig struct {
		AudioEncoding string `json:"audioEncoding"`
	} `json:"audioConfig"`
}

type synthesizeResponse struct {
	AudioContent string `json:"audioContent"`
}

// Synthesize renders the script to audio at req.OutputPath. Pronunciation
// overrides are applied to the text before synthesis.
func (c *Client) Synthesize(ctx context.Context, req provider.SpeechRequest) (provider.SpeechResult, error) {
	var empty provider.SpeechResult
	script := strings.TrimSpace(req.Script)
	if script == "" {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "TTS_EMPTY_SCRIPT", "", "script is required")
	}
	if c.apiKey == "" {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "TTS_NO_API_KEY", "", c.voice+": api key required")
	}
	if req.OutputPath == "" {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "TTS_NO_OUTPUT", "", "output path is required")
	}

	for written, spoken := range req.Pronunciation {
		script = strings.ReplaceAll(script, written, spoken)
	}

	var payload synthesizeRequest
	payload.Input.Text = script
	payload.Voice.Name = c.voice
	payload.AudioConfig.AudioEncoding = "LINEAR16"

	encoded, err := json.Marshal(payload)
	if err != nil {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "TTS_ENCODE", "", err.Error())
	}

	endpoint := c.baseURL + "/v1/text:synthesize"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "TTS_REQUEST", "", err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Goog-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return empty, c.classifyTransport(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, pipeerr.Retryable("TTS_READ_BODY", "", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, c.classifyStatus(resp.StatusCode, body)
	}

	var decoded synthesizeResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, pipeerr.Fallback("TTS_DECODE", "", fmt.Errorf("%s: decode response: %w", c.voice, err))
	}
	audio, err := base64.StdEncoding.DecodeString(decoded.AudioContent)
	if err != nil || len(audio) == 0 {
		return empty, pipeerr.Fallback("TTS_EMPTY_AUDIO", "", fmt.Errorf("%s: empty or invalid audio payload", c.voice))
	}

	if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0o755); err != nil {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "TTS_WRITE", "", err.Error())
	}
	if err := os.WriteFile(req.OutputPath, audio, 0o644); err != nil {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "TTS_WRITE", "", err.Error())
	}

	cost := c.EstimateCost(len(script))
	if c.costs != nil {
		c.costs.Add(c.voice, cost)
	}
	return provider.SpeechResult{
		AudioPath: req.OutputPath,
		// Linear16 at 24kHz mono, 2 bytes per sample.
		DurationSecs: float64(len(audio)) / (24000 * 2),
		CostUSD:      cost,
	}, nil
}

func (c *Client) classifyStatus(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	cause := fmt.Errorf("%s: http %d: %s", c.voice, status, msg)
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return pipeerr.Retryable(fmt.Sprintf("TTS_HTTP_%d", status), "", cause)
	default:
		return pipeerr.Fallback(fmt.Sprintf("TTS_HTTP_%d", status), "", cause)
	}
}

func (c *Client) classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pipeerr.Retryable("TTS_TIMEOUT", "", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pipeerr.Retryable("TTS_TIMEOUT", "", err)
	}
	return pipeerr.Retryable("TTS_TRANSPORT", "", err)
}
