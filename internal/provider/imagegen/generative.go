package imagegen

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
	defaultGenerativeURL    = "https://api.openai.com/v1/images/generations"
	defaultImageHTTPTimeout = 180 * time.Second
	generativeCostPerImage  = 0.04
)

// Generative calls an image-generation API and writes the results to
// disk.
type Generative struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	costs      *provider.Tracker
}

// Option customizes an image provider.
type Option func(*Generative)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Generative) {
		if client != nil {
			g.httpClient = client
		}
	}
}

// WithCostTracker wires the shared spend tracker.
func WithCostTracker(costs *provider.Tracker) Option {
	return func(g *Generative) {
		g.costs = costs
	}
}

// NewGenerative constructs the primary image provider.
func NewGenerative(cfg config.Images, opts ...Option) *Generative {
	timeout := defaultImageHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultGenerativeURL
	}
	g := &Generative{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name identifies this provider within its chain.
func (g *Generative) Name() string { return "generative" }

// EstimateCost approximates the spend for generating count images.
func (g *Generative) EstimateCost(count int) float64 {
	return float64(count) * generativeCostPerImage
}

type generateRequest struct {
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type generateResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Generate produces count images for the prompt in req.OutputDir.
func (g *Generative) Generate(ctx context.Context, req provider.ImageRequest) (provider.ImageResult, error) {
	var empty provider.ImageResult
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "IMG_EMPTY_PROMPT", "", "prompt is required")
	}
	if g.apiKey == "" {
		// The image chain stays usable without any credentials; a
		// key-less generative provider yields to stock and template.
		return empty, pipeerr.Fallback("IMG_NO_API_KEY", "", errors.New("generative: api key required"))
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}

	encoded, err := json.Marshal(generateRequest{Prompt: prompt, N: count, ResponseFormat: "b64_json"})
	if err != nil {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "IMG_ENCODE", "", err.Error())
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL, bytes.NewReader(encoded))
	if err != nil {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "IMG_REQUEST", "", err.Error())
	}
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return empty, classifyTransport("IMG", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, pipeerr.Retryable("IMG_READ_BODY", "", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, classifyStatus("IMG", "generative", resp.StatusCode, body)
	}

	var decoded generateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, pipeerr.Fallback("IMG_DECODE", "", fmt.Errorf("generative: decode response: %w", err))
	}
	if len(decoded.Data) == 0 {
		return empty, pipeerr.Fallback("IMG_EMPTY_RESULT", "", errors.New("generative: no images returned"))
	}

	paths := make([]string, 0, len(decoded.Data))
	for i, item := range decoded.Data {
		raw, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil || len(raw) == 0 {
			return empty, pipeerr.Fallback("IMG_EMPTY_RESULT", "", fmt.Errorf("generative: invalid image payload at %d", i))
		}
		path := filepath.Join(req.OutputDir, fmt.Sprintf("visual-%02d.png", i+1))
		if err := writeFile(path, raw); err != nil {
			return empty, pipeerr.New(pipeerr.SeverityCritical, "IMG_WRITE", "", err.Error())
		}
		paths = append(paths, path)
	}

	cost := g.EstimateCost(len(paths))
	if g.costs != nil {
		g.costs.Add(g.Name(), cost)
	}
	return provider.ImageResult{Paths: paths, CostUSD: cost}, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func classifyStatus(prefix, name string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	cause := fmt.Errorf("%s: http %d: %s", name, status, msg)
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return pipeerr.Retryable(fmt.Sprintf("%s_HTTP_%d", prefix, status), "", cause)
	default:
		return pipeerr.Fallback(fmt.Sprintf("%s_HTTP_%d", prefix, status), "", cause)
	}
}

func classifyTransport(prefix string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return pipeerr.Retryable(prefix+"_TIMEOUT", "", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return pipeerr.Retryable(prefix+"_TIMEOUT", "", err)
	}
	return pipeerr.Retryable(prefix+"_TRANSPORT", "", err)
}
