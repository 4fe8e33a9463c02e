package imagegen

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/pipeerr"
	"showrunner/internal/provider"
)

const defaultStockURL = "https://api.pexels.com/v1/search"

// Stock searches a stock-photo API and downloads matching images. Stock
// photos carry no per-image fee on the configured plan, so the chain can
// fall back to them without burning budget.
type Stock struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewStock constructs the stock-photo fallback provider.
func NewStock(cfg config.Images) *Stock {
	timeout := defaultImageHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	baseURL := strings.TrimSpace(cfg.StockBaseURL)
	if baseURL == "" {
		baseURL = defaultStockURL
	}
	return &Stock{
		apiKey:     strings.TrimSpace(cfg.StockAPIKey),
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies this provider within its chain.
func (s *Stock) Name() string { return "stock" }

// EstimateCost is zero: stock downloads are covered by the subscription.
func (s *Stock) EstimateCost(int) float64 { return 0 }

type stockSearchResponse struct {
	Photos []struct {
		Src struct {
			Large string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

// Generate searches for req.Count photos matching the prompt and saves
// them to req.OutputDir.
func (s *Stock) Generate(ctx context.Context, req provider.ImageRequest) (provider.ImageResult, error) {
	var empty provider.ImageResult
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "IMG_EMPTY_PROMPT", "", "prompt is required")
	}
	if s.apiKey == "" {
		return empty, pipeerr.Fallback("STOCK_NO_API_KEY", "", fmt.Errorf("stock: api key not configured"))
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}

	endpoint := fmt.Sprintf("%s?query=%s&per_page=%d", s.baseURL, url.QueryEscape(prompt), count)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "STOCK_REQUEST", "", err.Error())
	}
	httpReq.Header.Set("Authorization", s.apiKey)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return empty, classifyTransport("STOCK", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return empty, pipeerr.Retryable("STOCK_READ_BODY", "", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return empty, classifyStatus("STOCK", "stock", resp.StatusCode, body)
	}

	var decoded stockSearchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return empty, pipeerr.Fallback("STOCK_DECODE", "", fmt.Errorf("stock: decode response: %w", err))
	}
	if len(decoded.Photos) == 0 {
		return empty, pipeerr.Fallback("STOCK_NO_MATCHES", "", fmt.Errorf("stock: no photos for %q", prompt))
	}

	paths := make([]string, 0, len(decoded.Photos))
	for i, photo := range decoded.Photos {
		if i >= count {
			break
		}
		path := filepath.Join(req.OutputDir, fmt.Sprintf("stock-%02d.jpg", i+1))
		if err := s.download(ctx, photo.Src.Large, path); err != nil {
			return empty, err
		}
		paths = append(paths, path)
	}
	return provider.ImageResult{Paths: paths}, nil
}

func (s *Stock) download(ctx context.Context, srcURL, path string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, srcURL, nil)
	if err != nil {
		return pipeerr.New(pipeerr.SeverityCritical, "STOCK_REQUEST", "", err.Error())
	}
	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransport("STOCK", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		return pipeerr.Fallback("STOCK_DOWNLOAD", "", fmt.Errorf("stock: download %s: http %d", srcURL, resp.StatusCode))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return pipeerr.Retryable("STOCK_READ_BODY", "", err)
	}
	if err := writeFile(path, data); err != nil {
		return pipeerr.New(pipeerr.SeverityCritical, "IMG_WRITE", "", err.Error())
	}
	return nil
}
