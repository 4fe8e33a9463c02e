package stages

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/fallback"
	"showrunner/internal/logging"
	"showrunner/internal/metrics"
	"showrunner/internal/notifications"
	"showrunner/internal/provider"
	"showrunner/internal/provider/registry"
	"showrunner/internal/retry"
	"showrunner/internal/review"
	"showrunner/internal/stage"
	"showrunner/internal/topicqueue"
)

// Deps carries the collaborators shared by every stage handler.
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Providers *registry.Registry
	Notifier  notifications.Service
	Reviews   *review.Queue
	Topics    *topicqueue.Queue
}

func (d *Deps) validate() error {
	if d.Config == nil {
		return errors.New("config is required")
	}
	if d.Providers == nil {
		return errors.New("provider registry is required")
	}
	if d.Logger == nil {
		d.Logger = logging.NewNop()
	}
	return nil
}

// All constructs the full handler set for the stage registry.
func All(deps Deps) ([]stage.Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	d := &deps
	return []stage.Handler{
		&topicSourcing{deps: d},
		&research{deps: d},
		&scriptGen{deps: d},
		&pronunciationCheck{deps: d},
		&speechSynthesis{deps: d},
		&timestamps{deps: d},
		&visualGen{deps: d},
		&render{deps: d},
		&thumbnail{deps: d},
		&upload{deps: d, id: stage.UploadYouTube, platform: "youtube"},
		&upload{deps: d, id: stage.UploadShorts, platform: "shorts"},
		&notify{deps: d},
	}, nil
}

func (d *Deps) retryPolicy(id stage.ID) retry.Policy {
	wf := d.Config.Workflow
	return retry.Policy{
		MaxRetries: wf.MaxRetries,
		BaseDelay:  time.Duration(wf.RetryBaseDelaySecs) * time.Second,
		MaxDelay:   time.Duration(wf.RetryMaxDelaySecs) * time.Second,
		Stage:      string(id),
		OnRetry: func(attempt int, delay time.Duration, err error) {
			metrics.RetriesTotal.WithLabelValues(string(id)).Inc()
			d.Logger.Warn("retrying provider call",
				logging.String(logging.FieldStage, string(id)),
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(err),
			)
		},
	}
}

func (d *Deps) fallbackOptions(id stage.ID) fallback.Options {
	return fallback.Options{
		Stage: string(id),
		OnFallback: func(from, to string, err error) {
			metrics.FallbacksTotal.WithLabelValues(string(id), to).Inc()
			d.Logger.Warn("provider fallback",
				logging.String(logging.FieldStage, string(id)),
				logging.String("from_provider", from),
				logging.String("to_provider", to),
				logging.Error(err),
			)
		},
	}
}

// completeText runs one text-generation call through the chain, retrying
// each provider before falling through to the next.
func (d *Deps) completeText(ctx context.Context, id stage.ID, req provider.TextRequest) (provider.TextResult, *stage.ProviderInfo, error) {
	policy := d.retryPolicy(id)
	res, err := fallback.Run(ctx, d.Providers.Text, d.fallbackOptions(id),
		func(ctx context.Context, p provider.TextGenerator) (retry.Outcome[provider.TextResult], error) {
			return retry.Do(ctx, policy, func(ctx context.Context) (provider.TextResult, error) {
				return p.Complete(ctx, req)
			})
		})
	if err != nil {
		return provider.TextResult{}, nil, err
	}
	info := &stage.ProviderInfo{Name: res.Provider.Name(), Tier: res.Tier, Attempts: res.Value.Attempts}
	return res.Value.Result, info, nil
}

// synthesize runs one speech call through the voice chain.
func (d *Deps) synthesize(ctx context.Context, id stage.ID, req provider.SpeechRequest) (provider.SpeechResult, *stage.ProviderInfo, error) {
	policy := d.retryPolicy(id)
	res, err := fallback.Run(ctx, d.Providers.Speech, d.fallbackOptions(id),
		func(ctx context.Context, p provider.SpeechSynthesizer) (retry.Outcome[provider.SpeechResult], error) {
			return retry.Do(ctx, policy, func(ctx context.Context) (provider.SpeechResult, error) {
				return p.Synthesize(ctx, req)
			})
		})
	if err != nil {
		return provider.SpeechResult{}, nil, err
	}
	info := &stage.ProviderInfo{Name: res.Provider.Name(), Tier: res.Tier, Attempts: res.Value.Attempts}
	return res.Value.Result, info, nil
}

// generateImages runs one visual-generation call through the image chain.
func (d *Deps) generateImages(ctx context.Context, id stage.ID, req provider.ImageRequest) (provider.ImageResult, *stage.ProviderInfo, error) {
	policy := d.retryPolicy(id)
	res, err := fallback.Run(ctx, d.Providers.Images, d.fallbackOptions(id),
		func(ctx context.Context, p provider.ImageGenerator) (retry.Outcome[provider.ImageResult], error) {
			return retry.Do(ctx, policy, func(ctx context.Context) (provider.ImageResult, error) {
				return p.Generate(ctx, req)
			})
		})
	if err != nil {
		return provider.ImageResult{}, nil, err
	}
	info := &stage.ProviderInfo{Name: res.Provider.Name(), Tier: res.Tier, Attempts: res.Value.Attempts}
	return res.Value.Result, info, nil
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	value, _ := data[key].(string)
	return value
}

// stringMapField tolerates both live maps and maps that round-tripped
// through JSON persistence.
func stringMapField(data map[string]any, key string) map[string]string {
	switch v := data[key].(type) {
	case map[string]string:
		return v
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			if s, ok := item.(string); ok {
				out[k] = s
			}
		}
		return out
	}
	return nil
}

// stringSliceField tolerates both live slices and slices that
// round-tripped through JSON persistence.
func stringSliceField(data map[string]any, key string) []string {
	switch v := data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func writeTextFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func copyData(data map[string]any) map[string]any {
	out := make(map[string]any, len(data)+4)
	for k, v := range data {
		out[k] = v
	}
	return out
}
