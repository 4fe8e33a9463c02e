package stageexec_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"showrunner/internal/pipeerr"
	"showrunner/internal/stage"
	"showrunner/internal/stageexec"
)

type scriptedHandler struct {
	id      stage.ID
	output  *stage.Output
	err     error
	execute func(ctx context.Context) (*stage.Output, error)
}

func (h *scriptedHandler) ID() stage.ID { return h.id }

func (h *scriptedHandler) Execute(ctx context.Context, _ stage.Input) (*stage.Output, error) {
	if h.execute != nil {
		return h.execute(ctx)
	}
	return h.output, h.err
}

func (h *scriptedHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(string(h.id))
}

type fixedCosts struct {
	total float64
}

func (c *fixedCosts) Total() float64 { return c.total }

func TestRunStampsTimingAndCost(t *testing.T) {
	costs := &fixedCosts{total: 1.25}
	handler := &scriptedHandler{
		id: stage.Research,
		execute: func(context.Context) (*stage.Output, error) {
			costs.total += 0.50
			return &stage.Output{
				Data:     map[string]any{"summary": "ok"},
				Provider: &stage.ProviderInfo{Name: "claude", Tier: "primary", Attempts: 1},
			}, nil
		},
	}

	result, err := stageexec.Run(context.Background(), stageexec.Options{
		Handler: handler,
		Costs:   costs,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Stage != stage.Research {
		t.Fatalf("unexpected stage %s", result.Stage)
	}
	if result.Cost != 0.50 {
		t.Fatalf("expected stage-attributed cost 0.50, got %v", result.Cost)
	}
	if result.DurationMs < 0 {
		t.Fatalf("negative duration %d", result.DurationMs)
	}
	if result.CompletedAt.Before(result.StartedAt) {
		t.Fatal("completion must not precede start")
	}
	if result.Output.Data["summary"] != "ok" {
		t.Fatalf("output payload lost: %#v", result.Output)
	}
}

func TestRunClassifiesUnknownErrorsAsCritical(t *testing.T) {
	handler := &scriptedHandler{id: stage.Render, err: errors.New("ffmpeg exploded")}

	_, err := stageexec.Run(context.Background(), stageexec.Options{Handler: handler})
	if err == nil {
		t.Fatal("expected error")
	}
	if sev := pipeerr.SeverityOf(err); sev != pipeerr.SeverityCritical {
		t.Fatalf("unclassified error must become critical, got %s", sev)
	}
}

func TestRunPassesClassifiedErrorsThrough(t *testing.T) {
	classified := pipeerr.Recoverable("THUMBNAIL_SKIP", "thumbnail", errors.New("no source frame available"))
	handler := &scriptedHandler{id: stage.Thumbnail, err: classified}

	_, err := stageexec.Run(context.Background(), stageexec.Options{Handler: handler})
	if sev := pipeerr.SeverityOf(err); sev != pipeerr.SeverityRecoverable {
		t.Fatalf("classified severity must survive, got %s", sev)
	}
	if pipeerr.CodeOf(err) != "THUMBNAIL_SKIP" {
		t.Fatalf("classified code must survive, got %s", pipeerr.CodeOf(err))
	}
}

func TestRunNeverRetries(t *testing.T) {
	calls := 0
	handler := &scriptedHandler{
		id: stage.TTS,
		execute: func(context.Context) (*stage.Output, error) {
			calls++
			return nil, pipeerr.Retryable("TTS_TIMEOUT", "tts", errors.New("synthesis timed out"))
		},
	}

	_, err := stageexec.Run(context.Background(), stageexec.Options{Handler: handler})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("executor must invoke the handler exactly once, got %d", calls)
	}
}

func TestRunAppliesTimeout(t *testing.T) {
	handler := &scriptedHandler{
		id: stage.TTS,
		execute: func(ctx context.Context) (*stage.Output, error) {
			select {
			case <-ctx.Done():
				return nil, pipeerr.Retryable("TTS_TIMEOUT", "tts", ctx.Err())
			case <-time.After(5 * time.Second):
				return &stage.Output{}, nil
			}
		},
	}

	_, err := stageexec.Run(context.Background(), stageexec.Options{
		Handler: handler,
		Timeout: 10 * time.Millisecond,
	})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if pipeerr.CodeOf(err) != "TTS_TIMEOUT" {
		t.Fatalf("unexpected code %s", pipeerr.CodeOf(err))
	}
}

func TestRunNilOutputNormalized(t *testing.T) {
	handler := &scriptedHandler{id: stage.Notify}
	result, err := stageexec.Run(context.Background(), stageexec.Options{Handler: handler})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Output == nil {
		t.Fatal("nil handler output must be normalized to an empty envelope")
	}
}
