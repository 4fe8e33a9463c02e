package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"showrunner/internal/pipeerr"
	"showrunner/internal/retry"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	outcome, err := retry.Do(context.Background(), retry.Policy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		Stage:      "tts",
		Sleeper:    noSleep,
	}, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", pipeerr.Retryable("TTS_TIMEOUT", "tts", errors.New("timeout"))
		}
		return "audio.wav", nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if outcome.Attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", outcome.Attempts)
	}
	if outcome.Result != "audio.wav" {
		t.Fatalf("unexpected result %q", outcome.Result)
	}
}

func TestDoStopsOnNonRetryableSeverity(t *testing.T) {
	calls := 0
	fallbackErr := pipeerr.Fallback("PROVIDER_DOWN", "script-gen", errors.New("503"))
	_, err := retry.Do(context.Background(), retry.Policy{
		MaxRetries: 5,
		BaseDelay:  time.Millisecond,
		Sleeper:    noSleep,
	}, func(context.Context) (int, error) {
		calls++
		return 0, fallbackErr
	})
	if calls != 1 {
		t.Fatalf("non-retryable error must not be retried, got %d calls", calls)
	}
	if !errors.Is(err, fallbackErr) {
		t.Fatalf("expected original error back, got %v", err)
	}
}

func TestDoExhaustionReturnsLastError(t *testing.T) {
	calls := 0
	_, err := retry.Do(context.Background(), retry.Policy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		Sleeper:    noSleep,
	}, func(context.Context) (int, error) {
		calls++
		return 0, pipeerr.Retryable("FLAKY", "research", errors.New("again"))
	})
	if calls != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d calls", calls)
	}
	if pipeerr.SeverityOf(err) != pipeerr.SeverityRetryable {
		t.Fatalf("last error must surface unchanged, got %v", err)
	}
}

func TestDoInvokesOnRetryObserver(t *testing.T) {
	var observed []int
	_, _ = retry.Do(context.Background(), retry.Policy{
		MaxRetries: 2,
		BaseDelay:  time.Millisecond,
		Sleeper:    noSleep,
		OnRetry: func(attempt int, _ time.Duration, _ error) {
			observed = append(observed, attempt)
		},
	}, func(context.Context) (int, error) {
		return 0, pipeerr.Retryable("FLAKY", "research", errors.New("again"))
	})
	if len(observed) != 2 || observed[0] != 1 || observed[1] != 2 {
		t.Fatalf("unexpected OnRetry attempts: %v", observed)
	}
}

func TestBackoffCapsAtMax(t *testing.T) {
	base := 100 * time.Millisecond
	max := 400 * time.Millisecond
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 400 * time.Millisecond},
		{10, 400 * time.Millisecond},
	}
	for _, tc := range cases {
		if got := retry.Backoff(tc.attempt, base, max); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := retry.Do(ctx, retry.Policy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
	}, func(context.Context) (int, error) {
		return 0, pipeerr.Retryable("FLAKY", "tts", errors.New("again"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
