package fallback_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"showrunner/internal/fallback"
	"showrunner/internal/pipeerr"
)

type fakeProvider struct {
	name string
	err  error
	out  string
}

func (p fakeProvider) Name() string { return p.name }

func chainOf(providers ...fakeProvider) fallback.Chain[fakeProvider] {
	return fallback.Chain[fakeProvider]{Primary: providers[0], Fallbacks: providers[1:]}
}

func run(t *testing.T, chain fallback.Chain[fakeProvider], opts fallback.Options) (fallback.Result[fakeProvider, string], error) {
	t.Helper()
	return fallback.Run(context.Background(), chain, opts, func(_ context.Context, p fakeProvider) (string, error) {
		if p.err != nil {
			return "", p.err
		}
		return p.out, nil
	})
}

func TestRunPrimarySucceeds(t *testing.T) {
	chain := chainOf(
		fakeProvider{name: "chirp3-hd", out: "audio"},
		fakeProvider{name: "standard"},
	)
	result, err := run(t, chain, fallback.Options{Stage: "tts"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tier != fallback.TierPrimary {
		t.Fatalf("expected primary tier, got %s", result.Tier)
	}
	if result.Provider.Name() != "chirp3-hd" {
		t.Fatalf("unexpected provider %s", result.Provider.Name())
	}
}

func TestRunFallsBackOnFallbackSeverity(t *testing.T) {
	chain := chainOf(
		fakeProvider{name: "A", err: pipeerr.Fallback("PROVIDER_DOWN", "tts", errors.New("503"))},
		fakeProvider{name: "B", out: "audio"},
	)
	var from, to string
	result, err := run(t, chain, fallback.Options{
		Stage: "tts",
		OnFallback: func(f, tgt string, _ error) {
			from, to = f, tgt
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Tier != fallback.TierFallback {
		t.Fatalf("expected fallback tier, got %s", result.Tier)
	}
	if result.Provider.Name() != "B" {
		t.Fatalf("expected provider B, got %s", result.Provider.Name())
	}
	if from != "A" || to != "B" {
		t.Fatalf("unexpected transition %s -> %s", from, to)
	}
}

func TestRunAbortsOnNonFallbackSeverity(t *testing.T) {
	critical := pipeerr.Critical("BAD_INPUT", "tts", errors.New("invalid ssml"))
	chain := chainOf(
		fakeProvider{name: "A", err: critical},
		fakeProvider{name: "B", out: "never"},
	)
	_, err := run(t, chain, fallback.Options{Stage: "tts"})
	if !errors.Is(err, critical) {
		t.Fatalf("expected the critical error unchanged, got %v", err)
	}
}

func TestRunAggregatesWhenAllFail(t *testing.T) {
	chain := chainOf(
		fakeProvider{name: "A", err: pipeerr.Fallback("DOWN_A", "visual-gen", errors.New("503"))},
		fakeProvider{name: "B", err: pipeerr.Fallback("DOWN_B", "visual-gen", errors.New("502"))},
	)
	_, err := run(t, chain, fallback.Options{Stage: "visual-gen"})
	if pipeerr.SeverityOf(err) != pipeerr.SeverityCritical {
		t.Fatalf("exhausted chain must raise critical, got %v", err)
	}
	msg := err.Error()
	if !strings.Contains(msg, "A") || !strings.Contains(msg, "B") {
		t.Fatalf("aggregated error must list all providers: %s", msg)
	}
}

func TestChainValidate(t *testing.T) {
	if err := chainOf(fakeProvider{name: "A"}, fakeProvider{name: "B"}).Validate(); err != nil {
		t.Fatalf("valid chain rejected: %v", err)
	}
	if err := chainOf(fakeProvider{name: "A"}, fakeProvider{name: "A"}).Validate(); err == nil {
		t.Fatal("duplicate names must be rejected")
	}
	if err := chainOf(fakeProvider{name: " "}).Validate(); err == nil {
		t.Fatal("empty name must be rejected")
	}
}

func TestAllOf(t *testing.T) {
	chain := chainOf(fakeProvider{name: "A"}, fakeProvider{name: "B"}, fakeProvider{name: "C"})
	all := fallback.AllOf(chain)
	if len(all) != 3 || all[0].Name() != "A" || all[2].Name() != "C" {
		t.Fatalf("unexpected flattening: %#v", all)
	}
}
