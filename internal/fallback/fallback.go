// Package fallback tries an ordered chain of interchangeable providers for
// one capability. A provider is skipped for the next one only when its
// failure is classified FALLBACK; every other severity aborts the chain.
package fallback

import (
	"context"
	"fmt"
	"strings"

	"showrunner/internal/pipeerr"
)

// Named is the minimum surface a chain member must expose. Names are used
// for cost attribution and fallback-transition logging.
type Named interface {
	Name() string
}

// Tier records whether a result came from the chain's primary provider.
type Tier string

const (
	TierPrimary  Tier = "primary"
	TierFallback Tier = "fallback"
)

// Chain is an immutable primary-plus-fallbacks provider list, best first.
type Chain[T Named] struct {
	Primary   T
	Fallbacks []T
}

// AllOf flattens a chain into [primary, fallbacks...].
func AllOf[T Named](chain Chain[T]) []T {
	out := make([]T, 0, len(chain.Fallbacks)+1)
	out = append(out, chain.Primary)
	out = append(out, chain.Fallbacks...)
	return out
}

// Validate checks every provider exposes a non-empty name unique within the chain.
func (c Chain[T]) Validate() error {
	seen := make(map[string]struct{}, len(c.Fallbacks)+1)
	for _, p := range AllOf(c) {
		name := strings.TrimSpace(p.Name())
		if name == "" {
			return fmt.Errorf("provider chain: provider with empty name")
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("provider chain: duplicate provider name %q", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Result carries the successful value, the provider that produced it, and the tier.
type Result[T Named, R any] struct {
	Value    R
	Provider T
	Tier     Tier
}

// Options configures chain execution.
type Options struct {
	Stage string

	// OnFallback observes each provider transition. It must not affect control flow.
	OnFallback func(from, to string, err error)
}

type attemptError struct {
	provider string
	err      error
}

// Run attempts providers strictly in order. If every provider fails it
// raises an aggregated CRITICAL error listing all attempted providers.
func Run[T Named, R any](ctx context.Context, chain Chain[T], opts Options, op func(ctx context.Context, provider T) (R, error)) (Result[T, R], error) {
	var zero Result[T, R]
	providers := AllOf(chain)
	attempts := make([]attemptError, 0, len(providers))

	for i, p := range providers {
		value, err := op(ctx, p)
		if err == nil {
			tier := TierPrimary
			if i > 0 {
				tier = TierFallback
			}
			return Result[T, R]{Value: value, Provider: p, Tier: tier}, nil
		}
		attempts = append(attempts, attemptError{provider: p.Name(), err: err})

		if pipeerr.SeverityOf(err) != pipeerr.SeverityFallback {
			return zero, err
		}
		if i+1 < len(providers) {
			if opts.OnFallback != nil {
				opts.OnFallback(p.Name(), providers[i+1].Name(), err)
			}
			continue
		}
	}

	summary := make([]string, 0, len(attempts))
	var lastCause error
	for _, a := range attempts {
		summary = append(summary, fmt.Sprintf("%s: %v", a.provider, a.err))
		lastCause = a.err
	}
	agg := &pipeerr.Error{
		Severity: pipeerr.SeverityCritical,
		Code:     "ALL_PROVIDERS_FAILED",
		Stage:    opts.Stage,
		Message:  fmt.Sprintf("all providers failed: [%s]", strings.Join(summary, "; ")),
		Cause:    lastCause,
	}
	return zero, agg
}
