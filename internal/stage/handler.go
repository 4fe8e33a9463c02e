package stage

import (
	"context"
	"log/slog"

	"showrunner/internal/config"
	"showrunner/internal/fallback"
)

// Input is the envelope handed to every stage. Data carries the previous
// stage's output payload; the orchestrator never inspects its internals.
type Input struct {
	PipelineID    string
	PreviousStage ID
	Data          map[string]any
	Config        *config.Config
}

// ProviderInfo records which provider served a stage and at what tier.
type ProviderInfo struct {
	Name     string        `json:"name"`
	Tier     fallback.Tier `json:"tier"`
	Attempts int           `json:"attempts"`
}

// Quality carries the quality signals a stage chooses to report. Degraded
// marks the stage as completed below its quality target; Flags feed the
// run's quality context verbatim.
type Quality struct {
	Degraded     bool           `json:"degraded"`
	Measurements map[string]any `json:"measurements,omitempty"`
	Flags        []string       `json:"flags,omitempty"`
}

// Output is a stage's raw result before the executor stamps timing and
// cost onto it.
type Output struct {
	Data      map[string]any
	Quality   *Quality
	Provider  *ProviderInfo
	Artifacts []string
	Warnings  []string
}

// Handler is the contract the state machine needs from each stage.
type Handler interface {
	ID() ID
	Execute(context.Context, Input) (*Output, error)
	HealthCheck(context.Context) Health
}

// LoggerAware lets the executor hand a stage-scoped logger to handlers
// that want one.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
