package stageexec

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"showrunner/internal/logging"
	"showrunner/internal/pipeerr"
	"showrunner/internal/stage"
)

// CostTracker exposes the running total of provider spend. The executor
// reads it before and after a stage and attributes the delta to that
// stage.
type CostTracker interface {
	Total() float64
}

// Options controls the execution of one stage.
type Options struct {
	Logger  *slog.Logger
	Handler stage.Handler
	Input   stage.Input
	Costs   CostTracker
	// Timeout bounds the stage's wall-clock time. Zero means no limit.
	Timeout time.Duration
}

// Result is one completed stage execution with timing and cost stamped
// onto the handler's raw output.
type Result struct {
	Stage       stage.ID
	Output      *stage.Output
	StartedAt   time.Time
	CompletedAt time.Time
	DurationMs  int64
	Cost        float64
}

// Run executes one stage. On failure the returned error is always
// classified: errors the stage already tagged with a severity pass
// through unchanged, everything else is wrapped as CRITICAL.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Handler == nil {
		return nil, fmt.Errorf("stage handler is required")
	}
	id := opts.Handler.ID()

	stageCtx := logging.WithStage(ctx, string(id))
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, opts.Timeout)
		defer cancel()
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.WithContext(stageCtx, logger)
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(logger)
	}

	costBefore := 0.0
	if opts.Costs != nil {
		costBefore = opts.Costs.Total()
	}

	logger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
	)

	started := time.Now().UTC()
	output, err := opts.Handler.Execute(stageCtx, opts.Input)
	completed := time.Now().UTC()
	duration := completed.Sub(started).Milliseconds()

	cost := 0.0
	if opts.Costs != nil {
		cost = opts.Costs.Total() - costBefore
	}

	if err != nil {
		classified := pipeerr.Classify(err, string(id))
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String(logging.FieldSeverity, string(pipeerr.SeverityOf(classified))),
			logging.String(logging.FieldErrorCode, pipeerr.CodeOf(classified)),
			logging.Int64("duration_ms", duration),
			logging.Error(classified),
		)
		return &Result{
			Stage:       id,
			StartedAt:   started,
			CompletedAt: completed,
			DurationMs:  duration,
			Cost:        cost,
		}, classified
	}

	if output == nil {
		output = &stage.Output{}
	}

	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Int64("duration_ms", duration),
		logging.Float64("cost_usd", cost),
	}
	if output.Provider != nil {
		attrs = append(attrs,
			logging.String(logging.FieldProvider, output.Provider.Name),
			logging.String(logging.FieldTier, string(output.Provider.Tier)),
			logging.Int("attempts", output.Provider.Attempts),
		)
	}
	if output.Quality != nil && output.Quality.Degraded {
		attrs = append(attrs, logging.Bool("degraded", true))
	}
	logger.Info("stage completed", logging.Args(attrs...)...)

	return &Result{
		Stage:       id,
		Output:      output,
		StartedAt:   started,
		CompletedAt: completed,
		DurationMs:  duration,
		Cost:        cost,
	}, nil
}
