package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/fallback"
	"showrunner/internal/logging"
	"showrunner/internal/metrics"
	"showrunner/internal/notifications"
	"showrunner/internal/pipeerr"
	"showrunner/internal/qualitygate"
	"showrunner/internal/review"
	"showrunner/internal/stage"
	"showrunner/internal/stageexec"
	"showrunner/internal/topicqueue"
)

// Machine drives one pipeline run at a time through the fixed stage
// order. All collaborators are passed in explicitly; the machine holds no
// global state.
type Machine struct {
	store    *Store
	registry *stage.Registry
	cfg      *config.Config
	logger   *slog.Logger
	topics   *topicqueue.Queue
	reviews  *review.Queue
	notifier notifications.Service
	costs    stageexec.CostTracker
	now      func() time.Time
}

// Options wires the machine's collaborators. Store, Registry, and Config
// are required; the rest degrade gracefully when absent.
type Options struct {
	Store    *Store
	Registry *stage.Registry
	Config   *config.Config
	Logger   *slog.Logger
	Topics   *topicqueue.Queue
	Reviews  *review.Queue
	Notifier notifications.Service
	Costs    stageexec.CostTracker
	Clock    func() time.Time
}

// New validates the wiring and constructs a machine.
func New(opts Options) (*Machine, error) {
	if opts.Store == nil {
		return nil, errors.New("pipeline store is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("stage registry is required")
	}
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}
	return &Machine{
		store:    opts.Store,
		registry: opts.Registry,
		cfg:      opts.Config,
		logger:   logging.NewComponentLogger(logger, "pipeline"),
		topics:   opts.Topics,
		reviews:  opts.Reviews,
		notifier: opts.Notifier,
		costs:    opts.Costs,
		now:      now,
	}, nil
}

// Outcome is the result of driving a run to a terminal state. Gate is nil
// when the run failed before a publish decision could be made.
type Outcome struct {
	Run  *Run
	Gate *qualitygate.Result
}

// Start begins a fresh run for the given logical date. The run is
// persisted as running before the first stage executes, so a crash leaves
// a resumable record behind.
func (m *Machine) Start(ctx context.Context, date string) (*Outcome, error) {
	if existing, err := m.store.Get(ctx, date); err != nil {
		return nil, err
	} else if existing != nil && existing.Status.Terminal() {
		return nil, fmt.Errorf("run for %s already %s; use resume to re-execute", date, existing.Status)
	}

	run := &Run{
		Date:         date,
		Status:       StatusRunning,
		CurrentStage: stage.First(),
		StartedAt:    m.now().UTC(),
		Stages:       make(map[stage.ID]*StageRecord),
	}
	if err := m.store.Save(ctx, run); err != nil {
		return nil, err
	}

	runCtx := logging.WithRunDate(ctx, date)
	if m.notifier != nil {
		if err := m.notifier.NotifyRunStarted(runCtx, date, ""); err != nil {
			m.logger.Debug("run start notification failed", logging.Error(err))
		}
	}

	return m.execute(runCtx, run, 0, nil)
}

// Resume re-executes a persisted run forward from the named stage. Stages
// strictly before it are treated as complete: their persisted records are
// never touched, and the resume point receives the most recent preceding
// output as its input.
func (m *Machine) Resume(ctx context.Context, date string, from stage.ID) (*Outcome, error) {
	idx, ok := stage.Index(from)
	if !ok {
		return nil, fmt.Errorf("unknown resume stage %q", from)
	}
	run, err := m.store.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("no run found for %s", date)
	}

	data := m.priorOutput(run, idx)

	run.Status = StatusRunning
	run.CurrentStage = from
	run.CompletedAt = nil
	run.ErrorMessage = ""
	if err := m.store.Save(ctx, run); err != nil {
		return nil, err
	}

	runCtx := logging.WithRunDate(ctx, date)
	m.logger.Info("resuming run",
		logging.String(logging.FieldEventType, "run_resume"),
		logging.String(logging.FieldRunDate, date),
		logging.String(logging.FieldStage, string(from)),
	)
	return m.execute(runCtx, run, idx, data)
}

// priorOutput finds the persisted output of the closest succeeded stage
// before the resume index.
func (m *Machine) priorOutput(run *Run, resumeIdx int) map[string]any {
	for i := resumeIdx - 1; i >= 0; i-- {
		rec, ok := run.Stages[stage.Order[i]]
		if ok && rec.Status == StageSucceeded && rec.Data != nil {
			return rec.Data
		}
	}
	return nil
}

// execute drives the run forward from startIdx to the end of the order,
// persisting after every stage transition.
func (m *Machine) execute(ctx context.Context, run *Run, startIdx int, data map[string]any) (*Outcome, error) {
	previous := stage.ID("")
	if startIdx > 0 {
		previous = stage.Order[startIdx-1]
	}

	for i := startIdx; i < len(stage.Order); i++ {
		id := stage.Order[i]
		handler, ok := m.registry.Handler(id)
		if !ok {
			return nil, fmt.Errorf("no handler bound for stage %q", id)
		}

		started := m.now().UTC()
		record := &StageRecord{Status: StageRunning, StartedAt: &started}
		run.CurrentStage = id
		run.Stages[id] = record
		if err := m.store.Save(ctx, run); err != nil {
			return nil, err
		}

		result, err := stageexec.Run(ctx, stageexec.Options{
			Logger:  m.logger,
			Handler: handler,
			Costs:   m.costs,
			Timeout: time.Duration(m.cfg.StageTimeoutSeconds(string(id))) * time.Second,
			Input: stage.Input{
				PipelineID:    run.Date,
				PreviousStage: previous,
				Data:          data,
				Config:        m.cfg,
			},
		})

		if err != nil {
			m.recordFailure(record, result, err)
			metrics.StagesTotal.WithLabelValues(string(id), "failed").Inc()
			if pipeerr.SeverityOf(err) == pipeerr.SeverityCritical {
				return m.halt(ctx, run, id, err)
			}
			// Non-critical stage failures degrade the run but never
			// block it.
			run.Quality.AddDegraded(string(id))
			if err := m.store.Save(ctx, run); err != nil {
				return nil, err
			}
			previous = id
			continue
		}

		m.recordSuccess(run, record, result)
		metrics.StagesTotal.WithLabelValues(string(id), "succeeded").Inc()
		if id == stage.TopicSourcing {
			if topic, ok := result.Output.Data["topic"].(string); ok {
				run.Topic = topic
			}
		}
		if err := m.store.Save(ctx, run); err != nil {
			return nil, err
		}

		data = result.Output.Data
		previous = id
	}

	return m.complete(ctx, run)
}

func (m *Machine) recordFailure(record *StageRecord, result *stageexec.Result, err error) {
	record.Status = StageFailed
	record.Error = err.Error()
	if result != nil {
		completed := result.CompletedAt
		record.CompletedAt = &completed
		record.DurationMs = result.DurationMs
		record.Cost = result.Cost
	}
}

func (m *Machine) recordSuccess(run *Run, record *StageRecord, result *stageexec.Result) {
	completed := result.CompletedAt
	record.Status = StageSucceeded
	record.CompletedAt = &completed
	record.DurationMs = result.DurationMs
	record.Cost = result.Cost
	record.Data = result.Output.Data
	record.Provider = result.Output.Provider
	record.Artifacts = result.Output.Artifacts
	record.Warnings = result.Output.Warnings

	stageName := string(result.Stage)
	if p := result.Output.Provider; p != nil && p.Tier == fallback.TierFallback {
		run.Quality.AddFallback(stageName, p.Name)
	}
	if q := result.Output.Quality; q != nil {
		if q.Degraded {
			run.Quality.AddDegraded(stageName)
		}
		for _, flag := range q.Flags {
			run.Quality.AddFlag(flag)
		}
	}
}

// halt marks the run failed after a critical stage error and queues the
// selected topic for tomorrow's run.
func (m *Machine) halt(ctx context.Context, run *Run, failedStage stage.ID, cause error) (*Outcome, error) {
	run.Status = StatusFailed
	run.ErrorMessage = cause.Error()
	if err := m.store.Save(ctx, run); err != nil {
		return nil, err
	}
	metrics.RunsTotal.WithLabelValues(string(StatusFailed)).Inc()

	m.logger.Error("run failed",
		logging.String(logging.FieldEventType, "run_failed"),
		logging.String(logging.FieldRunDate, run.Date),
		logging.String(logging.FieldStage, string(failedStage)),
		logging.String(logging.FieldErrorCode, pipeerr.CodeOf(cause)),
		logging.Error(cause),
	)

	if run.Topic != "" && m.topics != nil {
		targetDate, err := m.topics.QueueFailedTopic(ctx, run.Topic, pipeerr.CodeOf(cause), string(failedStage), run.Date)
		if err != nil {
			m.logger.Error("failed to queue topic for retry", logging.Error(err))
		} else {
			m.logger.Info("topic queued for retry",
				logging.String(logging.FieldEventType, "topic_queued"),
				logging.String("target_date", targetDate),
			)
			if m.notifier != nil {
				if err := m.notifier.NotifyTopicQueued(ctx, run.Topic, targetDate); err != nil {
					m.logger.Debug("topic queue notification failed", logging.Error(err))
				}
			}
		}
	}

	if m.notifier != nil {
		if err := m.notifier.NotifyRunFailed(ctx, run.Date, failedStage.Label(), cause); err != nil {
			m.logger.Debug("run failure notification failed", logging.Error(err))
		}
	}

	return &Outcome{Run: run}, cause
}

// complete finalizes a run in which every stage executed, consults the
// quality gate, and raises a review item when the gate demands a human.
func (m *Machine) complete(ctx context.Context, run *Run) (*Outcome, error) {
	completed := m.now().UTC()
	run.Status = StatusCompleted
	run.CompletedAt = &completed
	if err := m.store.Save(ctx, run); err != nil {
		return nil, err
	}

	pendingCritical := false
	if m.reviews != nil {
		var err error
		pendingCritical, err = m.reviews.HasPendingCritical(ctx)
		if err != nil {
			return nil, fmt.Errorf("check pending reviews: %w", err)
		}
	}
	gate := qualitygate.Decide(run.Quality, pendingCritical)
	metrics.RunsTotal.WithLabelValues(string(StatusCompleted)).Inc()
	metrics.GateDecisions.WithLabelValues(string(gate.Decision)).Inc()
	metrics.RunCostUSD.Add(run.TotalCost())

	m.logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_completed"),
		logging.String(logging.FieldRunDate, run.Date),
		logging.String("decision", string(gate.Decision)),
		logging.Int("issues", len(gate.Issues)),
		logging.Float64("total_cost", run.TotalCost()),
	)

	if gate.Blocked() && m.reviews != nil {
		if _, err := m.reviews.Add(ctx, review.AddInput{
			Type:        review.TypeQuality,
			PipelineID:  run.Date,
			Stage:       string(stage.Notify),
			ItemJSON:    fmt.Sprintf("{\"reason\":%q}", gate.Reason),
			ContextJSON: fmt.Sprintf("{\"issues\":%d}", len(gate.Issues)),
		}); err != nil {
			m.logger.Error("failed to raise gate review item", logging.Error(err))
		}
		if m.notifier != nil {
			if err := m.notifier.NotifyReviewNeeded(ctx, run.Date, gate.Reason, len(gate.Issues)); err != nil {
				m.logger.Debug("review notification failed", logging.Error(err))
			}
		}
	} else if m.notifier != nil {
		if err := m.notifier.NotifyRunCompleted(ctx, run.Date, string(gate.Decision), run.TotalCost(), completed.Sub(run.StartedAt)); err != nil {
			m.logger.Debug("run completion notification failed", logging.Error(err))
		}
	}

	return &Outcome{Run: run, Gate: &gate}, nil
}
