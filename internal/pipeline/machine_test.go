package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"showrunner/internal/config"
	"showrunner/internal/pipeerr"
	"showrunner/internal/pipeline"
	"showrunner/internal/qualitygate"
	"showrunner/internal/review"
	"showrunner/internal/stage"
	"showrunner/internal/testsupport"
	"showrunner/internal/topicqueue"
)

type behavior func(ctx context.Context, input stage.Input) (*stage.Output, error)

type scriptedStage struct {
	id    stage.ID
	calls *int
	run   behavior
}

func (s *scriptedStage) ID() stage.ID { return s.id }

func (s *scriptedStage) Execute(ctx context.Context, input stage.Input) (*stage.Output, error) {
	*s.calls++
	if s.run != nil {
		return s.run(ctx, input)
	}
	data := map[string]any{}
	for k, v := range input.Data {
		data[k] = v
	}
	data[string(s.id)] = "done"
	return &stage.Output{Data: data}, nil
}

func (s *scriptedStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(string(s.id))
}

type harness struct {
	cfg      *config.Config
	machine  *pipeline.Machine
	runs     *pipeline.Store
	topics   *topicqueue.Queue
	reviews  *review.Queue
	calls    map[stage.ID]*int
	handlers map[stage.ID]*scriptedStage
}

func newHarness(t *testing.T, behaviors map[stage.ID]behavior) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)

	h := &harness{
		cfg:      cfg,
		runs:     pipeline.NewStore(db),
		topics:   topicqueue.New(db, cfg.Workflow.TopicMaxRetries),
		reviews:  review.New(db),
		calls:    make(map[stage.ID]*int),
		handlers: make(map[stage.ID]*scriptedStage),
	}

	handlers := make([]stage.Handler, 0, len(stage.Order))
	for _, id := range stage.Order {
		calls := 0
		h.calls[id] = &calls
		scripted := &scriptedStage{id: id, calls: &calls, run: behaviors[id]}
		h.handlers[id] = scripted
		handlers = append(handlers, scripted)
	}
	registry, err := stage.NewRegistry(handlers...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	machine, err := pipeline.New(pipeline.Options{
		Store:    h.runs,
		Registry: registry,
		Config:   cfg,
		Topics:   h.topics,
		Reviews:  h.reviews,
	})
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	h.machine = machine
	return h
}

func TestStartRunsAllStagesInOrder(t *testing.T) {
	h := newHarness(t, nil)
	outcome, err := h.machine.Start(context.Background(), "2026-01-20")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	run := outcome.Run
	if run.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %s", run.Status)
	}
	if run.CompletedAt == nil {
		t.Fatal("completed run must carry a completion time")
	}
	for _, id := range stage.Order {
		if got := *h.calls[id]; got != 1 {
			t.Fatalf("stage %s executed %d times", id, got)
		}
		rec, ok := run.StageRecordFor(id)
		if !ok || rec.Status != pipeline.StageSucceeded {
			t.Fatalf("stage %s record: %#v", id, rec)
		}
	}
	if outcome.Gate == nil || outcome.Gate.Decision != qualitygate.DecisionAutoPublish {
		t.Fatalf("clean run must auto publish: %+v", outcome.Gate)
	}

	// Data accumulates through the whole sequence.
	last, _ := run.StageRecordFor(stage.Notify)
	if last.Data[string(stage.TopicSourcing)] != "done" {
		t.Fatalf("pipeline data did not flow: %#v", last.Data)
	}
}

func TestStartPersistsRunBeforeExecuting(t *testing.T) {
	var observed pipeline.Status
	var h *harness
	h = newHarness(t, map[stage.ID]behavior{
		stage.TopicSourcing: func(ctx context.Context, _ stage.Input) (*stage.Output, error) {
			persisted, err := h.runs.Get(ctx, "2026-01-20")
			if err != nil || persisted == nil {
				t.Fatalf("run not persisted before first stage: %v", err)
			}
			observed = persisted.Status
			return &stage.Output{Data: map[string]any{"topic": "deep sea mining"}}, nil
		},
	})

	if _, err := h.machine.Start(context.Background(), "2026-01-20"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if observed != pipeline.StatusRunning {
		t.Fatalf("expected running before first stage, got %s", observed)
	}
}

func TestRecoverableFailureDegradesAndContinues(t *testing.T) {
	h := newHarness(t, map[stage.ID]behavior{
		stage.Thumbnail: func(context.Context, stage.Input) (*stage.Output, error) {
			return nil, pipeerr.Recoverable("THUMBNAIL_FAILED", "thumbnail", errors.New("no frame"))
		},
	})

	outcome, err := h.machine.Start(context.Background(), "2026-01-20")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	run := outcome.Run
	if run.Status != pipeline.StatusCompleted {
		t.Fatalf("non-critical failure must not stop the run: %s", run.Status)
	}
	rec, _ := run.StageRecordFor(stage.Thumbnail)
	if rec.Status != pipeline.StageFailed {
		t.Fatalf("thumbnail record: %#v", rec)
	}
	for _, id := range []stage.ID{stage.UploadYouTube, stage.UploadShorts, stage.Notify} {
		if *h.calls[id] != 1 {
			t.Fatalf("stage %s did not run after recoverable failure", id)
		}
	}
	if len(run.Quality.DegradedStages) != 1 || run.Quality.DegradedStages[0] != "thumbnail" {
		t.Fatalf("degraded stages: %v", run.Quality.DegradedStages)
	}
	if outcome.Gate.Decision != qualitygate.DecisionAutoPublishWithWarning {
		t.Fatalf("one degraded stage should warn: %+v", outcome.Gate)
	}
}

func TestCriticalFailureHaltsAndQueuesTopic(t *testing.T) {
	h := newHarness(t, map[stage.ID]behavior{
		stage.TopicSourcing: func(context.Context, stage.Input) (*stage.Output, error) {
			return &stage.Output{Data: map[string]any{"topic": "deep sea mining"}}, nil
		},
		stage.TTS: func(context.Context, stage.Input) (*stage.Output, error) {
			return nil, pipeerr.Critical("TTS_ALL_FAILED", "tts", errors.New("all providers failed"))
		},
	})
	ctx := context.Background()

	outcome, err := h.machine.Start(ctx, "2026-01-20")
	if err == nil {
		t.Fatal("critical failure must surface as an error")
	}
	if pipeerr.CodeOf(err) != "TTS_ALL_FAILED" {
		t.Fatalf("unexpected code %s", pipeerr.CodeOf(err))
	}
	run := outcome.Run
	if run.Status != pipeline.StatusFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if outcome.Gate != nil {
		t.Fatal("failed run must make no publish decision")
	}
	for _, id := range []stage.ID{stage.Timestamps, stage.VisualGen, stage.Render} {
		if *h.calls[id] != 0 {
			t.Fatalf("stage %s must not run after a critical halt", id)
		}
	}

	queued, err := h.topics.Get(ctx, "2026-01-21")
	if err != nil {
		t.Fatalf("topic queue get: %v", err)
	}
	if queued == nil {
		t.Fatal("topic must be queued for the next day")
	}
	if queued.Topic != "deep sea mining" || queued.FailureStage != "tts" || queued.Status != topicqueue.StatusPending {
		t.Fatalf("queued topic mismatch: %+v", queued)
	}
	if queued.RetryCount != 0 {
		t.Fatalf("fresh queue entry must have retryCount 0, got %d", queued.RetryCount)
	}
}

func TestCriticalFailureWithoutTopicQueuesNothing(t *testing.T) {
	h := newHarness(t, map[stage.ID]behavior{
		stage.TopicSourcing: func(context.Context, stage.Input) (*stage.Output, error) {
			return nil, pipeerr.Critical("SOURCING_FAILED", "topic-sourcing", errors.New("feed down"))
		},
	})
	ctx := context.Background()

	if _, err := h.machine.Start(ctx, "2026-01-20"); err == nil {
		t.Fatal("expected error")
	}
	topics, err := h.topics.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(topics) != 0 {
		t.Fatalf("no topic selected, so nothing should be queued: %+v", topics)
	}
}

func TestFallbackProviderFeedsQualityGate(t *testing.T) {
	h := newHarness(t, map[stage.ID]behavior{
		stage.TTS: func(context.Context, stage.Input) (*stage.Output, error) {
			return &stage.Output{
				Data:     map[string]any{"audio": "show.wav"},
				Provider: &stage.ProviderInfo{Name: "standard", Tier: "fallback", Attempts: 2},
			}, nil
		},
	})

	outcome, err := h.machine.Start(context.Background(), "2026-01-20")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if outcome.Run.Quality.FallbacksUsed[0] != "tts:standard" {
		t.Fatalf("fallback not recorded: %v", outcome.Run.Quality.FallbacksUsed)
	}
	if outcome.Gate.Decision != qualitygate.DecisionHumanReview {
		t.Fatalf("tts fallback must force review: %+v", outcome.Gate)
	}

	// A blocking gate raises a review item for the operator.
	items, err := h.reviews.List(context.Background(), review.Filter{PipelineID: "2026-01-20"})
	if err != nil {
		t.Fatalf("review list: %v", err)
	}
	if len(items) != 1 || items[0].Type != review.TypeQuality {
		t.Fatalf("expected one quality review item, got %+v", items)
	}
}

func TestResumeReExecutesForwardOnly(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	// Persist a run whose first two stages already succeeded.
	sourced := time.Date(2026, 1, 20, 6, 0, 0, 0, time.UTC)
	run := &pipeline.Run{
		Date:         "2026-01-20",
		Status:       pipeline.StatusFailed,
		CurrentStage: stage.ScriptGen,
		StartedAt:    sourced,
		Topic:        "deep sea mining",
		ErrorMessage: "script generation failed",
		Stages: map[stage.ID]*pipeline.StageRecord{
			stage.TopicSourcing: {
				Status:     pipeline.StageSucceeded,
				DurationMs: 900,
				Data:       map[string]any{"topic": "deep sea mining"},
			},
			stage.Research: {
				Status:     pipeline.StageSucceeded,
				DurationMs: 7700,
				Data:       map[string]any{"topic": "deep sea mining", "research": "notes"},
			},
			stage.ScriptGen: {
				Status: pipeline.StageFailed,
				Error:  "script generation failed",
			},
		},
	}
	if err := h.runs.Save(ctx, run); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	var resumeInput map[string]any
	h.handlers[stage.ScriptGen].run = func(_ context.Context, input stage.Input) (*stage.Output, error) {
		resumeInput = input.Data
		return &stage.Output{Data: map[string]any{"script": "draft"}}, nil
	}

	outcome, err := h.machine.Resume(ctx, "2026-01-20", stage.ScriptGen)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}

	if *h.calls[stage.TopicSourcing] != 0 || *h.calls[stage.Research] != 0 {
		t.Fatal("stages before the resume point must not re-execute")
	}
	if *h.calls[stage.ScriptGen] != 1 {
		t.Fatal("resume point must re-execute")
	}
	if resumeInput["research"] != "notes" {
		t.Fatalf("resume must feed the prior persisted output forward: %#v", resumeInput)
	}

	final := outcome.Run
	if final.Status != pipeline.StatusCompleted {
		t.Fatalf("expected completed, got %s", final.Status)
	}
	if final.ErrorMessage != "" {
		t.Fatal("resume must clear the failure message")
	}

	// Earlier records survive byte-for-byte.
	persisted, err := h.runs.Get(ctx, "2026-01-20")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	research, _ := persisted.StageRecordFor(stage.Research)
	if research.DurationMs != 7700 || research.Data["research"] != "notes" {
		t.Fatalf("research record was touched: %#v", research)
	}
	sourcing, _ := persisted.StageRecordFor(stage.TopicSourcing)
	if sourcing.DurationMs != 900 {
		t.Fatalf("topic sourcing record was touched: %#v", sourcing)
	}
	script, _ := persisted.StageRecordFor(stage.ScriptGen)
	if script.Status != pipeline.StageSucceeded {
		t.Fatalf("script record not overwritten: %#v", script)
	}
}

func TestResumeUnknownStageRejected(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.machine.Resume(context.Background(), "2026-01-20", "definitely-not-a-stage"); err == nil {
		t.Fatal("unknown resume stage must be rejected")
	}
}

func TestStartRefusesTerminalRun(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	if _, err := h.machine.Start(ctx, "2026-01-20"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := h.machine.Start(ctx, "2026-01-20"); err == nil {
		t.Fatal("restarting a terminal run must fail")
	}
}
