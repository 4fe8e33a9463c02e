package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"showrunner/internal/api"
	"showrunner/internal/logging"
	"showrunner/internal/pipeline"
	"showrunner/internal/review"
	"showrunner/internal/stage"
	"showrunner/internal/testsupport"
	"showrunner/internal/topicqueue"
)

type fixture struct {
	server  *httptest.Server
	runs    *pipeline.Store
	reviews *review.Queue
	topics  *topicqueue.Queue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	db := testsupport.MustOpenDB(t, cfg)
	runs := pipeline.NewStore(db)
	reviews := review.New(db)
	topics := topicqueue.New(db, cfg.Workflow.TopicMaxRetries)

	srv, err := api.New(api.Options{
		Config:  cfg,
		Logger:  logging.NewNop(),
		DB:      db,
		Runs:    runs,
		Reviews: reviews,
		Topics:  topics,
	})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{server: ts, runs: runs, reviews: reviews, topics: topics}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func seedRun(t *testing.T, runs *pipeline.Store, date string, status pipeline.Status) {
	t.Helper()
	run := &pipeline.Run{
		Date:         date,
		Status:       status,
		CurrentStage: stage.Notify,
		StartedAt:    time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC),
		Topic:        "eBPF in production",
		Stages:       map[stage.ID]*pipeline.StageRecord{},
	}
	if err := runs.Save(context.Background(), run); err != nil {
		t.Fatalf("Save: %v", err)
	}
}

func TestHealthzReportsOK(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var payload api.HealthResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Status != "ok" {
		t.Errorf("health status = %q", payload.Status)
	}
}

func TestStatusCountsPendingWork(t *testing.T) {
	f := newFixture(t)
	seedRun(t, f.runs, "2026-03-14", pipeline.StatusCompleted)
	if _, err := f.reviews.Add(context.Background(), review.AddInput{
		Type:       review.TypeQuality,
		PipelineID: "2026-03-14",
	}); err != nil {
		t.Fatalf("Add review: %v", err)
	}
	if _, err := f.topics.QueueFailedTopic(context.Background(), "WASM runtimes", "TTS_TIMEOUT", "tts", "2026-03-14"); err != nil {
		t.Fatalf("QueueFailedTopic: %v", err)
	}

	resp, body := f.get(t, "/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var payload api.StatusResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Runs) != 1 || payload.Runs[0].Date != "2026-03-14" {
		t.Errorf("runs = %+v", payload.Runs)
	}
	if payload.PendingReviews != 1 {
		t.Errorf("pendingReviews = %d", payload.PendingReviews)
	}
	if payload.QueuedTopics != 1 {
		t.Errorf("queuedTopics = %d", payload.QueuedTopics)
	}
}

func TestRunDetailAndNotFound(t *testing.T) {
	f := newFixture(t)
	seedRun(t, f.runs, "2026-03-14", pipeline.StatusFailed)

	resp, body := f.get(t, "/api/runs/2026-03-14")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var payload api.RunDetailResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Run == nil || payload.Run.Topic != "eBPF in production" {
		t.Errorf("run = %+v", payload.Run)
	}

	resp, _ = f.get(t, "/api/runs/2026-01-01")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing run status = %d", resp.StatusCode)
	}
}

func TestReviewsFilterByStatus(t *testing.T) {
	f := newFixture(t)
	id, err := f.reviews.Add(context.Background(), review.AddInput{
		Type:       review.TypePronunciation,
		PipelineID: "2026-03-14",
	})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := f.reviews.Resolve(context.Background(), id, "use override", "alice"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	resp, body := f.get(t, "/api/reviews?status=pending")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var payload api.ReviewListResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Items) != 0 {
		t.Errorf("pending items = %+v, want none after resolve", payload.Items)
	}
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	f := newFixture(t)

	resp, body := f.get(t, "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected default process metrics in scrape output")
	}
}

func TestRequestIDGeneratedAndEchoed(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.get(t, "/healthz")
	generated := resp.Header.Get("X-Request-ID")
	if generated == "" {
		t.Fatal("response missing generated request id")
	}
	if _, err := uuid.Parse(generated); err != nil {
		t.Fatalf("generated request id %q is not a uuid: %v", generated, err)
	}

	req, err := http.NewRequest(http.MethodGet, f.server.URL+"/healthz", nil)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("X-Request-ID", "caller-supplied-7")
	echo, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	echo.Body.Close()
	if got := echo.Header.Get("X-Request-ID"); got != "caller-supplied-7" {
		t.Fatalf("request id = %q, want caller-supplied-7", got)
	}
}

func TestMutatingMethodsRejected(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.server.URL+"/api/runs", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
