package api

import (
	"time"

	"showrunner/internal/pipeline"
	"showrunner/internal/review"
	"showrunner/internal/topicqueue"
)

// HealthResponse reports process and stage readiness.
type HealthResponse struct {
	Status   string        `json:"status"`
	Database string        `json:"database,omitempty"`
	Stages   []StageHealth `json:"stages,omitempty"`
}

// StageHealth mirrors one stage handler's readiness check.
type StageHealth struct {
	Stage  string `json:"stage"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// RunSummary is the list-view projection of a run.
type RunSummary struct {
	Date         string     `json:"date"`
	Status       string     `json:"status"`
	CurrentStage string     `json:"currentStage"`
	Topic        string     `json:"topic,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	TotalCostUSD float64    `json:"totalCostUsd"`
	Error        string     `json:"error,omitempty"`
}

// StatusResponse is the operator dashboard payload.
type StatusResponse struct {
	Runs           []RunSummary `json:"runs"`
	PendingReviews int          `json:"pendingReviews"`
	QueuedTopics   int          `json:"queuedTopics"`
}

type RunListResponse struct {
	Runs []RunSummary `json:"runs"`
}

type RunDetailResponse struct {
	Run *pipeline.Run `json:"run"`
}

type ReviewListResponse struct {
	Items []*review.Item `json:"items"`
}

type TopicListResponse struct {
	Topics []*topicqueue.QueuedTopic `json:"topics"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func summarizeRuns(runs []*pipeline.Run) []RunSummary {
	out := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunSummary{
			Date:         run.Date,
			Status:       string(run.Status),
			CurrentStage: string(run.CurrentStage),
			Topic:        run.Topic,
			StartedAt:    run.StartedAt,
			CompletedAt:  run.CompletedAt,
			TotalCostUSD: run.TotalCost(),
			Error:        run.ErrorMessage,
		})
	}
	return out
}
