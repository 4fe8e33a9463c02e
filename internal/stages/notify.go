package stages

import (
	"context"
	"fmt"

	"showrunner/internal/logging"
	"showrunner/internal/stage"
)

// notify closes out the run: it releases any queued topic the run
// consumed and records the publish summary. Run-level notifications
// (completion, review alerts) are sent by the pipeline once the
// quality gate has decided, so nothing here talks to ntfy directly.
type notify struct {
	deps *Deps
}

func (s *notify) ID() stage.ID { return stage.Notify }

func (s *notify) Execute(ctx context.Context, input stage.Input) (*stage.Output, error) {
	data := copyData(input.Data)
	var warnings []string

	if queuedDate := stringField(input.Data, "queuedTopicDate"); queuedDate != "" {
		if s.deps.Topics == nil {
			warnings = append(warnings, "queued topic not released: no topic queue configured")
		} else if err := s.deps.Topics.ClearQueuedTopic(ctx, queuedDate); err != nil {
			// The run already succeeded with this topic; a stale queue
			// row is an operator cleanup, not a failure.
			warnings = append(warnings, fmt.Sprintf("queued topic for %s not released: %v", queuedDate, err))
			s.deps.Logger.Warn("failed to release consumed queued topic",
				logging.String(logging.FieldStage, string(s.ID())),
				logging.Error(err))
		} else {
			delete(data, "queuedTopicDate")
		}
	}

	data["publishSummary"] = fmt.Sprintf("%s staged for youtube and shorts", stringField(input.Data, "title"))
	return &stage.Output{Data: data, Warnings: warnings}, nil
}

func (s *notify) HealthCheck(_ context.Context) stage.Health {
	return stage.Healthy(string(s.ID()))
}
