package stages

import (
	"context"
	"fmt"
	"strings"

	"showrunner/internal/pipeerr"
	"showrunner/internal/provider"
	"showrunner/internal/provider/llm"
	"showrunner/internal/stage"
)

const topicSourcingSystem = `You are the editorial lead for a daily technology news show.
Pick exactly one strong topic for today's episode and respond with JSON:
{"topic": "...", "angle": "...", "rationale": "..."}`

// topicSourcing selects today's topic. A topic queued by a previous
// failed run takes priority over fresh sourcing; an abandoned queue entry
// falls through to fresh sourcing.
type topicSourcing struct {
	deps *Deps
}

func (s *topicSourcing) ID() stage.ID { return stage.TopicSourcing }

func (s *topicSourcing) Execute(ctx context.Context, input stage.Input) (*stage.Output, error) {
	if s.deps.Topics != nil {
		queued, err := s.deps.Topics.CheckTodayQueuedTopic(ctx)
		if err != nil {
			return nil, pipeerr.Critical("TOPIC_QUEUE_READ", string(s.ID()), err)
		}
		if queued != nil {
			retried, err := s.deps.Topics.IncrementRetryCount(ctx, queued.TargetDate)
			if err != nil {
				return nil, pipeerr.Critical("TOPIC_QUEUE_UPDATE", string(s.ID()), err)
			}
			if retried != nil {
				return &stage.Output{
					Data: map[string]any{
						"topic":           retried.Topic,
						"angle":           "retry of " + retried.OriginalDate + " failure at " + retried.FailureStage,
						"queuedTopicDate": retried.TargetDate,
						"retryCount":      retried.RetryCount,
					},
					Warnings: []string{fmt.Sprintf("retrying queued topic from %s", retried.OriginalDate)},
				}, nil
			}
			// Retry budget exhausted; the entry is now abandoned and we
			// source fresh.
		}
	}

	result, info, err := s.deps.completeText(ctx, s.ID(), provider.TextRequest{
		System:   topicSourcingSystem,
		Prompt:   "Pick today's topic for pipeline run " + input.PipelineID + ".",
		JSONOnly: true,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Topic string `json:"topic"`
		Angle string `json:"angle"`
	}
	if err := llm.DecodeJSON(result.Content, &parsed); err != nil {
		return nil, pipeerr.Critical("TOPIC_PARSE", string(s.ID()), err)
	}
	parsed.Topic = strings.TrimSpace(parsed.Topic)
	if parsed.Topic == "" {
		return nil, pipeerr.Critical("TOPIC_EMPTY", string(s.ID()), fmt.Errorf("model returned no topic"))
	}

	return &stage.Output{
		Data: map[string]any{
			"topic": parsed.Topic,
			"angle": strings.TrimSpace(parsed.Angle),
		},
		Provider: info,
	}, nil
}

func (s *topicSourcing) HealthCheck(ctx context.Context) stage.Health {
	if s.deps.Config.LLM.APIKey == "" {
		return stage.Unhealthy(string(s.ID()), "llm api key missing")
	}
	return stage.Healthy(string(s.ID()))
}
