package stages

import (
	"context"
	"encoding/json"
	"fmt"

	"showrunner/internal/logging"
	"showrunner/internal/pipeerr"
	"showrunner/internal/provider"
	"showrunner/internal/provider/llm"
	"showrunner/internal/review"
	"showrunner/internal/stage"
)

const pronunciationSystem = `You check scripts for terms a text-to-speech voice will mispronounce.
Respond with JSON:
{"overrides": {"written": "spoken"}, "uncertain": ["terms you cannot confidently respell"]}`

// pronunciationCheck builds the override map for synthesis. Terms the
// model cannot confidently respell are raised to a human before the
// episode can publish.
type pronunciationCheck struct {
	deps *Deps
}

func (s *pronunciationCheck) ID() stage.ID { return stage.PronunciationCheck }

func (s *pronunciationCheck) Execute(ctx context.Context, input stage.Input) (*stage.Output, error) {
	script := stringField(input.Data, "script")
	if script == "" {
		return nil, pipeerr.Critical("PRONUNCIATION_NO_SCRIPT", string(s.ID()), fmt.Errorf("no script upstream"))
	}

	result, info, err := s.deps.completeText(ctx, s.ID(), provider.TextRequest{
		System:   pronunciationSystem,
		Prompt:   script,
		JSONOnly: true,
	})
	if err != nil {
		// A failed check never blocks the run; synthesis proceeds with
		// default pronunciation.
		return nil, pipeerr.Wrap(pipeerr.SeverityRecoverable, "PRONUNCIATION_FAILED", string(s.ID()), err)
	}

	var parsed struct {
		Overrides map[string]string `json:"overrides"`
		Uncertain []string          `json:"uncertain"`
	}
	if err := llm.DecodeJSON(result.Content, &parsed); err != nil {
		return nil, pipeerr.Wrap(pipeerr.SeverityRecoverable, "PRONUNCIATION_PARSE", string(s.ID()), err)
	}

	data := copyData(input.Data)
	data["pronunciation"] = parsed.Overrides

	output := &stage.Output{Data: data, Provider: info}
	if len(parsed.Uncertain) > 0 && s.deps.Reviews != nil {
		itemJSON, _ := json.Marshal(map[string]any{"uncertain": parsed.Uncertain})
		id, err := s.deps.Reviews.Add(ctx, review.AddInput{
			Type:       review.TypePronunciation,
			PipelineID: input.PipelineID,
			Stage:      string(s.ID()),
			ItemJSON:   string(itemJSON),
		})
		if err != nil {
			return nil, pipeerr.Wrap(pipeerr.SeverityRecoverable, "PRONUNCIATION_REVIEW", string(s.ID()), err)
		}
		s.deps.Logger.Info("pronunciation review raised",
			logging.String(logging.FieldStage, string(s.ID())),
			logging.String("review_id", id),
			logging.Int("uncertain_terms", len(parsed.Uncertain)),
		)
		output.Warnings = append(output.Warnings,
			fmt.Sprintf("%d terms need human pronunciation review", len(parsed.Uncertain)))
	}
	return output, nil
}

func (s *pronunciationCheck) HealthCheck(ctx context.Context) stage.Health {
	if s.deps.Config.LLM.APIKey == "" {
		return stage.Unhealthy(string(s.ID()), "llm api key missing")
	}
	return stage.Healthy(string(s.ID()))
}
