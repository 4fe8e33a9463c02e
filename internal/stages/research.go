package stages

import (
	"context"
	"fmt"

	"showrunner/internal/pipeerr"
	"showrunner/internal/provider"
	"showrunner/internal/provider/llm"
	"showrunner/internal/stage"
)

const researchSystem = `You are a meticulous researcher for a daily technology news show.
Produce research notes for the given topic and respond with JSON:
{"summary": "...", "facts": ["..."], "sources": ["..."]}`

type research struct {
	deps *Deps
}

func (s *research) ID() stage.ID { return stage.Research }

func (s *research) Execute(ctx context.Context, input stage.Input) (*stage.Output, error) {
	topic := stringField(input.Data, "topic")
	if topic == "" {
		return nil, pipeerr.Critical("RESEARCH_NO_TOPIC", string(s.ID()), fmt.Errorf("no topic selected upstream"))
	}

	result, info, err := s.deps.completeText(ctx, s.ID(), provider.TextRequest{
		System:   researchSystem,
		Prompt:   fmt.Sprintf("Topic: %s\nAngle: %s", topic, stringField(input.Data, "angle")),
		JSONOnly: true,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Summary string   `json:"summary"`
		Facts   []string `json:"facts"`
		Sources []string `json:"sources"`
	}
	if err := llm.DecodeJSON(result.Content, &parsed); err != nil {
		return nil, pipeerr.Critical("RESEARCH_PARSE", string(s.ID()), err)
	}

	output := &stage.Output{Provider: info}
	data := copyData(input.Data)
	data["research"] = parsed.Summary
	data["facts"] = parsed.Facts
	data["sources"] = parsed.Sources
	output.Data = data

	// Thin sourcing is survivable but worth surfacing to the gate.
	if len(parsed.Facts) < 3 {
		output.Quality = &stage.Quality{
			Degraded:     true,
			Measurements: map[string]any{"fact_count": len(parsed.Facts)},
		}
		output.Warnings = append(output.Warnings, "research produced fewer than 3 supporting facts")
	}
	return output, nil
}

func (s *research) HealthCheck(ctx context.Context) stage.Health {
	if s.deps.Config.LLM.APIKey == "" {
		return stage.Unhealthy(string(s.ID()), "llm api key missing")
	}
	return stage.Healthy(string(s.ID()))
}
