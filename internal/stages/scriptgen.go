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

const scriptSystem = `You write tight, conversational scripts for a daily technology news show.
Target 1100-1400 spoken words. Respond with JSON:
{"script": "...", "title": "...", "description": "..."}`

// Word-count band the gate treats as acceptable for a full episode.
const (
	scriptWordMin = 900
	scriptWordMax = 1700
)

type scriptGen struct {
	deps *Deps
}

func (s *scriptGen) ID() stage.ID { return stage.ScriptGen }

func (s *scriptGen) Execute(ctx context.Context, input stage.Input) (*stage.Output, error) {
	topic := stringField(input.Data, "topic")
	researchNotes := stringField(input.Data, "research")
	if topic == "" {
		return nil, pipeerr.Critical("SCRIPT_NO_TOPIC", string(s.ID()), fmt.Errorf("no topic selected upstream"))
	}

	result, info, err := s.deps.completeText(ctx, s.ID(), provider.TextRequest{
		System:   scriptSystem,
		Prompt:   fmt.Sprintf("Topic: %s\n\nResearch notes:\n%s", topic, researchNotes),
		JSONOnly: true,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Script      string `json:"script"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := llm.DecodeJSON(result.Content, &parsed); err != nil {
		return nil, pipeerr.Critical("SCRIPT_PARSE", string(s.ID()), err)
	}
	script := strings.TrimSpace(parsed.Script)
	if script == "" {
		return nil, pipeerr.Critical("SCRIPT_EMPTY", string(s.ID()), fmt.Errorf("model returned no script"))
	}

	words := len(strings.Fields(script))
	data := copyData(input.Data)
	data["script"] = script
	data["title"] = strings.TrimSpace(parsed.Title)
	data["description"] = strings.TrimSpace(parsed.Description)
	data["wordCount"] = words

	output := &stage.Output{
		Data:     data,
		Provider: info,
		Quality: &stage.Quality{
			Measurements: map[string]any{"word_count": words},
		},
	}
	if words < scriptWordMin || words > scriptWordMax {
		flag := "word-count-low"
		if words > scriptWordMax {
			flag = "word-count-high"
		}
		output.Quality.Flags = append(output.Quality.Flags, flag)
		output.Warnings = append(output.Warnings,
			fmt.Sprintf("script word count %d outside %d-%d", words, scriptWordMin, scriptWordMax))
	}
	return output, nil
}

func (s *scriptGen) HealthCheck(ctx context.Context) stage.Health {
	if s.deps.Config.LLM.APIKey == "" {
		return stage.Unhealthy(string(s.ID()), "llm api key missing")
	}
	return stage.Healthy(string(s.ID()))
}
