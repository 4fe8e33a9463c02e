package stages

import (
	"context"
	"fmt"
	"strings"

	"showrunner/internal/pipeerr"
	"showrunner/internal/stage"
)

// timestamps derives per-paragraph timecodes from the script and the
// synthesized audio duration. Pure transform: no providers, no retry
// overhead.
type timestamps struct {
	deps *Deps
}

func (s *timestamps) ID() stage.ID { return stage.Timestamps }

func (s *timestamps) Execute(_ context.Context, input stage.Input) (*stage.Output, error) {
	script := stringField(input.Data, "script")
	if script == "" {
		return nil, pipeerr.Critical("TIMESTAMPS_NO_SCRIPT", string(s.ID()), fmt.Errorf("no script upstream"))
	}
	duration, _ := input.Data["audioDurationSecs"].(float64)
	if duration <= 0 {
		return nil, pipeerr.Recoverable("TIMESTAMPS_NO_AUDIO", string(s.ID()), fmt.Errorf("no audio duration upstream"))
	}

	paragraphs := splitParagraphs(script)
	totalWords := 0
	for _, p := range paragraphs {
		totalWords += len(strings.Fields(p))
	}
	if totalWords == 0 {
		return nil, pipeerr.Recoverable("TIMESTAMPS_EMPTY", string(s.ID()), fmt.Errorf("script has no words"))
	}

	// Allocate time proportionally to word count. Good enough for
	// chapter markers; exact alignment is the renderer's job.
	marks := make([]map[string]any, 0, len(paragraphs))
	elapsed := 0.0
	for i, p := range paragraphs {
		words := len(strings.Fields(p))
		marks = append(marks, map[string]any{
			"index":    i,
			"startSec": elapsed,
			"text":     firstWords(p, 8),
		})
		elapsed += duration * float64(words) / float64(totalWords)
	}

	data := copyData(input.Data)
	data["timestamps"] = marks
	return &stage.Output{
		Data: data,
		Quality: &stage.Quality{
			Measurements: map[string]any{"chapter_count": len(marks)},
		},
	}, nil
}

func (s *timestamps) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(string(s.ID()))
}

func splitParagraphs(script string) []string {
	raw := strings.Split(script, "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
