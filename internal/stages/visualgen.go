package stages

import (
	"context"
	"fmt"
	"path/filepath"

	"showrunner/internal/pipeerr"
	"showrunner/internal/provider"
	"showrunner/internal/stage"
)

const visualCount = 5

// visualGen produces the background imagery for the episode via the
// image provider chain (generative, then stock, then the plain
// template card).
type visualGen struct {
	deps *Deps
}

func (s *visualGen) ID() stage.ID { return stage.VisualGen }

func (s *visualGen) Execute(ctx context.Context, input stage.Input) (*stage.Output, error) {
	topic := stringField(input.Data, "topic")
	if topic == "" {
		return nil, pipeerr.Critical("VISUAL_NO_TOPIC", string(s.ID()), fmt.Errorf("no topic upstream"))
	}

	outputDir := filepath.Join(s.deps.Config.Paths.WorkDir, input.PipelineID, "visuals")
	prompt := fmt.Sprintf("Wide 16:9 editorial illustration for a video essay about %q. Muted palette, no text overlays.", topic)
	if summary := stringField(input.Data, "research"); summary != "" {
		prompt = fmt.Sprintf("%s Context: %s", prompt, firstWords(summary, 40))
	}

	result, info, err := s.deps.generateImages(ctx, s.ID(), provider.ImageRequest{
		Prompt:    prompt,
		Count:     visualCount,
		OutputDir: outputDir,
	})
	if err != nil {
		return nil, err
	}

	data := copyData(input.Data)
	data["visualPaths"] = result.Paths
	out := &stage.Output{
		Data:      data,
		Provider:  info,
		Artifacts: append([]string(nil), result.Paths...),
		Quality: &stage.Quality{
			Measurements: map[string]any{"image_count": len(result.Paths)},
		},
	}
	if len(result.Paths) < visualCount {
		out.Quality.Degraded = true
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("only %d of %d visuals produced", len(result.Paths), visualCount))
	}
	return out, nil
}

func (s *visualGen) HealthCheck(_ context.Context) stage.Health {
	// Template generation needs no credentials, so the chain is always
	// usable even without API keys.
	return stage.Healthy(string(s.ID()))
}
