package stages

import (
	"context"
	"fmt"
	"path/filepath"

	"showrunner/internal/pipeerr"
	"showrunner/internal/provider"
	"showrunner/internal/stage"
)

// thumbnail generates the single cover image for the episode. It uses
// the same provider chain as visual generation so a generative outage
// still yields a stock or template cover.
type thumbnail struct {
	deps *Deps
}

func (s *thumbnail) ID() stage.ID { return stage.Thumbnail }

func (s *thumbnail) Execute(ctx context.Context, input stage.Input) (*stage.Output, error) {
	topic := stringField(input.Data, "topic")
	if topic == "" {
		return nil, pipeerr.Critical("THUMBNAIL_NO_TOPIC", string(s.ID()), fmt.Errorf("no topic upstream"))
	}
	title := stringField(input.Data, "title")
	if title == "" {
		title = topic
	}

	outputDir := filepath.Join(s.deps.Config.Paths.WorkDir, input.PipelineID, "thumbnail")
	result, info, err := s.deps.generateImages(ctx, s.ID(), provider.ImageRequest{
		Prompt:    fmt.Sprintf("Bold 16:9 video thumbnail for %q. High contrast focal subject, room for title text on the left.", title),
		Count:     1,
		OutputDir: outputDir,
	})
	if err != nil {
		return nil, err
	}
	if len(result.Paths) == 0 {
		return nil, pipeerr.Recoverable("THUMBNAIL_EMPTY", string(s.ID()), fmt.Errorf("provider returned no image"))
	}

	data := copyData(input.Data)
	data["thumbnailPath"] = result.Paths[0]
	return &stage.Output{
		Data:      data,
		Provider:  info,
		Artifacts: []string{result.Paths[0]},
	}, nil
}

func (s *thumbnail) HealthCheck(_ context.Context) stage.Health {
	return stage.Healthy(string(s.ID()))
}
