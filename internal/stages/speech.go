package stages

import (
	"context"
	"fmt"
	"path/filepath"

	"showrunner/internal/pipeerr"
	"showrunner/internal/provider"
	"showrunner/internal/stage"
)

// speechSynthesis renders the script to audio through the voice chain.
// Synthesis is the run's backbone: with no audio there is no episode, so
// chain exhaustion here is critical by construction.
type speechSynthesis struct {
	deps *Deps
}

func (s *speechSynthesis) ID() stage.ID { return stage.TTS }

func (s *speechSynthesis) Execute(ctx context.Context, input stage.Input) (*stage.Output, error) {
	script := stringField(input.Data, "script")
	if script == "" {
		return nil, pipeerr.Critical("TTS_NO_SCRIPT", string(s.ID()), fmt.Errorf("no script upstream"))
	}

	pronunciation := stringMapField(input.Data, "pronunciation")
	audioPath := filepath.Join(s.deps.Config.Paths.WorkDir, input.PipelineID, "episode.wav")

	result, info, err := s.deps.synthesize(ctx, s.ID(), provider.SpeechRequest{
		Script:        script,
		OutputPath:    audioPath,
		Pronunciation: pronunciation,
	})
	if err != nil {
		return nil, err
	}

	data := copyData(input.Data)
	data["audioPath"] = result.AudioPath
	data["audioDurationSecs"] = result.DurationSecs

	return &stage.Output{
		Data:      data,
		Provider:  info,
		Artifacts: []string{result.AudioPath},
		Quality: &stage.Quality{
			Measurements: map[string]any{"duration_secs": result.DurationSecs},
		},
	}, nil
}

func (s *speechSynthesis) HealthCheck(ctx context.Context) stage.Health {
	if s.deps.Config.TTS.APIKey == "" {
		return stage.Unhealthy(string(s.ID()), "tts api key missing")
	}
	return stage.Healthy(string(s.ID()))
}
