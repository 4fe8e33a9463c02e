package stages

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"showrunner/internal/pipeerr"
	"showrunner/internal/stage"
)

// render combines the synthesized audio and the visuals into the final
// episode video with ffmpeg. A render failure is unrecoverable for the
// run: there is nothing to publish without a video.
type render struct {
	deps *Deps
}

func (s *render) ID() stage.ID { return stage.Render }

func (s *render) Execute(ctx context.Context, input stage.Input) (*stage.Output, error) {
	audioPath := stringField(input.Data, "audioPath")
	if audioPath == "" {
		return nil, pipeerr.Critical("RENDER_NO_AUDIO", string(s.ID()), fmt.Errorf("no audio upstream"))
	}
	visuals := stringSliceField(input.Data, "visualPaths")
	if len(visuals) == 0 {
		return nil, pipeerr.Critical("RENDER_NO_VISUALS", string(s.ID()), fmt.Errorf("no visuals upstream"))
	}

	workDir := filepath.Join(s.deps.Config.Paths.WorkDir, input.PipelineID)
	videoPath := filepath.Join(workDir, "episode.mp4")
	concatPath := filepath.Join(workDir, "visuals.txt")
	duration, _ := input.Data["audioDurationSecs"].(float64)
	if err := writeConcatList(concatPath, visuals, duration); err != nil {
		return nil, pipeerr.Critical("RENDER_CONCAT_LIST", string(s.ID()), err)
	}

	args := []string{
		"-y",
		"-f", "concat", "-safe", "0", "-i", concatPath,
		"-i", audioPath,
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-r", "30",
		"-c:a", "aac", "-b:a", "192k",
		"-shortest",
		videoPath,
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, pipeerr.Critical("RENDER_FAILED", string(s.ID()),
			fmt.Errorf("ffmpeg: %w: %s", err, tail(string(out), 400)))
	}

	data := copyData(input.Data)
	data["videoPath"] = videoPath
	return &stage.Output{
		Data:      data,
		Artifacts: []string{videoPath},
		Quality: &stage.Quality{
			Measurements: map[string]any{"duration_secs": duration},
		},
	}, nil
}

func (s *render) HealthCheck(_ context.Context) stage.Health {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return stage.Unhealthy(string(s.ID()), "ffmpeg not found in PATH")
	}
	return stage.Healthy(string(s.ID()))
}

// writeConcatList writes an ffmpeg concat demuxer list splitting the
// audio duration evenly across the visuals.
func writeConcatList(path string, visuals []string, duration float64) error {
	per := 5.0
	if duration > 0 {
		per = duration / float64(len(visuals))
	}
	var b strings.Builder
	for _, v := range visuals {
		fmt.Fprintf(&b, "file '%s'\n", v)
		fmt.Fprintf(&b, "duration %.2f\n", per)
	}
	// The concat demuxer ignores the last duration unless the final
	// entry is repeated.
	fmt.Fprintf(&b, "file '%s'\n", visuals[len(visuals)-1])
	return writeTextFile(path, b.String())
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
