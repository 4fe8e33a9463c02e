package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"showrunner/internal/pipeerr"
	"showrunner/internal/stage"
)

// upload stages the finished episode for a publishing platform by
// writing an upload manifest into the data directory. The manifest is
// what the external publisher daemon picks up; this process never
// talks to platform APIs directly.
type upload struct {
	deps     *Deps
	id       stage.ID
	platform string
}

type uploadManifest struct {
	Platform    string    `json:"platform"`
	PipelineID  string    `json:"pipelineId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	VideoPath   string    `json:"videoPath"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Chapters    any       `json:"chapters,omitempty"`
	StagedAt    time.Time `json:"stagedAt"`
}

func (s *upload) ID() stage.ID { return s.id }

func (s *upload) Execute(_ context.Context, input stage.Input) (*stage.Output, error) {
	videoPath := stringField(input.Data, "videoPath")
	if videoPath == "" {
		return nil, pipeerr.Critical("UPLOAD_NO_VIDEO", string(s.id), fmt.Errorf("no rendered video upstream"))
	}

	manifest := uploadManifest{
		Platform:    s.platform,
		PipelineID:  input.PipelineID,
		Title:       stringField(input.Data, "title"),
		Description: stringField(input.Data, "description"),
		VideoPath:   videoPath,
		Thumbnail:   stringField(input.Data, "thumbnailPath"),
		Chapters:    input.Data["timestamps"],
		StagedAt:    time.Now().UTC(),
	}
	payload, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, pipeerr.Critical("UPLOAD_MANIFEST_ENCODE", string(s.id), err)
	}

	manifestPath := filepath.Join(s.deps.Config.Paths.DataDir, "uploads",
		fmt.Sprintf("%s-%s.json", input.PipelineID, s.platform))
	if err := writeTextFile(manifestPath, string(payload)); err != nil {
		return nil, pipeerr.Recoverable("UPLOAD_MANIFEST_WRITE", string(s.id), err)
	}

	data := copyData(input.Data)
	data[s.platform+"ManifestPath"] = manifestPath
	return &stage.Output{
		Data:      data,
		Artifacts: []string{manifestPath},
	}, nil
}

func (s *upload) HealthCheck(_ context.Context) stage.Health {
	return stage.Healthy(string(s.id))
}
