package imagegen

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"showrunner/internal/pipeerr"
	"showrunner/internal/provider"
)

// Template renders flat branded placeholder frames locally. It is the
// chain's last resort: no network, no spend, and the only way it fails is
// a disk error.
type Template struct {
	background color.RGBA
	width      int
	height     int
}

// NewTemplate constructs the local placeholder provider.
func NewTemplate() *Template {
	return &Template{
		background: color.RGBA{R: 0x1e, G: 0x24, B: 0x38, A: 0xff},
		width:      1920,
		height:     1080,
	}
}

// Name identifies this provider within its chain.
func (t *Template) Name() string { return "template" }

// EstimateCost is always zero for local rendering.
func (t *Template) EstimateCost(int) float64 { return 0 }

// Generate writes count placeholder frames to req.OutputDir.
func (t *Template) Generate(_ context.Context, req provider.ImageRequest) (provider.ImageResult, error) {
	var empty provider.ImageResult
	if strings.TrimSpace(req.OutputDir) == "" {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "IMG_NO_OUTPUT", "", "output dir is required")
	}
	count := req.Count
	if count <= 0 {
		count = 1
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return empty, pipeerr.New(pipeerr.SeverityCritical, "IMG_WRITE", "", err.Error())
	}

	frame := image.NewRGBA(image.Rect(0, 0, t.width, t.height))
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			frame.SetRGBA(x, y, t.background)
		}
	}

	paths := make([]string, 0, count)
	for i := 0; i < count; i++ {
		path := filepath.Join(req.OutputDir, fmt.Sprintf("template-%02d.png", i+1))
		f, err := os.Create(path)
		if err != nil {
			return empty, pipeerr.New(pipeerr.SeverityCritical, "IMG_WRITE", "", err.Error())
		}
		if err := png.Encode(f, frame); err != nil {
			f.Close()
			return empty, pipeerr.New(pipeerr.SeverityCritical, "IMG_WRITE", "", err.Error())
		}
		if err := f.Close(); err != nil {
			return empty, pipeerr.New(pipeerr.SeverityCritical, "IMG_WRITE", "", err.Error())
		}
		paths = append(paths, path)
	}
	return provider.ImageResult{Paths: paths}, nil
}
