package provider

import "context"

// TextRequest is one text-generation call. System and Prompt are required;
// JSONOnly asks the provider to constrain output to a JSON object.
type TextRequest struct {
	System   string
	Prompt   string
	JSONOnly bool
}

// TextResult is the provider's response plus the spend it incurred.
type TextResult struct {
	Content string
	CostUSD float64
}

// TextGenerator is the text-generation capability. Implementations must
// classify their failures so the retry and fallback executors can act on
// them.
type TextGenerator interface {
	Name() string
	Complete(ctx context.Context, req TextRequest) (TextResult, error)
	EstimateCost(promptChars int) float64
}

// SpeechRequest is one synthesis call over a finished script.
type SpeechRequest struct {
	Script        string
	OutputPath    string
	Pronunciation map[string]string
}

// SpeechResult points at the rendered audio.
type SpeechResult struct {
	AudioPath    string
	DurationSecs float64
	CostUSD      float64
}

// SpeechSynthesizer is the speech-synthesis capability.
type SpeechSynthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req SpeechRequest) (SpeechResult, error)
	EstimateCost(scriptChars int) float64
}

// ImageRequest is one visual-generation call.
type ImageRequest struct {
	Prompt    string
	Count     int
	OutputDir string
}

// ImageResult lists the produced image files.
type ImageResult struct {
	Paths   []string
	CostUSD float64
}

// ImageGenerator is the visual-generation capability.
type ImageGenerator interface {
	Name() string
	Generate(ctx context.Context, req ImageRequest) (ImageResult, error)
	EstimateCost(count int) float64
}
