// Package registry constructs the provider chains used by the pipeline
// stages. Chains are built once at process start with a fixed, documented
// ordering: highest quality first, cheapest and most reliable last.
package registry

import (
	"fmt"

	"showrunner/internal/config"
	"showrunner/internal/fallback"
	"showrunner/internal/provider"
	"showrunner/internal/provider/deepseek"
	"showrunner/internal/provider/imagegen"
	"showrunner/internal/provider/llm"
	"showrunner/internal/provider/tts"
)

// Registry holds one immutable provider chain per capability plus the
// shared cost tracker every client reports into.
type Registry struct {
	Text   fallback.Chain[provider.TextGenerator]
	Speech fallback.Chain[provider.SpeechSynthesizer]
	Images fallback.Chain[provider.ImageGenerator]
	Costs  *provider.Tracker
}

// New builds and validates every chain. Chain order:
//   - text: claude (quality) -> deepseek (cheap)
//   - speech: chirp3-hd voice -> standard voice
//   - images: generative -> stock -> local template
func New(cfg *config.Config) (*Registry, error) {
	costs := provider.NewTracker()

	text := fallback.Chain[provider.TextGenerator]{
		Primary: llm.NewClient(llm.Config{
			Name:           "claude",
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		}, llm.WithCostTracker(costs)),
		Fallbacks: []provider.TextGenerator{
			deepseek.New(cfg.DeepSeek, llm.WithCostTracker(costs)),
		},
	}
	if err := text.Validate(); err != nil {
		return nil, fmt.Errorf("text chain: %w", err)
	}

	speech := fallback.Chain[provider.SpeechSynthesizer]{
		Primary: tts.NewClient(cfg.TTS, cfg.TTS.PrimaryVoice, tts.WithCostTracker(costs)),
		Fallbacks: []provider.SpeechSynthesizer{
			tts.NewClient(cfg.TTS, cfg.TTS.FallbackVoice, tts.WithCostTracker(costs)),
		},
	}
	if err := speech.Validate(); err != nil {
		return nil, fmt.Errorf("speech chain: %w", err)
	}

	images := fallback.Chain[provider.ImageGenerator]{
		Primary: imagegen.NewGenerative(cfg.Images, imagegen.WithCostTracker(costs)),
		Fallbacks: []provider.ImageGenerator{
			imagegen.NewStock(cfg.Images),
			imagegen.NewTemplate(),
		},
	}
	if err := images.Validate(); err != nil {
		return nil, fmt.Errorf("image chain: %w", err)
	}

	return &Registry{
		Text:   text,
		Speech: speech,
		Images: images,
		Costs:  costs,
	}, nil
}
