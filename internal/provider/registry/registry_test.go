package registry_test

import (
	"context"
	"testing"

	"showrunner/internal/fallback"
	"showrunner/internal/provider"
	"showrunner/internal/provider/registry"
	"showrunner/internal/testsupport"
)

func TestNewBuildsAllChains(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	reg, err := registry.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	textNames := []string{}
	for _, p := range fallback.AllOf(reg.Text) {
		textNames = append(textNames, p.Name())
	}
	if len(textNames) != 2 || textNames[0] != "claude" || textNames[1] != "deepseek" {
		t.Fatalf("text chain order: %v", textNames)
	}

	speech := fallback.AllOf(reg.Speech)
	if len(speech) != 2 || speech[0].Name() != "chirp3-hd" || speech[1].Name() != "standard" {
		names := []string{}
		for _, p := range speech {
			names = append(names, p.Name())
		}
		t.Fatalf("speech chain order: %v", names)
	}

	images := fallback.AllOf(reg.Images)
	if len(images) != 3 || images[0].Name() != "generative" || images[2].Name() != "template" {
		t.Fatalf("image chain has wrong shape")
	}

	if reg.Costs == nil || reg.Costs.Total() != 0 {
		t.Fatal("cost tracker must start empty")
	}
}

func TestImageChainWithoutCredentialsResolvesToTemplate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Images.APIKey = ""
	cfg.Images.StockAPIKey = ""

	reg, err := registry.New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outDir := t.TempDir()
	res, err := fallback.Run(context.Background(), reg.Images, fallback.Options{Stage: "visual-gen"},
		func(ctx context.Context, p provider.ImageGenerator) (provider.ImageResult, error) {
			return p.Generate(ctx, provider.ImageRequest{
				Prompt:    "deep-sea bioluminescence",
				Count:     1,
				OutputDir: outDir,
			})
		})
	if err != nil {
		t.Fatalf("unconfigured image chain must still produce a result: %v", err)
	}
	if got := res.Provider.Name(); got != "template" {
		t.Fatalf("provider = %q, want template", got)
	}
	if res.Tier != fallback.TierFallback {
		t.Fatalf("tier = %q, want fallback", res.Tier)
	}
	if len(res.Value.Paths) != 1 {
		t.Fatalf("paths = %v, want one placeholder frame", res.Value.Paths)
	}
}

func TestDuplicateVoiceRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TTS.FallbackVoice = cfg.TTS.PrimaryVoice
	if _, err := registry.New(cfg); err == nil {
		t.Fatal("duplicate provider names in a chain must fail validation")
	}
}
