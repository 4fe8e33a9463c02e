package tts_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"showrunner/internal/config"
	"showrunner/internal/pipeerr"
	"showrunner/internal/provider"
	"showrunner/internal/provider/tts"
)

func newClient(t *testing.T, voice string, handler http.HandlerFunc, opts ...tts.Option) *tts.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := config.TTS{APIKey: "test-key", BaseURL: server.URL}
	return tts.NewClient(cfg, voice, opts...)
}

func TestSynthesizeWritesAudio(t *testing.T) {
	audio := []byte("fake-pcm-audio-bytes")
	var gotText string
	tracker := provider.NewTracker()
	client := newClient(t, "chirp3-hd", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input struct {
				Text string `json:"text"`
			} `json:"input"`
			Voice struct {
				Name string `json:"name"`
			} `json:"voice"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		gotText = req.Input.Text
		if req.Voice.Name != "chirp3-hd" {
			t.Errorf("voice: %q", req.Voice.Name)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"audioContent": base64.StdEncoding.EncodeToString(audio),
		})
	}, tts.WithCostTracker(tracker))

	out := filepath.Join(t.TempDir(), "audio", "show.wav")
	result, err := client.Synthesize(context.Background(), provider.SpeechRequest{
		Script:        "Kubernetes is hard to say.",
		OutputPath:    out,
		Pronunciation: map[string]string{"Kubernetes": "koo-ber-NET-eez"},
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if gotText != "koo-ber-NET-eez is hard to say." {
		t.Fatalf("pronunciation overrides not applied: %q", gotText)
	}
	written, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(written) != string(audio) {
		t.Fatal("audio bytes mangled")
	}
	if result.AudioPath != out || result.CostUSD <= 0 {
		t.Fatalf("result: %+v", result)
	}
	if tracker.Total() != result.CostUSD {
		t.Fatal("tracker not fed")
	}
}

func TestQuotaErrorsAreRetryable(t *testing.T) {
	client := newClient(t, "chirp3-hd", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	})
	_, err := client.Synthesize(context.Background(), provider.SpeechRequest{
		Script:     "hello",
		OutputPath: filepath.Join(t.TempDir(), "a.wav"),
	})
	if sev := pipeerr.SeverityOf(err); sev != pipeerr.SeverityRetryable {
		t.Fatalf("expected retryable, got %s", sev)
	}
}

func TestVoiceRejectionFallsOver(t *testing.T) {
	client := newClient(t, "chirp3-hd", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "voice not available", http.StatusBadRequest)
	})
	_, err := client.Synthesize(context.Background(), provider.SpeechRequest{
		Script:     "hello",
		OutputPath: filepath.Join(t.TempDir(), "a.wav"),
	})
	if sev := pipeerr.SeverityOf(err); sev != pipeerr.SeverityFallback {
		t.Fatalf("expected fallback, got %s", sev)
	}
}

func TestEmptyAudioFallsOver(t *testing.T) {
	client := newClient(t, "standard", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"audioContent": ""})
	})
	_, err := client.Synthesize(context.Background(), provider.SpeechRequest{
		Script:     "hello",
		OutputPath: filepath.Join(t.TempDir(), "a.wav"),
	})
	if pipeerr.CodeOf(err) != "TTS_EMPTY_AUDIO" {
		t.Fatalf("unexpected code %s", pipeerr.CodeOf(err))
	}
}

func TestChirpCostsMoreThanStandard(t *testing.T) {
	cfg := config.TTS{APIKey: "k"}
	chirp := tts.NewClient(cfg, "chirp3-hd")
	standard := tts.NewClient(cfg, "standard")
	if chirp.EstimateCost(10000) <= standard.EstimateCost(10000) {
		t.Fatal("chirp voice should cost more than standard")
	}
}
