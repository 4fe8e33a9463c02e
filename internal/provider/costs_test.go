package provider_test

import (
	"sync"
	"testing"

	"showrunner/internal/provider"
)

func TestTrackerAccumulates(t *testing.T) {
	tracker := provider.NewTracker()
	tracker.Add("claude", 0.25)
	tracker.Add("claude", 0.25)
	tracker.Add("chirp3-hd", 0.10)
	tracker.Add("claude", -5) // ignored

	if got := tracker.Total(); got != 0.60 {
		t.Fatalf("total: got %v", got)
	}
	breakdown := tracker.ByProvider()
	if breakdown["claude"] != 0.50 || breakdown["chirp3-hd"] != 0.10 {
		t.Fatalf("breakdown: %v", breakdown)
	}
}

func TestTrackerConcurrentAdds(t *testing.T) {
	tracker := provider.NewTracker()
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.Add("claude", 0.01)
		}()
	}
	wg.Wait()
	if got := tracker.Total(); got < 0.99 || got > 1.01 {
		t.Fatalf("total after concurrent adds: %v", got)
	}
}
