package qualitygate_test

import (
	"strings"
	"testing"

	"showrunner/internal/qualitygate"
)

func TestCleanRunAutoPublishes(t *testing.T) {
	result := qualitygate.Decide(qualitygate.Context{}, false)
	if result.Decision != qualitygate.DecisionAutoPublish {
		t.Fatalf("expected auto publish, got %s", result.Decision)
	}
	if len(result.Issues) != 0 {
		t.Fatalf("expected no issues, got %v", result.Issues)
	}
	if result.Reason != "No quality issues" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestPendingCriticalReviewBlocks(t *testing.T) {
	result := qualitygate.Decide(qualitygate.Context{}, true)
	if result.Decision != qualitygate.DecisionHumanReview {
		t.Fatalf("expected human review, got %s", result.Decision)
	}
	if result.Reason != "Pending critical review items" {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestTTSFallbackBlocks(t *testing.T) {
	qc := qualitygate.Context{FallbacksUsed: []string{"tts:chirp3-hd"}}
	result := qualitygate.Decide(qc, false)
	if result.Decision != qualitygate.DecisionHumanReview {
		t.Fatalf("expected human review, got %s", result.Decision)
	}
	if !containsIssue(result.Issues, "TTS fallback used") {
		t.Fatalf("missing TTS issue in %v", result.Issues)
	}
}

func TestWordCountFlagBlocks(t *testing.T) {
	qc := qualitygate.Context{Flags: []string{"word-count-low"}}
	result := qualitygate.Decide(qc, false)
	if result.Decision != qualitygate.DecisionHumanReview {
		t.Fatalf("expected human review, got %s", result.Decision)
	}
	if !containsIssue(result.Issues, "Word count outside acceptable range") {
		t.Fatalf("missing word count issue in %v", result.Issues)
	}
}

func TestThumbnailAndVisualFallbacksBlockTogether(t *testing.T) {
	qc := qualitygate.Context{FallbacksUsed: []string{"thumbnail:template", "visual-gen:stock"}}
	result := qualitygate.Decide(qc, false)
	if result.Decision != qualitygate.DecisionHumanReview {
		t.Fatalf("expected human review, got %s", result.Decision)
	}
	if !containsIssue(result.Issues, "Both thumbnail and visual fallbacks used") {
		t.Fatalf("missing paired fallback issue in %v", result.Issues)
	}

	// Either one alone is a warning at worst, not a block.
	single := qualitygate.Decide(qualitygate.Context{FallbacksUsed: []string{"thumbnail:template"}}, false)
	if single.Decision == qualitygate.DecisionHumanReview {
		t.Fatalf("a lone thumbnail fallback must not block: %+v", single)
	}
}

func TestMultipleQualityConcernsBlock(t *testing.T) {
	qc := qualitygate.Context{
		DegradedStages: []string{"s1", "s2", "s3"},
		FallbacksUsed:  []string{"a", "b", "c"},
		Flags:          []string{"f1", "f2"},
	}
	result := qualitygate.Decide(qc, false)
	if result.Decision != qualitygate.DecisionHumanReview {
		t.Fatalf("expected human review, got %s", result.Decision)
	}
	if !strings.Contains(result.Reason, "Multiple quality concerns") {
		t.Fatalf("unexpected reason %q", result.Reason)
	}
}

func TestFewDegradedStagesWarn(t *testing.T) {
	for _, degraded := range [][]string{{"research"}, {"research", "render"}} {
		result := qualitygate.Decide(qualitygate.Context{DegradedStages: degraded}, false)
		if result.Decision != qualitygate.DecisionAutoPublishWithWarning {
			t.Fatalf("degraded=%v: expected warning, got %s", degraded, result.Decision)
		}
		if result.Reason != "Minor quality issues" {
			t.Fatalf("degraded=%v: unexpected reason %q", degraded, result.Reason)
		}
	}
}

func TestTwoNonCriticalFallbacksWarn(t *testing.T) {
	qc := qualitygate.Context{FallbacksUsed: []string{"research:deepseek", "render:template"}}
	result := qualitygate.Decide(qc, false)
	if result.Decision != qualitygate.DecisionAutoPublishWithWarning {
		t.Fatalf("expected warning, got %s", result.Decision)
	}
	if result.Reason == "" {
		t.Fatal("warning must carry a reason")
	}
}

func TestIssuesAccumulateAcrossChecks(t *testing.T) {
	qc := qualitygate.Context{
		FallbacksUsed: []string{"tts:standard"},
		Flags:         []string{"word-count-low"},
	}
	result := qualitygate.Decide(qc, true)
	if result.Reason != "Pending critical review items" {
		t.Fatalf("first blocking check must supply the reason, got %q", result.Reason)
	}
	for _, want := range []string{"Pending critical review items", "TTS fallback used", "Word count outside acceptable range"} {
		if !containsIssue(result.Issues, want) {
			t.Fatalf("missing issue %q in %v", want, result.Issues)
		}
	}
}

func TestContextAccumulators(t *testing.T) {
	var qc qualitygate.Context
	if !qc.Empty() {
		t.Fatal("fresh context must be empty")
	}
	qc.AddDegraded("research")
	qc.AddFallback("tts", "standard")
	qc.AddFlag("word-count-low")
	if qc.Empty() {
		t.Fatal("populated context must not be empty")
	}
	if !qc.HasFallbackFor("tts") || qc.HasFallbackFor("render") {
		t.Fatalf("fallback lookup mismatch: %v", qc.FallbacksUsed)
	}
	if qc.FallbacksUsed[0] != "tts:standard" {
		t.Fatalf("unexpected fallback entry %q", qc.FallbacksUsed[0])
	}
}

func containsIssue(issues []string, want string) bool {
	for _, issue := range issues {
		if strings.Contains(issue, want) {
			return true
		}
	}
	return false
}
