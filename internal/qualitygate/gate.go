package qualitygate

import (
	"fmt"
	"strings"
)

// Decision is the gate's verdict for one pipeline run.
type Decision string

const (
	DecisionAutoPublish            Decision = "auto_publish"
	DecisionAutoPublishWithWarning Decision = "auto_publish_with_warning"
	DecisionHumanReview            Decision = "human_review"
)

// Result carries the verdict, the reason behind it, and every quality
// concern that was observed while deciding. Issues accumulate across all
// triggered checks even when an earlier check already forced the verdict.
type Result struct {
	Decision Decision `json:"decision"`
	Reason   string   `json:"reason"`
	Issues   []string `json:"issues"`
}

// Blocked reports whether the run must wait for a human.
func (r Result) Blocked() bool {
	return r.Decision == DecisionHumanReview
}

// Combined-signal thresholds for the "multiple quality concerns" check.
// Either three degradations paired with three non-critical fallbacks, or
// seven independent signals in total, pushes the run to a human.
const (
	multiDegradedMin = 3
	multiFallbackMin = 3
	multiCombinedMin = 7
)

// Decide evaluates the quality gate for one run. Checks run in a fixed
// priority order; the first blocking check that triggers supplies the
// reason, but Issues names every concern that was found.
func Decide(qc Context, pendingCriticalReviews bool) Result {
	var (
		issues []string
		reason string
	)
	block := func(why string) {
		if reason == "" {
			reason = why
		}
		issues = append(issues, why)
	}

	if pendingCriticalReviews {
		block("Pending critical review items")
	}
	if qc.HasFallbackFor("tts") {
		block("TTS fallback used")
	}
	if hasWordCountFlag(qc.Flags) {
		block("Word count outside acceptable range")
	}
	if qc.HasFallbackFor("thumbnail") && qc.HasFallbackFor("visual-gen") {
		block("Both thumbnail and visual fallbacks used")
	}

	degraded := len(qc.DegradedStages)
	nonCritical := nonCriticalFallbackCount(qc)
	combined := degraded + nonCritical + len(qc.Flags)
	if (degraded >= multiDegradedMin && nonCritical >= multiFallbackMin) || combined >= multiCombinedMin {
		if reason == "" {
			reason = "Multiple quality concerns"
		}
		issues = append(issues, fmt.Sprintf("Multiple quality concerns (%d signals)", combined))
	}

	if reason != "" {
		return Result{Decision: DecisionHumanReview, Reason: reason, Issues: issues}
	}

	if degraded == 1 || degraded == 2 {
		issues = append(issues, fmt.Sprintf("Degraded stages: %s", strings.Join(qc.DegradedStages, ", ")))
		return Result{Decision: DecisionAutoPublishWithWarning, Reason: "Minor quality issues", Issues: issues}
	}
	if nonCritical == 2 {
		issues = append(issues, "Two fallback providers used")
		return Result{Decision: DecisionAutoPublishWithWarning, Reason: "Fallback providers used", Issues: issues}
	}

	return Result{Decision: DecisionAutoPublish, Reason: "No quality issues", Issues: issues}
}

func hasWordCountFlag(flags []string) bool {
	for _, flag := range flags {
		if strings.Contains(flag, "word-count") {
			return true
		}
	}
	return false
}

// nonCriticalFallbackCount counts fallback entries for stages that do not
// already force a human review on their own.
func nonCriticalFallbackCount(qc Context) int {
	n := 0
	for _, entry := range qc.FallbacksUsed {
		if fallbackStage(entry) != "tts" {
			n++
		}
	}
	return n
}
