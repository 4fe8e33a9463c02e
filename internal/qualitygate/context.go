package qualitygate

import "strings"

// Context accumulates quality signals across one pipeline run. All three
// lists are append-only; the state machine appends after every stage and
// the gate reads them once at the end of the run.
type Context struct {
	DegradedStages []string `json:"degradedStages"`
	FallbacksUsed  []string `json:"fallbacksUsed"`
	Flags          []string `json:"flags"`
}

// AddDegraded records a stage that completed below its quality target.
func (c *Context) AddDegraded(stage string) {
	c.DegradedStages = append(c.DegradedStages, stage)
}

// AddFallback records that a stage was served by a non-primary provider.
// Entries take the form "<stage>:<provider>".
func (c *Context) AddFallback(stage, provider string) {
	c.FallbacksUsed = append(c.FallbacksUsed, stage+":"+provider)
}

// AddFlag records a free-form quality flag such as "word-count-low".
func (c *Context) AddFlag(flag string) {
	c.Flags = append(c.Flags, flag)
}

// HasFallbackFor reports whether any recorded fallback entry belongs to
// the named stage.
func (c Context) HasFallbackFor(stage string) bool {
	for _, entry := range c.FallbacksUsed {
		if fallbackStage(entry) == stage {
			return true
		}
	}
	return false
}

// Empty reports whether no quality signal of any kind was recorded.
func (c Context) Empty() bool {
	return len(c.DegradedStages) == 0 && len(c.FallbacksUsed) == 0 && len(c.Flags) == 0
}

func fallbackStage(entry string) string {
	if idx := strings.IndexByte(entry, ':'); idx >= 0 {
		return entry[:idx]
	}
	return entry
}
