package stage

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ID identifies one pipeline stage. The set is closed: every ID listed
// here is bound to a handler at registry construction time, and Order is
// the single source of truth for sequencing and resume-point validation.
type ID string

const (
	TopicSourcing      ID = "topic-sourcing"
	Research           ID = "research"
	ScriptGen          ID = "script-gen"
	PronunciationCheck ID = "pronunciation-check"
	TTS                ID = "tts"
	Timestamps         ID = "timestamps"
	VisualGen          ID = "visual-gen"
	Render             ID = "render"
	Thumbnail          ID = "thumbnail"
	UploadYouTube      ID = "upload-youtube"
	UploadShorts       ID = "upload-shorts"
	Notify             ID = "notify"
)

// Order is the fixed total execution order for a pipeline run.
var Order = []ID{
	TopicSourcing,
	Research,
	ScriptGen,
	PronunciationCheck,
	TTS,
	Timestamps,
	VisualGen,
	Render,
	Thumbnail,
	UploadYouTube,
	UploadShorts,
	Notify,
}

// Index returns the position of id in Order.
func Index(id ID) (int, bool) {
	for i, candidate := range Order {
		if candidate == id {
			return i, true
		}
	}
	return 0, false
}

// Valid reports whether id names a known stage.
func Valid(id ID) bool {
	_, ok := Index(id)
	return ok
}

// Before reports whether a executes strictly before b. Unknown stages are
// never before anything.
func Before(a, b ID) bool {
	ai, aok := Index(a)
	bi, bok := Index(b)
	return aok && bok && ai < bi
}

// Next returns the stage following id in Order, or false when id is the
// last stage or unknown.
func Next(id ID) (ID, bool) {
	idx, ok := Index(id)
	if !ok || idx+1 >= len(Order) {
		return "", false
	}
	return Order[idx+1], true
}

// First returns the first stage of a fresh run.
func First() ID {
	return Order[0]
}

var labelOverrides = map[string]string{
	"tts":     "TTS",
	"youtube": "YouTube",
}

var titleCaser = cases.Title(language.English)

// Label renders a stage ID as a human-readable name for logs, tables, and
// notifications, e.g. "upload-youtube" -> "Upload YouTube".
func (id ID) Label() string {
	parts := strings.Split(string(id), "-")
	for i, part := range parts {
		if override, ok := labelOverrides[part]; ok {
			parts[i] = override
			continue
		}
		parts[i] = titleCaser.String(part)
	}
	return strings.Join(parts, " ")
}
