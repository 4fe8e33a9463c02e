package review

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a review item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusResolved  Status = "resolved"
	StatusDismissed Status = "dismissed"
)

// Type categorizes what kind of human judgment an item needs.
type Type string

const (
	TypePronunciation Type = "pronunciation"
	TypeQuality       Type = "quality"
	TypeControversial Type = "controversial"
	TypeTopic         Type = "topic"
	TypeTopicSkip     Type = "topic-skip"
	TypeTopicRequeue  Type = "topic-requeue"
)

// CriticalTypes are the only types that can block automatic publication.
var CriticalTypes = []Type{TypePronunciation, TypeQuality}

// IsCritical reports whether pending items of this type gate publication.
func (t Type) IsCritical() bool {
	return t == TypePronunciation || t == TypeQuality
}

// IsTopicRelated reports whether the item concerns a sourced topic.
func (t Type) IsTopicRelated() bool {
	return strings.HasPrefix(string(t), "topic")
}

// Item is one human-gated decision point raised by a stage.
type Item struct {
	ID          string
	Type        Type
	PipelineID  string
	Stage       string
	ItemJSON    string
	ContextJSON string
	Status      Status
	Resolution  string
	ResolvedAt  *time.Time
	ResolvedBy  string
	CreatedAt   time.Time
}

// Filter narrows queue listings. Zero values match everything.
type Filter struct {
	Status     Status
	Type       Type
	PipelineID string
}
