package topicqueue

import "time"

// Status represents the lifecycle of a queued topic.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusAbandoned  Status = "abandoned"
)

// DateLayout is the logical-date key format used throughout the queue.
const DateLayout = "2006-01-02"

// QueuedTopic is a unit of failed work scheduled for retry on a future date.
type QueuedTopic struct {
	TargetDate    string
	Topic         string
	FailureReason string
	FailureStage  string
	OriginalDate  string
	QueuedDate    time.Time
	RetryCount    int
	MaxRetries    int
	Status        Status
}

// Exhausted reports whether the topic has consumed its retry budget.
func (q QueuedTopic) Exhausted() bool {
	return q.RetryCount >= q.MaxRetries
}
