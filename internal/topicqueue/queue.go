package topicqueue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"showrunner/internal/store"
)

// Queue manages queued-topic persistence.
type Queue struct {
	db         *store.DB
	maxRetries int
	now        func() time.Time
}

// Option customizes queue construction.
type Option func(*Queue)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// New constructs a topic queue over the shared database.
func New(db *store.DB, maxRetries int, opts ...Option) *Queue {
	if maxRetries < 1 {
		maxRetries = 1
	}
	q := &Queue{db: db, maxRetries: maxRetries, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

const topicColumns = "target_date, topic, failure_reason, failure_stage, original_date, queued_date, retry_count, max_retries, status"

// QueueFailedTopic writes a fresh entry for the day after originalDate and
// returns the target date. Any existing entry for that date is overwritten.
func (q *Queue) QueueFailedTopic(ctx context.Context, topic, failureReason, failureStage, originalDate string) (string, error) {
	origin, err := time.Parse(DateLayout, originalDate)
	if err != nil {
		return "", fmt.Errorf("parse original date %q: %w", originalDate, err)
	}
	targetDate := origin.AddDate(0, 0, 1).Format(DateLayout)

	_, err = q.db.Exec(
		ctx,
		`INSERT INTO queued_topics (`+topicColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)
         ON CONFLICT(target_date) DO UPDATE SET
             topic = excluded.topic,
             failure_reason = excluded.failure_reason,
             failure_stage = excluded.failure_stage,
             original_date = excluded.original_date,
             queued_date = excluded.queued_date,
             retry_count = 0,
             max_retries = excluded.max_retries,
             status = excluded.status`,
		targetDate,
		topic,
		failureReason,
		failureStage,
		originalDate,
		store.FormatTime(q.now()),
		q.maxRetries,
		StatusPending,
	)
	if err != nil {
		return "", fmt.Errorf("queue failed topic: %w", err)
	}
	return targetDate, nil
}

// Get fetches the entry for a target date regardless of status.
func (q *Queue) Get(ctx context.Context, date string) (*QueuedTopic, error) {
	row := q.db.QueryRow(ctx, `SELECT `+topicColumns+` FROM queued_topics WHERE target_date = ?`, date)
	topic, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get queued topic: %w", err)
	}
	return topic, nil
}

// CheckTodayQueuedTopic returns today's entry only when it is still pending.
func (q *Queue) CheckTodayQueuedTopic(ctx context.Context) (*QueuedTopic, error) {
	today := q.now().UTC().Format(DateLayout)
	topic, err := q.Get(ctx, today)
	if err != nil {
		return nil, err
	}
	if topic == nil || topic.Status != StatusPending {
		return nil, nil
	}
	return topic, nil
}

// IncrementRetryCount consumes one retry from the entry's budget. When the
// budget would be exhausted the entry is abandoned and nil is returned: the
// caller must not retry further. Otherwise the entry moves to processing
// with the incremented count and the updated record is returned.
func (q *Queue) IncrementRetryCount(ctx context.Context, date string) (*QueuedTopic, error) {
	topic, err := q.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, fmt.Errorf("no queued topic for %s", date)
	}

	if topic.RetryCount+1 >= topic.MaxRetries {
		topic.RetryCount = topic.MaxRetries
		topic.Status = StatusAbandoned
		if err := q.update(ctx, topic); err != nil {
			return nil, err
		}
		return nil, nil
	}

	topic.RetryCount++
	topic.Status = StatusProcessing
	if err := q.update(ctx, topic); err != nil {
		return nil, err
	}
	return topic, nil
}

// MarkTopicProcessing sets the status without touching the retry count.
func (q *Queue) MarkTopicProcessing(ctx context.Context, date string) error {
	res, err := q.db.Exec(
		ctx,
		`UPDATE queued_topics SET status = ? WHERE target_date = ?`,
		StatusProcessing,
		date,
	)
	if err != nil {
		return fmt.Errorf("mark topic processing: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no queued topic for %s", date)
	}
	return nil
}

// RequeueTopic relocates a pending entry to a different date, resetting its
// queued timestamp and status. Implemented as set-then-delete so a crash
// between the writes leaves the topic present twice rather than lost.
func (q *Queue) RequeueTopic(ctx context.Context, currentDate, newDate string) error {
	topic, err := q.Get(ctx, currentDate)
	if err != nil {
		return err
	}
	if topic == nil {
		return fmt.Errorf("no queued topic for %s", currentDate)
	}
	if topic.Status != StatusPending {
		return fmt.Errorf("queued topic for %s is %s, not pending", currentDate, topic.Status)
	}

	relocated := *topic
	relocated.TargetDate = newDate
	relocated.QueuedDate = q.now()
	relocated.Status = StatusPending

	_, err = q.db.Exec(
		ctx,
		`INSERT INTO queued_topics (`+topicColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(target_date) DO UPDATE SET
             topic = excluded.topic,
             failure_reason = excluded.failure_reason,
             failure_stage = excluded.failure_stage,
             original_date = excluded.original_date,
             queued_date = excluded.queued_date,
             retry_count = excluded.retry_count,
             max_retries = excluded.max_retries,
             status = excluded.status`,
		relocated.TargetDate,
		relocated.Topic,
		relocated.FailureReason,
		relocated.FailureStage,
		relocated.OriginalDate,
		store.FormatTime(relocated.QueuedDate),
		relocated.RetryCount,
		relocated.MaxRetries,
		relocated.Status,
	)
	if err != nil {
		return fmt.Errorf("requeue topic: write new date: %w", err)
	}
	return q.ClearQueuedTopic(ctx, currentDate)
}

// ClearQueuedTopic deletes the entry on successful consumption.
func (q *Queue) ClearQueuedTopic(ctx context.Context, date string) error {
	if _, err := q.db.Exec(ctx, `DELETE FROM queued_topics WHERE target_date = ?`, date); err != nil {
		return fmt.Errorf("clear queued topic: %w", err)
	}
	return nil
}

// List returns all queued topics ordered by target date.
func (q *Queue) List(ctx context.Context) ([]*QueuedTopic, error) {
	rows, err := q.db.Query(ctx, `SELECT `+topicColumns+` FROM queued_topics ORDER BY target_date`)
	if err != nil {
		return nil, fmt.Errorf("list queued topics: %w", err)
	}
	defer rows.Close()

	var topics []*QueuedTopic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

// ClearAbandoned removes abandoned entries and reports how many were deleted.
func (q *Queue) ClearAbandoned(ctx context.Context) (int64, error) {
	res, err := q.db.Exec(ctx, `DELETE FROM queued_topics WHERE status = ?`, StatusAbandoned)
	if err != nil {
		return 0, fmt.Errorf("clear abandoned topics: %w", err)
	}
	return res.RowsAffected()
}

func (q *Queue) update(ctx context.Context, topic *QueuedTopic) error {
	_, err := q.db.Exec(
		ctx,
		`UPDATE queued_topics
         SET topic = ?, failure_reason = ?, failure_stage = ?, original_date = ?,
             queued_date = ?, retry_count = ?, max_retries = ?, status = ?
         WHERE target_date = ?`,
		topic.Topic,
		topic.FailureReason,
		topic.FailureStage,
		topic.OriginalDate,
		store.FormatTime(topic.QueuedDate),
		topic.RetryCount,
		topic.MaxRetries,
		topic.Status,
		topic.TargetDate,
	)
	if err != nil {
		return fmt.Errorf("update queued topic: %w", err)
	}
	return nil
}

func scanTopic(scanner interface{ Scan(dest ...any) error }) (*QueuedTopic, error) {
	var (
		topic     QueuedTopic
		queuedRaw string
		statusStr string
	)
	if err := scanner.Scan(
		&topic.TargetDate,
		&topic.Topic,
		&topic.FailureReason,
		&topic.FailureStage,
		&topic.OriginalDate,
		&queuedRaw,
		&topic.RetryCount,
		&topic.MaxRetries,
		&statusStr,
	); err != nil {
		return nil, err
	}
	topic.Status = Status(statusStr)
	if queued, err := store.ParseTime(queuedRaw); err == nil {
		topic.QueuedDate = queued
	}
	return &topic, nil
}
