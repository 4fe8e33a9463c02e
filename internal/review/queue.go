package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"showrunner/internal/store"
)

// ErrAlreadyResolved is returned when resolving or dismissing a non-pending item.
var ErrAlreadyResolved = errors.New("review item already resolved")

// Queue manages review-item persistence.
type Queue struct {
	db  *store.DB
	now func() time.Time
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

// New constructs a review queue over the shared database.
func New(db *store.DB, opts ...Option) *Queue {
	q := &Queue{db: db, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// AddInput describes a new review item.
type AddInput struct {
	Type        Type
	PipelineID  string
	Stage       string
	ItemJSON    string
	ContextJSON string
}

const itemColumns = "id, type, pipeline_id, stage, item_json, context_json, status, resolution, resolved_at, resolved_by, created_at"

// Add creates a pending review item and returns its id.
func (q *Queue) Add(ctx context.Context, input AddInput) (string, error) {
	if input.Type == "" {
		return "", errors.New("review item type is required")
	}
	if strings.TrimSpace(input.PipelineID) == "" {
		return "", errors.New("review item pipeline id is required")
	}

	id := uuid.NewString()
	_, err := q.db.Exec(
		ctx,
		`INSERT INTO review_items (`+itemColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL, NULL, ?)`,
		id,
		input.Type,
		input.PipelineID,
		input.Stage,
		store.NullableString(input.ItemJSON),
		store.NullableString(input.ContextJSON),
		StatusPending,
		store.FormatTime(q.now()),
	)
	if err != nil {
		return "", fmt.Errorf("add review item: %w", err)
	}
	return id, nil
}

// Get fetches a review item by id.
func (q *Queue) Get(ctx context.Context, id string) (*Item, error) {
	row := q.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM review_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get review item: %w", err)
	}
	return item, nil
}

// List returns review items matching the filter, newest first.
func (q *Queue) List(ctx context.Context, filter Filter) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM review_items`
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.PipelineID != "" {
		clauses = append(clauses, "pipeline_id = ?")
		args = append(args, filter.PipelineID)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list review items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Resolve marks a pending item resolved. Resolving a non-pending item fails.
func (q *Queue) Resolve(ctx context.Context, id, resolution, resolvedBy string) error {
	return q.finalize(ctx, id, StatusResolved, resolution, resolvedBy)
}

// Dismiss marks a pending item dismissed. Dismissing a non-pending item fails.
func (q *Queue) Dismiss(ctx context.Context, id, resolution, resolvedBy string) error {
	return q.finalize(ctx, id, StatusDismissed, resolution, resolvedBy)
}

func (q *Queue) finalize(ctx context.Context, id string, status Status, resolution, resolvedBy string) error {
	// The WHERE guard on status makes the pending check and the write one
	// statement, so a second resolve can never overwrite the first.
	res, err := q.db.Exec(
		ctx,
		`UPDATE review_items
         SET status = ?, resolution = ?, resolved_at = ?, resolved_by = ?
         WHERE id = ? AND status = ?`,
		status,
		resolution,
		store.FormatTime(q.now()),
		resolvedBy,
		id,
		StatusPending,
	)
	if err != nil {
		return fmt.Errorf("finalize review item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		existing, getErr := q.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return fmt.Errorf("review item %s not found", id)
		}
		return fmt.Errorf("review item %s: %w (status %s)", id, ErrAlreadyResolved, existing.Status)
	}
	return nil
}

// PendingCritical returns pending items whose type can block publication.
func (q *Queue) PendingCritical(ctx context.Context) ([]*Item, error) {
	rows, err := q.db.Query(
		ctx,
		`SELECT `+itemColumns+` FROM review_items
         WHERE status = ? AND type IN (?, ?) ORDER BY created_at`,
		StatusPending,
		TypePronunciation,
		TypeQuality,
	)
	if err != nil {
		return nil, fmt.Errorf("pending critical reviews: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// HasPendingCritical reports whether any publication-blocking item is pending.
func (q *Queue) HasPendingCritical(ctx context.Context) (bool, error) {
	var count int
	row := q.db.QueryRow(
		ctx,
		`SELECT COUNT(1) FROM review_items WHERE status = ? AND type IN (?, ?)`,
		StatusPending,
		TypePronunciation,
		TypeQuality,
	)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("count pending critical reviews: %w", err)
	}
	return count > 0, nil
}

// SkipTopic resolves a topic item with a structured skip resolution.
func (q *Queue) SkipTopic(ctx context.Context, id, reason, resolvedBy string) error {
	return q.Resolve(ctx, id, fmt.Sprintf("skip: %s", reason), resolvedBy)
}

// RequeueTopicFromReview resolves a topic-related item with a requeue
// resolution targeting newDate. Non-topic items are rejected.
func (q *Queue) RequeueTopicFromReview(ctx context.Context, id, newDate, resolvedBy string) error {
	item, err := q.Get(ctx, id)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("review item %s not found", id)
	}
	if !item.Type.IsTopicRelated() {
		return fmt.Errorf("review item %s has type %s, not topic-related", id, item.Type)
	}
	return q.Resolve(ctx, id, fmt.Sprintf("requeue: retry on %s", newDate), resolvedBy)
}

// ApproveTopicWithModifications resolves a topic item recording the edits made.
func (q *Queue) ApproveTopicWithModifications(ctx context.Context, id, modifications, resolvedBy string) error {
	return q.Resolve(ctx, id, fmt.Sprintf("approved with modifications: %s", modifications), resolvedBy)
}

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item        Item
		typeStr     string
		statusStr   string
		itemJSON    sql.NullString
		contextJSON sql.NullString
		resolution  sql.NullString
		resolvedRaw sql.NullString
		resolvedBy  sql.NullString
		createdRaw  string
	)
	if err := scanner.Scan(
		&item.ID,
		&typeStr,
		&item.PipelineID,
		&item.Stage,
		&itemJSON,
		&contextJSON,
		&statusStr,
		&resolution,
		&resolvedRaw,
		&resolvedBy,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	item.Type = Type(typeStr)
	item.Status = Status(statusStr)
	item.ItemJSON = itemJSON.String
	item.ContextJSON = contextJSON.String
	item.Resolution = resolution.String
	item.ResolvedBy = resolvedBy.String
	if resolvedRaw.Valid {
		if resolved, err := store.ParseTime(resolvedRaw.String); err == nil {
			item.ResolvedAt = &resolved
		}
	}
	if created, err := store.ParseTime(createdRaw); err == nil {
		item.CreatedAt = created
	}
	return &item, nil
}
