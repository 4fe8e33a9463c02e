package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"showrunner/internal/qualitygate"
	"showrunner/internal/stage"
	"showrunner/internal/store"
)

const runColumns = `date, status, current_stage, started_at, updated_at, completed_at, topic, stage_state_json, quality_context_json, error_message`

// Store persists pipeline runs. One row per logical date.
type Store struct {
	db  *store.DB
	now func() time.Time
}

// StoreOption customizes store behavior.
type StoreOption func(*Store)

// WithStoreClock overrides the store's time source, primarily for tests.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore wraps the shared database handle.
func NewStore(db *store.DB, opts ...StoreOption) *Store {
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save upserts the run row under its date key.
func (s *Store) Save(ctx context.Context, run *Run) error {
	if run == nil {
		return errors.New("run is required")
	}
	if run.Date == "" {
		return errors.New("run date is required")
	}
	run.UpdatedAt = s.now().UTC()

	stageState, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("encode stage state: %w", err)
	}
	quality, err := json.Marshal(run.Quality)
	if err != nil {
		return fmt.Errorf("encode quality context: %w", err)
	}

	_, err = s.db.Exec(ctx, `
INSERT INTO pipeline_runs (`+runColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(date) DO UPDATE SET
    status = excluded.status,
    current_stage = excluded.current_stage,
    started_at = excluded.started_at,
    updated_at = excluded.updated_at,
    completed_at = excluded.completed_at,
    topic = excluded.topic,
    stage_state_json = excluded.stage_state_json,
    quality_context_json = excluded.quality_context_json,
    error_message = excluded.error_message`,
		run.Date,
		string(run.Status),
		string(run.CurrentStage),
		store.FormatTime(run.StartedAt),
		store.FormatTime(run.UpdatedAt),
		store.NullableTime(run.CompletedAt),
		store.NullableString(run.Topic),
		string(stageState),
		string(quality),
		store.NullableString(run.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("save pipeline run %s: %w", run.Date, err)
	}
	return nil
}

// Get loads the run for a logical date. Returns nil when absent.
func (s *Store) Get(ctx context.Context, date string) (*Run, error) {
	row := s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE date = ?`, date)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pipeline run %s: %w", date, err)
	}
	return run, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 30
	}
	rows, err := s.db.Query(ctx, `SELECT `+runColumns+` FROM pipeline_runs ORDER BY date DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pipeline runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run          Run
		status       string
		currentStage string
		startedAt    string
		updatedAt    string
		completedAt  sql.NullString
		topic        sql.NullString
		stageState   string
		quality      string
		errorMessage sql.NullString
	)
	if err := scanner.Scan(
		&run.Date,
		&status,
		&currentStage,
		&startedAt,
		&updatedAt,
		&completedAt,
		&topic,
		&stageState,
		&quality,
		&errorMessage,
	); err != nil {
		return nil, err
	}

	run.Status = Status(status)
	run.CurrentStage = stage.ID(currentStage)
	run.Topic = topic.String
	run.ErrorMessage = errorMessage.String

	var err error
	if run.StartedAt, err = store.ParseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if run.UpdatedAt, err = store.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if completedAt.Valid {
		completed, err := store.ParseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
		run.CompletedAt = &completed
	}

	run.Stages = make(map[stage.ID]*StageRecord)
	if stageState != "" {
		if err := json.Unmarshal([]byte(stageState), &run.Stages); err != nil {
			return nil, fmt.Errorf("decode stage state: %w", err)
		}
	}
	run.Quality = qualitygate.Context{}
	if quality != "" {
		if err := json.Unmarshal([]byte(quality), &run.Quality); err != nil {
			return nil, fmt.Errorf("decode quality context: %w", err)
		}
	}
	return &run, nil
}
