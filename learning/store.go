package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/GoCodeAlone/pacer/storage"
	"github.com/GoCodeAlone/pacer/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS completions (
	task_id         TEXT PRIMARY KEY,
	title           TEXT NOT NULL DEFAULT '',
	complexity      TEXT NOT NULL,
	tags            TEXT NOT NULL DEFAULT '[]',
	estimated_hours DOUBLE PRECISION NOT NULL,
	actual_hours    DOUBLE PRECISION NOT NULL,
	accuracy_ratio  DOUBLE PRECISION NOT NULL,
	completed_at    TIMESTAMP NOT NULL
)`

const indexSchema = `CREATE INDEX IF NOT EXISTS idx_completions_completed_at ON completions (completed_at)`

const recordColumns = `task_id, title, complexity, tags, estimated_hours, actual_hours, accuracy_ratio, completed_at`

// SQLRecordStore keeps completion records in the shared database.
type SQLRecordStore struct {
	db *storage.DB
}

// NewSQLRecordStore ensures the completions table exists on db.
func NewSQLRecordStore(ctx context.Context, db *storage.DB) (*SQLRecordStore, error) {
	if err := db.Migrate(ctx, schema, indexSchema); err != nil {
		return nil, fmt.Errorf("create completions schema: %w", err)
	}
	return &SQLRecordStore{db: db}, nil
}

// Put upserts r keyed by task ID.
func (s *SQLRecordStore) Put(ctx context.Context, r Record) error {
	tags, _ := json.Marshal(task.NormalizeTags(r.Tags))
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO completions (`+recordColumns+`)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT (task_id) DO UPDATE SET
			title = excluded.title,
			complexity = excluded.complexity,
			tags = excluded.tags,
			estimated_hours = excluded.estimated_hours,
			actual_hours = excluded.actual_hours,
			accuracy_ratio = excluded.accuracy_ratio,
			completed_at = excluded.completed_at`,
		r.TaskID, r.Title, string(r.Complexity), string(tags),
		r.EstimatedHours, r.ActualHours, r.AccuracyRatio, r.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("put completion: %w", err)
	}
	return nil
}

// List returns all records, oldest completion first.
func (s *SQLRecordStore) List(ctx context.Context) ([]Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM completions ORDER BY completed_at, task_id`)
}

// ListBetween returns records completed in [from, to).
func (s *SQLRecordStore) ListBetween(ctx context.Context, from, to time.Time) ([]Record, error) {
	return s.query(ctx, `SELECT `+recordColumns+` FROM completions
		WHERE completed_at >= ? AND completed_at < ?
		ORDER BY completed_at, task_id`, from.UTC(), to.UTC())
}

func (s *SQLRecordStore) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var complexity, tags string
		if err := rows.Scan(&r.TaskID, &r.Title, &complexity, &tags,
			&r.EstimatedHours, &r.ActualHours, &r.AccuracyRatio, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		r.Complexity = task.Complexity(complexity)
		if err := json.Unmarshal([]byte(tags), &r.Tags); err != nil {
			return nil, fmt.Errorf("decode tags of completion %s: %w", r.TaskID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
