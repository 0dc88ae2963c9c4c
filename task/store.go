package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/pacer/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id              TEXT PRIMARY KEY,
	title           TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	deadline        TIMESTAMP NOT NULL,
	priority        TEXT NOT NULL,
	complexity      TEXT NOT NULL,
	estimated_hours DOUBLE PRECISION NOT NULL,
	actual_hours    DOUBLE PRECISION,
	progress        DOUBLE PRECISION NOT NULL DEFAULT 0,
	pace_factor     DOUBLE PRECISION NOT NULL DEFAULT 1,
	estimate_source TEXT NOT NULL DEFAULT '',
	tags            TEXT NOT NULL DEFAULT '[]',
	status          TEXT NOT NULL,
	ai_analysis     TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL,
	completed_at    TIMESTAMP
)`

const columns = `id, title, description, deadline, priority, complexity, estimated_hours,
	actual_hours, progress, pace_factor, estimate_source, tags, status, ai_analysis,
	created_at, updated_at, completed_at`

// SQLStore persists tasks in SQLite or PostgreSQL.
type SQLStore struct {
	db *storage.DB
}

// NewSQLStore ensures the tasks table exists on db.
func NewSQLStore(ctx context.Context, db *storage.DB) (*SQLStore, error) {
	if err := db.Migrate(ctx, schema); err != nil {
		return nil, fmt.Errorf("create tasks schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

// Create persists a new task and sets its ID, CreatedAt, and UpdatedAt.
func (s *SQLStore) Create(ctx context.Context, t *Task) (string, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Tags = NormalizeTags(t.Tags)
	if err := t.Validate(); err != nil {
		return "", err
	}

	tags, _ := json.Marshal(t.Tags)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+columns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.Title, t.Description, t.Deadline.UTC(), string(t.Priority), string(t.Complexity),
		t.EstimatedHours, storage.NullFloat(t.ActualHours), t.Progress, t.PaceFactor,
		t.EstimateSource, string(tags), string(t.Status), t.AIAnalysis,
		t.CreatedAt, t.UpdatedAt, storage.NullTime(t.CompletedAt),
	)
	if err != nil {
		return "", fmt.Errorf("insert task: %w", err)
	}
	return t.ID, nil
}

// Get retrieves a task by ID.
func (s *SQLStore) Get(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// Update saves changes to an existing task, updating UpdatedAt automatically.
// estimated_hours, pace_factor and estimate_source are write-once and left alone.
func (s *SQLStore) Update(ctx context.Context, t *Task) error {
	t.UpdatedAt = time.Now().UTC()
	t.Tags = NormalizeTags(t.Tags)
	tags, _ := json.Marshal(t.Tags)

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET
			title=?, description=?, deadline=?, priority=?, actual_hours=?, progress=?,
			tags=?, status=?, ai_analysis=?, updated_at=?, completed_at=?
		WHERE id=?`,
		t.Title, t.Description, t.Deadline.UTC(), string(t.Priority),
		storage.NullFloat(t.ActualHours), t.Progress,
		string(tags), string(t.Status), t.AIAnalysis,
		t.UpdatedAt, storage.NullTime(t.CompletedAt),
		t.ID,
	)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, t.ID)
	}
	return nil
}

// List returns tasks matching the filter, earliest deadline first.
func (s *SQLStore) List(ctx context.Context, filter Filter) ([]*Task, error) {
	q := strings.Builder{}
	q.WriteString("SELECT " + columns + " FROM tasks WHERE 1=1")
	args := []any{}

	if len(filter.Statuses) > 0 {
		q.WriteString(" AND status IN (" + storage.Placeholders(len(filter.Statuses)) + ")")
		for _, st := range filter.Statuses {
			args = append(args, string(st))
		}
	}
	if filter.Tag != "" {
		q.WriteString(` AND tags LIKE ? ESCAPE '\'`)
		args = append(args, tagPattern(filter.Tag))
	}
	q.WriteString(" ORDER BY deadline ASC, id ASC")
	if filter.Limit > 0 {
		q.WriteString(fmt.Sprintf(" LIMIT %d", filter.Limit))
		if filter.Offset > 0 {
			q.WriteString(fmt.Sprintf(" OFFSET %d", filter.Offset))
		}
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		if filter.Tag != "" && !t.HasTag(filter.Tag) {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// tagPattern matches tag as a whole JSON string inside the tags column.
func tagPattern(tag string) string {
	quoted, _ := json.Marshal(tag)
	return "%" + likeEscaper.Replace(string(quoted)) + "%"
}

// Delete removes a task by ID.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// scanner abstracts sql.Row and sql.Rows for scanTask.
type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var priority, complexity, status, tagsJSON string
	var actual sql.NullFloat64
	var completedAt sql.NullTime

	err := s.Scan(
		&t.ID, &t.Title, &t.Description, &t.Deadline, &priority, &complexity, &t.EstimatedHours,
		&actual, &t.Progress, &t.PaceFactor, &t.EstimateSource, &tagsJSON, &status, &t.AIAnalysis,
		&t.CreatedAt, &t.UpdatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Priority = Priority(priority)
	t.Complexity = Complexity(complexity)
	t.Status = Status(status)
	if err := json.Unmarshal([]byte(tagsJSON), &t.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of task %s: %w", t.ID, err)
	}
	if t.Tags == nil {
		t.Tags = []string{}
	}
	if actual.Valid {
		v := actual.Float64
		t.ActualHours = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	return &t, nil
}
