package calendar

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/GoCodeAlone/pacer/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS commitments (
	id            TEXT PRIMARY KEY,
	weekday       TEXT NOT NULL DEFAULT '',
	on_date       TEXT NOT NULL DEFAULT '',
	start_minute  INTEGER NOT NULL,
	end_minute    INTEGER NOT NULL,
	label         TEXT NOT NULL DEFAULT '',
	kind          TEXT NOT NULL
)`

// SQLStore persists commitments in the shared database.
type SQLStore struct {
	db *storage.DB
}

// NewSQLStore ensures the commitments table exists on db.
func NewSQLStore(ctx context.Context, db *storage.DB) (*SQLStore, error) {
	if err := db.Migrate(ctx, schema); err != nil {
		return nil, fmt.Errorf("create commitments schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Add(ctx context.Context, iv Interval) (Interval, error) {
	iv.Normalize()
	if err := iv.Validate(); err != nil {
		return Interval{}, err
	}
	if iv.ID == "" {
		iv.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commitments (id, weekday, on_date, start_minute, end_minute, label, kind)
		VALUES (?,?,?,?,?,?,?)`,
		iv.ID, iv.Weekday, iv.Date, int(iv.Start), int(iv.End), iv.Label, string(iv.Kind),
	)
	if err != nil {
		return Interval{}, fmt.Errorf("insert commitment: %w", err)
	}
	return iv, nil
}

func (s *SQLStore) List(ctx context.Context) ([]Interval, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, weekday, on_date, start_minute, end_minute, label, kind
		FROM commitments ORDER BY start_minute, end_minute, id`)
	if err != nil {
		return nil, fmt.Errorf("list commitments: %w", err)
	}
	defer rows.Close()

	var out []Interval
	for rows.Next() {
		var iv Interval
		var start, end int
		var kind string
		if err := rows.Scan(&iv.ID, &iv.Weekday, &iv.Date, &start, &end, &iv.Label, &kind); err != nil {
			return nil, fmt.Errorf("scan commitment: %w", err)
		}
		iv.Start, iv.End, iv.Kind = Clock(start), Clock(end), Kind(kind)
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM commitments WHERE id=?", id)
	if err != nil {
		return fmt.Errorf("delete commitment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
