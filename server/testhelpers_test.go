package server

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/GoCodeAlone/pacer/calendar"
	"github.com/GoCodeAlone/pacer/comms"
	"github.com/GoCodeAlone/pacer/config"
	"github.com/GoCodeAlone/pacer/estimate"
	"github.com/GoCodeAlone/pacer/learning"
	"github.com/GoCodeAlone/pacer/planner"
	"github.com/GoCodeAlone/pacer/schedule"
	"github.com/GoCodeAlone/pacer/storage"
	"github.com/GoCodeAlone/pacer/task"
)

const testPassword = "secret"

// newTestPlanner wires a planner over a throwaway sqlite database.
func newTestPlanner(t *testing.T, bus comms.Bus) *planner.Planner {
	t.Helper()
	ctx := context.Background()

	db, err := storage.Open("sqlite", filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	tasks, err := task.NewSQLStore(ctx, db)
	if err != nil {
		t.Fatalf("task store: %v", err)
	}
	records, err := learning.NewSQLRecordStore(ctx, db)
	if err != nil {
		t.Fatalf("record store: %v", err)
	}
	commitments, err := calendar.NewSQLStore(ctx, db)
	if err != nil {
		t.Fatalf("calendar store: %v", err)
	}
	sched, err := schedule.New(schedule.DefaultConfig())
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}

	logger := slog.New(slog.DiscardHandler)
	p, err := planner.New(planner.Deps{
		Tasks:     tasks,
		Estimator: estimate.New(nil, estimate.DefaultConfig(), logger),
		Learner:   learning.NewLearner(records, nil, logger),
		Calendar:  calendar.New(commitments, nil),
		Scheduler: sched,
		Bus:       bus,
		Logger:    logger,
	})
	if err != nil {
		t.Fatalf("planner: %v", err)
	}
	return p
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	cfg := config.DefaultConfig()
	cfg.Server.Addr = ":0"
	cfg.Auth.AdminPass = string(hash)
	cfg.Auth.JWTSecret = "test-secret-key-1234567890"

	bus := comms.NewInMemoryBus(0)
	return New(cfg, newTestPlanner(t, bus), bus, slog.New(slog.DiscardHandler))
}
