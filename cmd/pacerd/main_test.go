package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/pacer/comms"
	"github.com/GoCodeAlone/pacer/config"
	"github.com/GoCodeAlone/pacer/planner"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Storage.DSN = filepath.Join(t.TempDir(), "pacerd.db")
	cfg.Schedule.Timezone = "UTC"
	return cfg
}

func TestBuild_Defaults(t *testing.T) {
	ctx := context.Background()
	a, err := build(ctx, testConfig(t), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer a.Close()

	created, err := a.planner.CreateTask(ctx, planner.NewTask{
		Title:    "Grade midterm exams",
		Deadline: time.Now().Add(72 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "rules", string(created.Estimate.Source))

	commitments, err := a.planner.Commitments(ctx)
	require.NoError(t, err)
	require.Len(t, commitments, 1)
	assert.Equal(t, "standing-lunch", commitments[0].ID)

	hist, err := a.bus.History(comms.TopicAll, 10)
	require.NoError(t, err)
	assert.Len(t, hist, 1)

	next := a.jobs.Next()
	assert.Equal(t, 7, next.Hour())
	assert.NotEqual(t, time.Saturday, next.Weekday())
	assert.NotEqual(t, time.Sunday, next.Weekday())
}

func TestDailyPlanJob_PublishesRecommendation(t *testing.T) {
	ctx := context.Background()
	a, err := build(ctx, testConfig(t), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.jobs.DailyPlan(ctx))
	hist, err := a.bus.History(comms.TopicRecommendationComputed, 10)
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestBuild_RedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Cache.Kind = "redis"
	cfg.Cache.Addr = mr.Addr()

	a, err := build(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.Len(t, a.closers, 2)
	require.NoError(t, a.Close())
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"unknown provider", func(c *config.Config) { c.Provider.Kind = "oracle" }},
		{"redis unreachable", func(c *config.Config) {
			c.Cache.Kind = "redis"
			c.Cache.Addr = "127.0.0.1:1"
		}},
		{"bad timezone", func(c *config.Config) { c.Schedule.Timezone = "Mars/Olympus" }},
		{"bad cron", func(c *config.Config) { c.Schedule.DailyPlanCron = "every morning" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.modify(cfg)
			_, err := build(context.Background(), cfg, slog.New(slog.DiscardHandler))
			assert.Error(t, err)
		})
	}
}

func TestNewSuggester(t *testing.T) {
	cfg := config.DefaultConfig()
	s, err := newSuggester(cfg)
	require.NoError(t, err)
	assert.Nil(t, s)

	cfg.Provider.Kind = "anthropic"
	cfg.Provider.APIKey = "test-key"
	s, err = newSuggester(cfg)
	require.NoError(t, err)
	assert.NotNil(t, s)
}
