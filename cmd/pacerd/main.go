// Command pacerd is the Pacer server daemon.
// It wires storage, the estimator, the learner and the scheduler from the
// config file and serves the REST API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GoCodeAlone/pacer/cache"
	"github.com/GoCodeAlone/pacer/calendar"
	"github.com/GoCodeAlone/pacer/comms"
	"github.com/GoCodeAlone/pacer/config"
	"github.com/GoCodeAlone/pacer/estimate"
	"github.com/GoCodeAlone/pacer/internal/logging"
	"github.com/GoCodeAlone/pacer/internal/version"
	"github.com/GoCodeAlone/pacer/jobs"
	"github.com/GoCodeAlone/pacer/learning"
	"github.com/GoCodeAlone/pacer/planner"
	"github.com/GoCodeAlone/pacer/provider"
	"github.com/GoCodeAlone/pacer/schedule"
	"github.com/GoCodeAlone/pacer/server"
	"github.com/GoCodeAlone/pacer/storage"
	"github.com/GoCodeAlone/pacer/task"
)

var (
	configPath = flag.String("config", "", "path to config file (.yaml or .json)")
	addr       = flag.String("addr", "", "listen address, overrides server.addr")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "pacerd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	logger.Info("starting pacerd", "version", version.Version, "commit", version.Commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	srv := server.New(cfg, a.planner, a.bus, logger)
	a.jobs.Start()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.jobs.Stop(shutdownCtx); err != nil {
		logger.Error("jobs stop error", "error", err)
	}
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("server stop error", "error", err)
	}
	return <-errCh
}

// app holds the wired planner and everything that must be closed with it.
type app struct {
	planner *planner.Planner
	bus     *comms.InMemoryBus
	jobs    *jobs.Runner
	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		_ = a.Close()
		return nil, err
	}

	db, err := storage.Open(cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, db.Close)

	tasks, err := task.NewSQLStore(ctx, db)
	if err != nil {
		return fail(err)
	}
	records, err := learning.NewSQLRecordStore(ctx, db)
	if err != nil {
		return fail(err)
	}
	commitments, err := calendar.NewSQLStore(ctx, db)
	if err != nil {
		return fail(err)
	}

	suggester, err := newSuggester(cfg)
	if err != nil {
		return fail(err)
	}
	if suggester == nil {
		logger.Info("no estimation provider configured, using rules only")
	}

	profiles, err := newProfileCache(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	if c, ok := profiles.(*cache.RedisProfileCache); ok {
		a.closers = append(a.closers, c.Close)
	}

	standing, err := cfg.StandingIntervals()
	if err != nil {
		return fail(err)
	}
	schedCfg, err := cfg.ScheduleConfig()
	if err != nil {
		return fail(err)
	}
	sched, err := schedule.New(schedCfg)
	if err != nil {
		return fail(err)
	}

	a.bus = comms.NewInMemoryBus(cfg.Events.History)
	a.planner, err = planner.New(planner.Deps{
		Tasks:     tasks,
		Estimator: estimate.New(suggester, cfg.EstimateConfig(), logger),
		Learner:   learning.NewLearner(records, profiles, logger),
		Calendar:  calendar.New(commitments, standing),
		Scheduler: sched,
		Bus:       a.bus,
		Logger:    logger,
	})
	if err != nil {
		return fail(err)
	}

	a.jobs, err = jobs.New(jobs.Config{
		DailyPlan: cfg.Schedule.DailyPlanCron,
		Location:  a.planner.Location(),
	}, a.planner, logger)
	if err != nil {
		return fail(err)
	}
	return a, nil
}

// newSuggester returns nil when no hosted provider is configured.
func newSuggester(cfg *config.Config) (estimate.Suggester, error) {
	switch strings.ToLower(cfg.Provider.Kind) {
	case "", "none":
		return nil, nil
	}
	client := &http.Client{Timeout: cfg.EstimateConfig().Timeout}
	p, err := provider.New(cfg.Provider, client)
	if err != nil {
		return nil, err
	}
	return estimate.NewProviderSuggester(p, cfg.Estimator.Workday), nil
}

func newProfileCache(ctx context.Context, cfg *config.Config) (learning.ProfileCache, error) {
	if strings.EqualFold(cfg.Cache.Kind, "redis") {
		return cache.NewRedisProfileCache(ctx, cache.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
			TTL:      cfg.CacheTTL(),
		})
	}
	return learning.NewMemoryCache(), nil
}
