// cmd/service/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"git-commit-tracker/internal/api"
	"git-commit-tracker/internal/config"
	"git-commit-tracker/internal/gitcli"
	"git-commit-tracker/internal/identity"
	"git-commit-tracker/internal/ingest"
	"git-commit-tracker/internal/jobs"
	"git-commit-tracker/internal/metadata"
	"git-commit-tracker/internal/store"
	"git-commit-tracker/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	db := store.New(dbpool)
	git := gitcli.NewGateway(gitcli.NewRunner(), logger)
	meta := metadata.NewClient(cfg.ReposAPIURL, logger)
	resolver := identity.NewResolver(db,
		identity.NewMemoryPool(cfg.GithubTokens...),
		identity.NewMemoryNegativeCache(), logger)
	engine := ingest.NewEngine(git, db, logger, cfg.IngestBudget)
	pipeline := syncer.NewPipeline(db, git, meta, resolver, engine, logger, cfg.CloneTimeout)

	jobService := jobs.NewService(db, logger)
	worker := jobs.NewWorker(db, logger, cfg.JobTimeout)
	worker.Register(jobs.KindParseCommits, jobs.NewParseHandler(db, meta, pipeline, logger).Handle)
	worker.Register(jobs.KindSyncCommits, jobs.NewSyncHandler(pipeline, jobService, logger).Handle)

	sweeper := syncer.NewSweeper(db, jobService, meta, logger, cfg.SweepInterval)
	janitor := jobs.NewJanitor(db, logger, cfg.CleanupInterval)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(db, jobService, logger),
	}

	// 6. Run the HTTP server and background loops until shutdown
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return worker.RunPool(ctx, cfg.WorkerCount)
	})
	g.Go(func() error {
		sweeper.Start(ctx)
		return nil
	})
	g.Go(func() error {
		janitor.Start(ctx)
		return nil
	})
	g.Go(func() error {
		// Safety net for jobs whose worker died between claiming the
		// task and writing the terminal status.
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := jobService.CheckStatuses(ctx); err != nil {
					logger.Error("Failed to check job statuses", "error", err)
				}
			}
		}
	})

	logger.Info("Application started. Waiting for shutdown signal...")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Shutdown complete")
	return nil
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
