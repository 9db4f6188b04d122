package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"github.com/jw6ventures/fleetcal/internal/calendar"
	"github.com/jw6ventures/fleetcal/internal/config"
	httpserver "github.com/jw6ventures/fleetcal/internal/http"
	httperrors "github.com/jw6ventures/fleetcal/internal/http/errors"
	"github.com/jw6ventures/fleetcal/internal/logger"
	"github.com/jw6ventures/fleetcal/internal/scheduler"
	"github.com/jw6ventures/fleetcal/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	httperrors.SetLogger(log)

	log.Info("starting fleetcal server", "timezone", cfg.Location.String())
	for _, w := range cfg.Warnings() {
		log.Warn("configuration warning", "warning", w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("failed to create db pool", "error", err)
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool, log); err != nil {
		log.Fatal("failed to apply migrations", "error", err)
	}
	stor := store.New(pool, log)

	norm := calendar.NewNormalizer(cfg.Location, log)
	events := calendar.NewEventStore()
	engine := scheduler.New(events, norm, stor.Tasks, scheduler.Options{
		Logger:      log,
		BaseContext: ctx,
		OnMaintenanceClick: func(id string) {
			log.Info("maintenance record opened", "maintenance_id", id)
		},
	})
	bridge := scheduler.NewBridge(events, norm, stor.Tasks, stor.Bookings, scheduler.BridgeOptions{
		Logger:       log,
		TaskStatuses: cfg.TaskStatuses,
	})

	resync := func(ctx context.Context) {
		// Failed sources keep their previous events.
		if err := bridge.RefreshAll(ctx); err != nil {
			log.Warn("refetch failed", "error", err)
		}
		if err := loadMaintenance(ctx, stor.Maintenance, engine); err != nil {
			log.Warn("maintenance load failed", "error", err)
		}
	}
	resync(ctx)

	if err := bridge.Start(ctx); err != nil {
		log.Fatal("failed to start change feed", "error", err)
	}

	var scheduled *cron.Cron
	if cfg.ResyncCron != "" {
		scheduled = cron.New(cron.WithLocation(cfg.Location))
		if _, err := scheduled.AddFunc(cfg.ResyncCron, func() {
			log.Debug("scheduled resync")
			resync(ctx)
		}); err != nil {
			log.Fatal("invalid resync schedule", "schedule", cfg.ResyncCron, "error", err)
		}
		scheduled.Start()
	}

	r := httpserver.NewRouter(ctx, cfg, httpserver.Deps{
		Engine:    engine,
		Health:    stor,
		Refresher: bridge,
	})

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if scheduled != nil {
		<-scheduled.Stop().Done()
	}
	bridge.Stop()
	engine.Wait()
}

func loadMaintenance(ctx context.Context, src scheduler.MaintenanceSource, engine *scheduler.Engine) error {
	records, err := src.List(ctx)
	if err != nil {
		return err
	}
	engine.SetMaintenance(records)
	return nil
}
