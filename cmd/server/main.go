package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"tender_watch/internal/app"
	"tender_watch/internal/infra/cache"
	"tender_watch/internal/infra/config"
	"tender_watch/internal/infra/database"
	"tender_watch/internal/infra/httpapi"
	"tender_watch/internal/infra/logger"
	"tender_watch/internal/infra/notify"
	"tender_watch/internal/infra/scheduler"
	"tender_watch/internal/infra/ted"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("failed to load config: %v", err)
	}

	logger.Init(cfg)
	log := logger.Component("main")
	log.Info("starting tender watch service")

	if err := runMigrations(cfg.MigrationsURL, cfg.DatabaseURL); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewPostgresTenderRepository(db)

	store := cache.New(cfg.RedisAddr, logger.Component("cache"))
	defer store.Close()

	tedClient := ted.NewClient(ted.ClientConfig{
		BaseURL:        cfg.TEDAPIURL,
		APIKey:         cfg.TEDAPIKey,
		DefaultCountry: cfg.TEDDefaultCountry,
		PageSize:       cfg.TEDPageSize,
		RequestTimeout: cfg.TEDRequestTimeout,
		CacheTTL:       cfg.CacheTTL,
	}, store, nil, logger.Component("ted"))

	syncService := app.NewSyncService(tedClient, repo, cfg.TEDDefaultCountry, logger.Component("sync"))

	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		notifier, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, logger.Component("notify"))
		if err != nil {
			log.Errorf("telegram notifier disabled: %v", err)
		} else {
			syncService.OnSyncComplete(notifier.SyncCompleted)
		}
	}

	syncScheduler := scheduler.NewSyncScheduler(
		syncService,
		logger.Component("scheduler"),
		cfg.SyncEnabled,
		cfg.SyncHour,
		cfg.SyncMinute,
	)
	if err := syncScheduler.Start(); err != nil {
		log.Fatalf("failed to start scheduler: %v", err)
	}

	handler := httpapi.NewHandler(repo, syncService, cfg.TEDDefaultCountry, logger.Component("http"))
	srv := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: httpapi.NewRouter(handler),
	}

	go func() {
		log.Infof("http server listening on %s", cfg.ServerAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("http server shutdown failed: %v", err)
	}
	syncScheduler.Stop()
	log.Info("stopped")
}

func runMigrations(migrationsURL, databaseURL string) error {
	m, err := migrate.New(migrationsURL, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
