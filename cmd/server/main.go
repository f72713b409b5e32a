package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"stagehall/api"
	"stagehall/config"
	"stagehall/handlers"
	"stagehall/internal/database"
	"stagehall/services/accounts"
	"stagehall/services/entase"
	"stagehall/services/scheduler"
	"stagehall/services/sessions"
	"stagehall/services/syncer"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("[server] %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.LogFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    20, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}))
	}

	db, err := database.NewDB(database.Config{DatabasePath: cfg.DatabasePath})
	if err != nil {
		return err
	}
	defer db.Close()

	sessionsSvc, err := sessions.NewService(cfg.SessionDir, sessions.DefaultSessionDuration)
	if err != nil {
		return err
	}
	accountsSvc := accounts.NewService(db.Users)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := accountsSvc.EnsureBootstrapAdmin(ctx); err != nil {
		return err
	}

	if err := cfg.ValidateSync(); err != nil {
		// The public site still works without upstream credentials; only
		// the sync surfaces are unavailable.
		log.Printf("[server] sync disabled: %v", err)
	}

	client := entase.NewClient(cfg.EntaseAPIKey, cfg.EntaseBaseURL, nil)
	syncSvc := syncer.NewService(client, db, cfg.SyncRefreshExisting, func(enabled bool) entase.URLVerifier {
		return entase.NewAssetVerifier(enabled, nil)
	})

	sched := scheduler.NewService(syncSvc, time.Duration(cfg.SyncIntervalMinutes)*time.Minute)
	if cfg.ValidateSync() == nil {
		sched.Start(ctx)
		defer sched.Stop()
	}

	router := api.NewRouter(api.RouterConfig{
		Sessions:     sessionsSvc,
		Auth:         handlers.NewAuthHandler(accountsSvc, sessionsSvc),
		Shows:        handlers.NewShowsHandler(db.Shows, db.Performances),
		Sync:         handlers.NewSyncHandler(syncSvc),
		CronSecret:   cfg.CronSecret,
		IsProduction: cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s (%s)", srv.Addr, cfg.Environment)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Printf("[server] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
