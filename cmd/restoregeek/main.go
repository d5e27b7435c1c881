package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/restoregeek/restoregeek/internal/config"
	"github.com/restoregeek/restoregeek/internal/database"
	"github.com/restoregeek/restoregeek/internal/email"
	"github.com/restoregeek/restoregeek/internal/logging"
	"github.com/restoregeek/restoregeek/internal/notify"
	"github.com/restoregeek/restoregeek/internal/reminder"
	"github.com/restoregeek/restoregeek/internal/server"
	"github.com/restoregeek/restoregeek/internal/sms"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("error", "text").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.DatabaseDriver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	dispatcher := notify.NewDispatcher(
		sms.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber),
		email.NewClient(cfg.PostmarkServerToken, cfg.FromEmail),
		cfg.SendRatePerSec,
		cfg.SendTimeout,
		logger,
	)

	srv, err := server.New(db, dispatcher, server.Options{
		SweepSchedule: cfg.SweepSchedule,
		Sweeper: reminder.SweeperConfig{
			BatchSize:   cfg.SweepBatchSize,
			Concurrency: cfg.SweepConcurrency,
			MaxAge:      cfg.ReminderMaxAge,
		},
		CronSecretHash:     cfg.CronSecretHash,
		FeedOriginPatterns: cfg.FeedOriginPatterns,
	}, logger)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scheduler := srv.Scheduler()
	scheduler.Start(ctx)
	// Catch up on anything that came due while the process was down.
	scheduler.Trigger()

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("RestoreGeek reminders running", "addr", "http://localhost:"+cfg.Port, "driver", cfg.DatabaseDriver)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	cancel()
	scheduler.Stop()
}
