// Command sweep runs a single reminder sweep and prints its report as JSON.
// It exits non-zero when the sweep could not read or update the reminder store.
package main

import (
	"context"
	"encoding/json"
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
	"github.com/restoregeek/restoregeek/internal/sms"
	"github.com/restoregeek/restoregeek/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logging.Setup("error", "text").Error("failed to load config", "error", err)
		return 1
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database", "driver", cfg.DatabaseDriver, "error", err)
		return 1
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := notify.NewDispatcher(
		sms.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber),
		email.NewClient(cfg.PostmarkServerToken, cfg.FromEmail),
		cfg.SendRatePerSec,
		cfg.SendTimeout,
		logger,
	)
	reminders := store.NewReminderStore(db)
	sweeper := reminder.NewSweeper(
		reminders,
		store.NewEventStore(db),
		store.NewDirectoryStore(db),
		dispatcher,
		nil,
		reminder.SweeperConfig{
			BatchSize:   cfg.SweepBatchSize,
			Concurrency: cfg.SweepConcurrency,
			MaxAge:      cfg.ReminderMaxAge,
		},
		logger,
	)

	report, err := sweeper.Sweep(ctx, time.Now().UTC())
	if err != nil {
		logger.Error("sweep failed", "error", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		logger.Error("failed to write report", "error", err)
		return 1
	}
	return 0
}
