package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/restoregeek/restoregeek/internal/reminder"
)

// SweepHandler runs a reminder sweep on request, for deployments driven by
// an external cron.
type SweepHandler struct {
	sweeper reminder.SweepRunner
	logger  *slog.Logger
}

func NewSweepHandler(sweeper reminder.SweepRunner, logger *slog.Logger) *SweepHandler {
	return &SweepHandler{sweeper: sweeper, logger: logger.With("component", "sweep_handler")}
}

func (h *SweepHandler) SendReminders(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.Sweep(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("sweep failed", "error", err)
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}
