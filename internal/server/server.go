package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/restoregeek/restoregeek/internal/database"
	"github.com/restoregeek/restoregeek/internal/handler"
	"github.com/restoregeek/restoregeek/internal/middleware"
	"github.com/restoregeek/restoregeek/internal/reminder"
	"github.com/restoregeek/restoregeek/internal/store"
	ws "github.com/restoregeek/restoregeek/internal/websocket"
)

// Options configures the reminder machinery the server owns.
type Options struct {
	SweepSchedule  string
	Sweeper        reminder.SweeperConfig
	CronSecretHash string
	// CronRateLimit caps sweep trigger requests per client IP per minute.
	CronRateLimit int
	// FeedOriginPatterns are the cross-origin hosts allowed on the live feed.
	FeedOriginPatterns []string
}

type Server struct {
	db             *database.DB
	hub            *ws.Hub
	calendarEventH *handler.CalendarEventHandler
	sweepH         *handler.SweepHandler
	sweeper        *reminder.Sweeper
	scheduler      *reminder.Scheduler
	rateLimiter    *middleware.RateLimiter
	cronSecretHash string
	feedOrigins    []string
	logger         *slog.Logger
}

func New(db *database.DB, sender reminder.Sender, opts Options, logger *slog.Logger) (*Server, error) {
	hub := ws.NewHub(logger)

	eventStore := store.NewEventStore(db)
	reminderStore := store.NewReminderStore(db)
	directoryStore := store.NewDirectoryStore(db)

	lifecycle := reminder.NewLifecycle(reminderStore, hub, logger)
	sweeper := reminder.NewSweeper(reminderStore, eventStore, directoryStore, sender, hub, opts.Sweeper, logger)
	scheduler, err := reminder.NewScheduler(sweeper, opts.SweepSchedule, logger)
	if err != nil {
		return nil, err
	}

	if opts.CronRateLimit < 1 {
		opts.CronRateLimit = 10
	}

	return &Server{
		db:             db,
		hub:            hub,
		calendarEventH: handler.NewCalendarEventHandler(eventStore, reminderStore, directoryStore, lifecycle, logger),
		sweepH:         handler.NewSweepHandler(sweeper, logger),
		sweeper:        sweeper,
		scheduler:      scheduler,
		rateLimiter:    middleware.NewRateLimiter(opts.CronRateLimit, time.Minute),
		cronSecretHash: opts.CronSecretHash,
		feedOrigins:    opts.FeedOriginPatterns,
		logger:         logger,
	}, nil
}

// Scheduler returns the in-process sweep scheduler. The caller starts and stops it.
func (s *Server) Scheduler() *reminder.Scheduler {
	return s.scheduler
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Sweep trigger for external cron; authenticated by shared secret, not organization
	cronAuth := middleware.RequireCronSecret(s.cronSecretHash)
	outerMux.Handle("POST /api/cron/send-reminders", s.rateLimited(cronAuth(http.HandlerFunc(s.sweepH.SendReminders))))

	// Organization-scoped routes
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)
	outerMux.Handle("/", middleware.RequireOrganization(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) rateLimited(h http.Handler) http.Handler {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	return middleware.RateLimit(s.rateLimiter, keyFunc)(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Calendar event API routes
	mux.HandleFunc("POST /api/calendar-events", s.calendarEventH.Create)
	mux.HandleFunc("GET /api/calendar-events", s.calendarEventH.List)
	mux.HandleFunc("GET /api/calendar-events/{id}", s.calendarEventH.Get)
	mux.HandleFunc("PUT /api/calendar-events/{id}", s.calendarEventH.Update)
	mux.HandleFunc("DELETE /api/calendar-events/{id}", s.calendarEventH.Delete)
	mux.HandleFunc("GET /api/calendar-events/{id}/reminders", s.calendarEventH.ListReminders)

	// Live feed
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.feedOrigins, s.logger.With("component", "websocket")))
}

type healthResponse struct {
	Status      string                `json:"status"`
	LastSweepAt *time.Time            `json:"last_sweep_at,omitempty"`
	LastSweep   *reminder.SweepReport `json:"last_sweep,omitempty"`
	FeedClients int                   `json:"feed_clients"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", FeedClients: s.hub.ClientCount()}
	if at, report := s.scheduler.LastReport(); report != nil {
		resp.LastSweepAt = &at
		resp.LastSweep = report
	}

	status := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check: database unreachable", "error", err)
		resp.Status = "unavailable"
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}
