package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/restoregeek/restoregeek/internal/model"
	"github.com/restoregeek/restoregeek/internal/websocket"
)

// Sender delivers one notification on one channel. It does not retry; a
// failed channel stays due and is picked up by the next sweep.
type Sender interface {
	SendSMS(ctx context.Context, phone, body string) error
	SendEmail(ctx context.Context, to, subject, html, text string) error
}

// DueStore is the part of the reminder store a sweep reads and marks.
type DueStore interface {
	FetchDue(ctx context.Context, now time.Time, limit int) ([]model.Reminder, error)
	MarkChannelSent(ctx context.Context, reminderID string, ch model.Channel, at time.Time) (bool, error)
	ExpireStale(ctx context.Context, cutoff, at time.Time) (int64, error)
}

// ContextLoader loads an event with its project and organization. A nil
// context with no error means the event no longer exists.
type ContextLoader interface {
	LoadContext(ctx context.Context, eventID string) (*model.EventContext, error)
}

type SweeperConfig struct {
	// BatchSize caps how many due reminders one sweep handles; 0 means all.
	BatchSize int
	// Concurrency bounds how many reminders are processed at once.
	Concurrency int
	// MaxAge expires reminders that have been both due and planned for longer
	// than this, so a reminder planned after its trigger time still gets a
	// window of sweeps. 0 disables expiry.
	MaxAge time.Duration
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Attempted        int           `json:"attempted"`
	SentSMS          int           `json:"sentSms"`
	SentEmail        int           `json:"sentEmail"`
	SkippedNoContact int           `json:"skippedNoContact"`
	Failed           int           `json:"failed"`
	// Duplicates counts channels this sweep dispatched but another sweep had
	// already recorded, or whose reminder was removed mid-send. They are not
	// counted as sent.
	Duplicates       int           `json:"duplicates"`
	Expired          int64         `json:"expired"`
	DurationMS       int64         `json:"durationMs"`
	Duration         time.Duration `json:"-"`

	errs error
}

// Errors returns the individual send and record failures of the sweep.
func (r *SweepReport) Errors() []error {
	return multierr.Errors(r.errs)
}

// Sweeper finds due reminders and dispatches their unsent channels.
type Sweeper struct {
	store  DueStore
	events ContextLoader
	users  UserLookup
	sender Sender
	feed   Broadcaster
	cfg    SweeperConfig
	logger *slog.Logger
}

// NewSweeper creates a Sweeper. feed may be nil.
func NewSweeper(store DueStore, events ContextLoader, users UserLookup, sender Sender, feed Broadcaster, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Sweeper{
		store:  store,
		events: events,
		users:  users,
		sender: sender,
		feed:   feed,
		cfg:    cfg,
		logger: logger.With("component", "reminder_sweeper"),
	}
}

// Sweep runs one pass at now. It is safe to run concurrently with itself:
// each channel is recorded at most once, though overlapping sweeps may both
// dispatch it. Only store failures while expiring or fetching are returned;
// per-reminder failures are counted in the report and retried next sweep.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (*SweepReport, error) {
	started := time.Now()
	now = now.UTC()
	report := &SweepReport{}

	if s.cfg.MaxAge > 0 {
		n, err := s.store.ExpireStale(ctx, now.Add(-s.cfg.MaxAge), now)
		if err != nil {
			return report, fmt.Errorf("expire stale reminders: %w", err)
		}
		report.Expired = n
		if n > 0 {
			s.logger.Warn("expired undeliverable reminders", "count", n, "max_age", s.cfg.MaxAge)
		}
	}

	due, err := s.store.FetchDue(ctx, now, s.cfg.BatchSize)
	if err != nil {
		return report, fmt.Errorf("fetch due reminders: %w", err)
	}
	report.Attempted = len(due)

	run := &sweepRun{
		Sweeper: s,
		now:     now,
		report:  report,
		cache:   make(map[string]*cachedContext),
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, r := range due {
		g.Go(func() error {
			run.process(ctx, r)
			return nil
		})
	}
	g.Wait()

	report.Duration = time.Since(started)
	report.DurationMS = report.Duration.Milliseconds()

	for _, err := range report.Errors() {
		s.logger.Error("reminder delivery failed", "error", err)
	}
	s.logger.Info("sweep completed",
		"attempted", report.Attempted,
		"sent_sms", report.SentSMS,
		"sent_email", report.SentEmail,
		"skipped_no_contact", report.SkippedNoContact,
		"failed", report.Failed,
		"duplicates", report.Duplicates,
		"expired", report.Expired,
		"duration", report.Duration,
	)
	s.broadcast(websocket.NewMessage("sweep", "completed", "", map[string]any{
		"attempted":  report.Attempted,
		"sentSms":    report.SentSMS,
		"sentEmail":  report.SentEmail,
		"failed":     report.Failed,
		"duplicates": report.Duplicates,
	}))
	return report, nil
}

func (s *Sweeper) broadcast(msg websocket.Message) {
	if s.feed != nil {
		s.feed.Broadcast(msg)
	}
}

type cachedContext struct {
	once sync.Once
	ec   *model.EventContext
	err  error
}

// sweepRun holds the state shared by the workers of one sweep.
type sweepRun struct {
	*Sweeper
	now time.Time

	mu     sync.Mutex
	report *SweepReport
	cache  map[string]*cachedContext
}

func (run *sweepRun) eventContext(ctx context.Context, eventID string) (*model.EventContext, error) {
	run.mu.Lock()
	c, ok := run.cache[eventID]
	if !ok {
		c = &cachedContext{}
		run.cache[eventID] = c
	}
	run.mu.Unlock()

	c.once.Do(func() {
		c.ec, c.err = run.events.LoadContext(ctx, eventID)
	})
	return c.ec, c.err
}

func (run *sweepRun) record(fn func(r *SweepReport)) {
	run.mu.Lock()
	fn(run.report)
	run.mu.Unlock()
}

func (run *sweepRun) fail(r model.Reminder, err error) {
	pending := 0
	for _, ch := range model.Channels {
		if r.Pending(ch) {
			pending++
		}
	}
	run.record(func(rep *SweepReport) {
		rep.Failed += pending
		rep.errs = multierr.Append(rep.errs, err)
	})
}

func (run *sweepRun) process(ctx context.Context, r model.Reminder) {
	log := run.logger.With("reminder", r.ID, "event", r.EventID, "target", r.Target.String())

	ec, err := run.eventContext(ctx, r.EventID)
	if err != nil {
		run.fail(r, fmt.Errorf("load event %s for reminder %s: %w", r.EventID, r.ID, err))
		return
	}
	if ec == nil || ec.Event.IsDeleted {
		log.Debug("event gone, skipping reminder")
		return
	}

	rcpt, err := resolveRecipient(ctx, run.users, ec, r.Target)
	if err != nil {
		run.fail(r, fmt.Errorf("resolve recipient for reminder %s: %w", r.ID, err))
		return
	}

	content, err := Render(ec, rcpt, run.now)
	if err != nil {
		run.fail(r, fmt.Errorf("render reminder %s: %w", r.ID, err))
		return
	}

	for _, ch := range model.Channels {
		if !r.Pending(ch) {
			continue
		}
		addr := rcpt.Address(ch)
		if addr == "" {
			log.Debug("no contact address, channel left pending", "channel", ch)
			run.record(func(rep *SweepReport) { rep.SkippedNoContact++ })
			continue
		}
		run.deliver(ctx, log, r, ec, ch, addr, content)
	}
}

func (run *sweepRun) deliver(ctx context.Context, log *slog.Logger, r model.Reminder, ec *model.EventContext, ch model.Channel, addr string, content Content) {
	var err error
	switch ch {
	case model.ChannelSMS:
		err = run.sender.SendSMS(ctx, addr, content.SMS)
	case model.ChannelEmail:
		err = run.sender.SendEmail(ctx, addr, content.EmailSubject, content.EmailHTML, content.EmailText)
	}
	if err != nil {
		run.record(func(rep *SweepReport) {
			rep.Failed++
			rep.errs = multierr.Append(rep.errs, fmt.Errorf("send %s for reminder %s: %w", ch, r.ID, err))
		})
		return
	}

	recorded, err := run.store.MarkChannelSent(ctx, r.ID, ch, run.now)
	if err != nil {
		// Delivered but not recorded: the next sweep will send again.
		run.record(func(rep *SweepReport) {
			rep.Failed++
			rep.errs = multierr.Append(rep.errs, fmt.Errorf("record %s sent for reminder %s: %w", ch, r.ID, err))
		})
		return
	}
	if !recorded {
		log.Info("channel already recorded or reminder removed", "channel", ch)
		run.record(func(rep *SweepReport) { rep.Duplicates++ })
		return
	}

	run.record(func(rep *SweepReport) {
		if ch == model.ChannelSMS {
			rep.SentSMS++
		} else {
			rep.SentEmail++
		}
	})
	log.Info("reminder sent", "channel", ch)
	run.broadcast(websocket.NewMessage("reminder", "sent", r.ID, map[string]any{
		"channel":  string(ch),
		"event_id": r.EventID,
		"target":   r.Target,
	}).ForOrganization(ec.Event.OrganizationID))
}
