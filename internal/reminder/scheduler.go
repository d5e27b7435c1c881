package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule sweeps once a minute.
const DefaultSchedule = "@every 1m"

// SweepRunner runs a single sweep. *Sweeper satisfies it.
type SweepRunner interface {
	Sweep(ctx context.Context, now time.Time) (*SweepReport, error)
}

var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Scheduler runs sweeps on a cron schedule and on demand. A scheduled tick
// is skipped while the previous scheduled sweep is still running.
type Scheduler struct {
	mu       sync.RWMutex
	sweeper  SweepRunner
	schedule cron.Schedule
	logger   *slog.Logger
	trigger  chan struct{}
	cron     *cron.Cron
	cancel   context.CancelFunc
	done     chan struct{}

	lastRun    time.Time
	lastReport *SweepReport
}

// NewScheduler parses spec (standard cron with optional seconds, or a
// descriptor such as "@every 1m"). An empty spec uses DefaultSchedule.
func NewScheduler(sweeper SweepRunner, spec string, logger *slog.Logger) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}
	return &Scheduler{
		sweeper:  sweeper,
		schedule: schedule,
		logger:   logger.With("component", "reminder_scheduler", "schedule", spec),
		trigger:  make(chan struct{}, 1),
	}, nil
}

// Start begins the cron loop and the on-demand trigger loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.cron = cron.New(
		cron.WithParser(scheduleParser),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cronLogger{s.logger}), cron.SkipIfStillRunning(cronLogger{s.logger})),
	)
	s.cron.Schedule(s.schedule, cron.FuncJob(func() { s.run(ctx, "cron") }))
	s.cron.Start()
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.trigger:
				s.run(ctx, "trigger")
			}
		}
	}()
	s.logger.Info("reminder scheduler started")
}

// Stop halts scheduling and waits for running sweeps to finish.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	c := s.cron
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if c != nil {
		<-c.Stop().Done()
	}
	if done != nil {
		<-done
	}
}

// Trigger requests an immediate sweep without waiting for it. Requests made
// while one is already pending collapse into it.
func (s *Scheduler) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// LastReport returns when the most recent sweep ran and its report.
func (s *Scheduler) LastReport() (time.Time, *SweepReport) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, s.lastReport
}

func (s *Scheduler) run(ctx context.Context, source string) {
	if ctx.Err() != nil {
		return
	}
	now := time.Now().UTC()
	report, err := s.sweeper.Sweep(ctx, now)
	if err != nil {
		s.logger.Error("sweep failed", "source", source, "error", err)
		return
	}

	s.mu.Lock()
	s.lastRun = now
	s.lastReport = report
	s.mu.Unlock()
}

// cronLogger adapts slog to cron's logger interface.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
