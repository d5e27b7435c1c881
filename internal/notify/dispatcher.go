package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// ErrNotConfigured is returned for a channel whose provider has no credentials.
var ErrNotConfigured = errors.New("notification channel not configured")

type SMSClient interface {
	Configured() bool
	SendSMS(ctx context.Context, phone, body string) error
}

type EmailClient interface {
	Configured() bool
	SendEmail(ctx context.Context, to, subject, html, text string) error
}

// Dispatcher routes reminders to the SMS and email providers. All sends share
// one token bucket so a large sweep cannot exceed the providers' rate limits.
type Dispatcher struct {
	sms     SMSClient
	email   EmailClient
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher. Either client may be nil. A ratePerSec
// of zero or less disables throttling. Each provider call is cut off after
// sendTimeout; zero or less means no limit beyond the caller's context.
func NewDispatcher(sms SMSClient, email EmailClient, ratePerSec int, sendTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec)
	}
	d := &Dispatcher{
		sms:     sms,
		email:   email,
		limiter: limiter,
		timeout: sendTimeout,
		logger:  logger.With("component", "notify"),
	}
	if !d.SMSConfigured() {
		d.logger.Warn("sms provider not configured, sms reminders will stay pending")
	}
	if !d.EmailConfigured() {
		d.logger.Warn("email provider not configured, email reminders will stay pending")
	}
	return d
}

func (d *Dispatcher) SMSConfigured() bool   { return d.sms != nil && d.sms.Configured() }
func (d *Dispatcher) EmailConfigured() bool { return d.email != nil && d.email.Configured() }

func (d *Dispatcher) SendSMS(ctx context.Context, phone, body string) error {
	if !d.SMSConfigured() {
		return fmt.Errorf("sms: %w", ErrNotConfigured)
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("sms rate limit: %w", err)
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	if err := d.sms.SendSMS(ctx, phone, body); err != nil {
		return fmt.Errorf("sms: %w", err)
	}
	return nil
}

func (d *Dispatcher) SendEmail(ctx context.Context, to, subject, html, text string) error {
	if !d.EmailConfigured() {
		return fmt.Errorf("email: %w", ErrNotConfigured)
	}
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("email rate limit: %w", err)
	}
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	if err := d.email.SendEmail(ctx, to, subject, html, text); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return nil
}

// withTimeout bounds a single provider call. The rate limiter wait is not
// counted against it.
func (d *Dispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}
