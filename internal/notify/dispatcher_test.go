package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/restoregeek/restoregeek/internal/sms"
)

type fakeSMS struct {
	configured bool
	sent       []string
}

func (f *fakeSMS) Configured() bool { return f.configured }

func (f *fakeSMS) SendSMS(ctx context.Context, phone, body string) error {
	f.sent = append(f.sent, phone)
	return nil
}

type fakeEmail struct {
	configured bool
	sent       []string
	err        error
}

func (f *fakeEmail) Configured() bool { return f.configured }

func (f *fakeEmail) SendEmail(ctx context.Context, to, subject, html, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcherRoutes(t *testing.T) {
	text := &fakeSMS{configured: true}
	mail := &fakeEmail{configured: true}
	d := NewDispatcher(text, mail, 0, 0, testLogger())
	ctx := context.Background()

	if err := d.SendSMS(ctx, "+15551112222", "hi"); err != nil {
		t.Fatalf("send sms: %v", err)
	}
	if err := d.SendEmail(ctx, "carla@example.com", "s", "h", "t"); err != nil {
		t.Fatalf("send email: %v", err)
	}
	if len(text.sent) != 1 || len(mail.sent) != 1 {
		t.Errorf("sent sms=%v email=%v", text.sent, mail.sent)
	}
}

func TestDispatcherNotConfigured(t *testing.T) {
	d := NewDispatcher(&fakeSMS{}, nil, 0, 0, testLogger())
	ctx := context.Background()

	if err := d.SendSMS(ctx, "+1555", "hi"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("sms err = %v, want ErrNotConfigured", err)
	}
	if err := d.SendEmail(ctx, "a@example.com", "s", "h", "t"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("email err = %v, want ErrNotConfigured", err)
	}
}

func TestDispatcherPassesProviderErrors(t *testing.T) {
	cause := errors.New("postmark API error: status 500")
	d := NewDispatcher(nil, &fakeEmail{configured: true, err: cause}, 0, 0, testLogger())

	if err := d.SendEmail(context.Background(), "a@example.com", "s", "h", "t"); !errors.Is(err, cause) {
		t.Errorf("err = %v, want %v", err, cause)
	}
}

func TestDispatcherRateLimit(t *testing.T) {
	text := &fakeSMS{configured: true}
	d := NewDispatcher(text, &fakeEmail{configured: true}, 1, 0, testLogger())

	if err := d.SendSMS(context.Background(), "+1", "first"); err != nil {
		t.Fatalf("first send: %v", err)
	}

	// The bucket is empty and refills in one second; a shorter deadline fails fast.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.SendEmail(ctx, "a@example.com", "s", "h", "t"); err == nil {
		t.Error("expected rate limit error, the limiter is shared across channels")
	}
	if len(text.sent) != 1 {
		t.Errorf("sent %d sms, want 1", len(text.sent))
	}
}

func TestDispatcherSendTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	// The client itself has no timeout; only the dispatcher bounds the call.
	client := sms.NewClient("AC123", "secret", "+15550001111",
		sms.WithBaseURL(server.URL),
		sms.WithHTTPClient(&http.Client{}))
	d := NewDispatcher(client, nil, 0, 50*time.Millisecond, testLogger())

	done := make(chan error, 1)
	go func() { done <- d.SendSMS(context.Background(), "+15551112222", "Hi") }()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("err = %v, want context.DeadlineExceeded", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher send did not return while the provider hung")
	}
}

func TestDispatcherTimeoutExcludesRateLimitWait(t *testing.T) {
	text := &fakeSMS{configured: true}
	d := NewDispatcher(text, nil, 10, 50*time.Millisecond, testLogger())

	// Drain the burst so the last sends wait on the limiter longer than the
	// per-send timeout.
	for i := 0; i < 12; i++ {
		if err := d.SendSMS(context.Background(), "+1", "x"); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if len(text.sent) != 12 {
		t.Errorf("sent %d sms, want 12", len(text.sent))
	}
}
