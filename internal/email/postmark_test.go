package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendEmail(t *testing.T) {
	var received postmarkEmail
	var gotToken string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"MessageID": "test-id"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "reminders@example.com",
		WithHTTPClient(&http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}))

	err := client.SendEmail(context.Background(), "carla@example.com", "Reminder: Moisture reading", "<p>Hi</p>", "Hi")
	if err != nil {
		t.Fatalf("send email: %v", err)
	}

	if gotToken != "test-token" {
		t.Errorf("server token = %q, want %q", gotToken, "test-token")
	}
	if received.To != "carla@example.com" {
		t.Errorf("To = %q, want %q", received.To, "carla@example.com")
	}
	if received.From != "reminders@example.com" {
		t.Errorf("From = %q, want %q", received.From, "reminders@example.com")
	}
	if received.Subject != "Reminder: Moisture reading" {
		t.Errorf("Subject = %q", received.Subject)
	}
	if received.HtmlBody != "<p>Hi</p>" || received.TextBody != "Hi" {
		t.Errorf("bodies = %q / %q", received.HtmlBody, received.TextBody)
	}
	if received.MessageStream != "outbound" {
		t.Errorf("MessageStream = %q, want outbound", received.MessageStream)
	}
}

func TestSendEmailEndpointOption(t *testing.T) {
	var hit bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = r.URL.Path == "/email"
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient("test-token", "reminders@example.com", WithEndpoint(server.URL+"/email"))
	if err := client.SendEmail(context.Background(), "a@example.com", "s", "h", "t"); err != nil {
		t.Fatalf("send email: %v", err)
	}
	if !hit {
		t.Error("expected request to the configured endpoint")
	}
}

func TestSendEmailNotConfigured(t *testing.T) {
	client := NewClient("", "reminders@example.com")

	err := client.SendEmail(context.Background(), "carla@example.com", "s", "h", "t")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSendEmailAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"ErrorCode": 300, "Message": "Invalid email request"}`))
	}))
	defer server.Close()

	client := NewClient("test-token", "reminders@example.com")
	client.httpClient = &http.Client{Transport: &rewriteTransport{base: http.DefaultTransport, target: server.URL}}

	err := client.SendEmail(context.Background(), "not-an-address", "s", "h", "t")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusUnprocessableEntity || apiErr.ErrorCode != 300 {
		t.Errorf("api error = %+v", apiErr)
	}
}

func TestConfigured(t *testing.T) {
	c1 := NewClient("token", "from@test.com")
	if !c1.Configured() {
		t.Error("expected Configured() = true")
	}

	c2 := NewClient("", "from@test.com")
	if c2.Configured() {
		t.Error("expected Configured() = false")
	}

	c3 := NewClient("token", "")
	if c3.Configured() {
		t.Error("expected Configured() = false without a sender")
	}
}

func TestDefaultClientHasTimeout(t *testing.T) {
	client := NewClient("token", "from@example.com")
	if client.httpClient.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", client.httpClient.Timeout, DefaultTimeout)
	}
}

func TestSendEmailHungProviderTimesOut(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	client := NewClient("token", "from@example.com",
		WithEndpoint(server.URL),
		WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))

	done := make(chan error, 1)
	go func() { done <- client.SendEmail(context.Background(), "alice@example.com", "s", "h", "t") }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected timeout error from a provider that never answers")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send did not return while the provider hung")
	}
}

// rewriteTransport redirects all requests to a test server URL.
type rewriteTransport struct {
	base   http.RoundTripper
	target string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.target[len("http://"):]
	return t.base.RoundTrip(req)
}
