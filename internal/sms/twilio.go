package sms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.twilio.com/2010-04-01"

// DefaultTimeout bounds one request when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// ErrNotConfigured is returned when account credentials or the sending number are missing.
var ErrNotConfigured = errors.New("sms client not configured")

// APIError is a non-2xx answer from Twilio.
type APIError struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("twilio API error: status %d code %d: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("twilio API error: status %d", e.Status)
}

// Client sends text messages through the Twilio Messages API.
type Client struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithBaseURL overrides the API root, e.g. for a test server.
func WithBaseURL(u string) Option {
	return func(cl *Client) {
		cl.baseURL = strings.TrimRight(u, "/")
	}
}

func NewClient(accountSID, authToken, fromNumber string, opts ...Option) *Client {
	c := &Client{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if credentials and a sending number are set.
func (c *Client) Configured() bool {
	return c.accountSID != "" && c.authToken != "" && c.fromNumber != ""
}

type messageResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// SendSMS sends body to phone and returns once Twilio has accepted the message.
func (c *Client) SendSMS(ctx context.Context, phone, body string) error {
	sid, token, from := c.accountSID, c.authToken, c.fromNumber
	if sid == "" || token == "" || from == "" {
		return ErrNotConfigured
	}

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(sid))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(sid, token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 400 {
		apiErr := &APIError{}
		_ = json.Unmarshal(data, apiErr)
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	var msg messageResponse
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode twilio response: %w", err)
	}
	if msg.Status == "failed" || msg.Status == "undelivered" {
		return fmt.Errorf("twilio message %s %s", msg.SID, msg.Status)
	}
	return nil
}
