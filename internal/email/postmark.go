package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultEndpoint = "https://api.postmarkapp.com/email"

// DefaultTimeout bounds one request when no HTTP client is supplied.
const DefaultTimeout = 30 * time.Second

// ErrNotConfigured is returned when no server token or sender address is set.
var ErrNotConfigured = errors.New("email client not configured")

// APIError is a non-2xx answer from Postmark.
type APIError struct {
	Status    int
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("postmark API error: status %d code %d: %s", e.Status, e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("postmark API error: status %d", e.Status)
}

// Client sends transactional email through Postmark.
type Client struct {
	serverToken string
	fromEmail   string
	endpoint    string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithEndpoint overrides the Postmark send URL.
func WithEndpoint(url string) Option {
	return func(cl *Client) {
		cl.endpoint = url
	}
}

func NewClient(serverToken, fromEmail string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		endpoint:    defaultEndpoint,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if both the server token and sender are set.
func (c *Client) Configured() bool {
	return c.serverToken != "" && c.fromEmail != ""
}

type postmarkEmail struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	HtmlBody      string `json:"HtmlBody"`
	TextBody      string `json:"TextBody"`
	MessageStream string `json:"MessageStream"`
	Tag           string `json:"Tag,omitempty"`
}

// SendEmail delivers one message to a single address.
func (c *Client) SendEmail(ctx context.Context, to, subject, htmlBody, textBody string) error {
	token, from := c.serverToken, c.fromEmail
	if token == "" || from == "" {
		return ErrNotConfigured
	}

	payload := postmarkEmail{
		From:          from,
		To:            to,
		Subject:       subject,
		HtmlBody:      htmlBody,
		TextBody:      textBody,
		MessageStream: "outbound",
		Tag:           "reminder",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = json.Unmarshal(data, apiErr)
		return apiErr
	}

	return nil
}
