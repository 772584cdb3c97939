// Package webhook delivers bridge payloads to the downstream HTTP receiver.
package webhook

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultTimeout = 20 * time.Second
	userAgent      = "cti-webhook/1"
	maxBodyCapture = 4096
)

// ErrEmptyURL is returned when no webhook URL is configured.
var ErrEmptyURL = errors.New("webhook URL is empty")

// Config holds webhook sender configuration.
type Config struct {
	URL       string
	Username  string
	Password  string
	SSLVerify bool
	Timeout   time.Duration
}

// Sender performs a single authenticated POST per payload. It never retries.
type Sender struct {
	config     Config
	httpClient *http.Client
}

// NewSender creates a new webhook sender.
func NewSender(config Config) (*Sender, error) {
	if config.URL == "" {
		return nil, ErrEmptyURL
	}
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("webhook URL must include a host")
	}

	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !config.SSLVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user-configured
		slog.Warn("webhook TLS certificate verification is disabled", "url", RedactURL(config.URL))
	}

	return &Sender{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}, nil
}

// URL returns the redacted webhook URL for logging.
func (s *Sender) URL() string {
	return RedactURL(s.config.URL)
}

// Send posts payload as JSON. A nil error means the receiver answered 2xx.
// Non-2xx answers yield *RejectedError, timeouts yield *TimeoutError.
func (s *Sender) Send(ctx context.Context, action string, payload any) error {
	start := time.Now()

	err := s.send(ctx, payload)
	recordDelivery(action, outcomeOf(err), time.Since(start))

	return err
}

func (s *Sender) send(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.SetBasicAuth(s.config.Username, s.config.Password)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return &TimeoutError{URL: s.URL(), Timeout: s.config.Timeout, Err: err}
		}
		return fmt.Errorf("send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return s.handleResponse(resp)
}

func (s *Sender) handleResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		slog.Debug("webhook delivered", "url", s.URL(), "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyCapture))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	return &RejectedError{
		Code: resp.StatusCode,
		Body: string(body),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// RedactURL masks credentials and query values in a URL for safe logging.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		u.RawQuery = q.Encode()
	}
	return u.Redacted()
}
