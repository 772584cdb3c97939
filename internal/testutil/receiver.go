package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// ReceivedRequest is one request captured by a Receiver.
type ReceivedRequest struct {
	Username string
	Password string
	Body     []byte
}

// Decode unmarshals the captured body.
func (r ReceivedRequest) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("decode received body: %v", err)
	}
}

// Receiver is a webhook endpoint that records every request and validates
// it against the notification contract.
type Receiver struct {
	*httptest.Server

	mu        sync.Mutex
	t         *testing.T
	validator *OpenAPIValidator
	status    int
	received  []ReceivedRequest
	notify    chan struct{}
}

// NewReceiver starts a receiver answering 200. A nil validator skips validation.
func NewReceiver(t *testing.T, validator *OpenAPIValidator) *Receiver {
	t.Helper()
	r := &Receiver{
		t:         t,
		validator: validator,
		status:    http.StatusOK,
		notify:    make(chan struct{}, 64),
	}
	r.Server = httptest.NewServer(http.HandlerFunc(r.serve))
	t.Cleanup(r.Close)
	return r
}

// WebhookURL returns the webhook URL to configure.
func (r *Receiver) WebhookURL() string {
	return r.Server.URL + "/webhook"
}

// SetStatus changes the status code returned from now on.
func (r *Receiver) SetStatus(code int) {
	r.mu.Lock()
	r.status = code
	r.mu.Unlock()
}

// Received returns a copy of the captured requests.
func (r *Receiver) Received() []ReceivedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ReceivedRequest(nil), r.received...)
}

// WaitFor blocks until n requests have been captured or the timeout expires.
func (r *Receiver) WaitFor(n int, timeout time.Duration) []ReceivedRequest {
	r.t.Helper()
	deadline := time.After(timeout)
	for {
		if got := r.Received(); len(got) >= n {
			return got
		}
		select {
		case <-r.notify:
		case <-deadline:
			r.t.Fatalf("receiver: want %d requests, got %d", n, len(r.Received()))
			return nil
		}
	}
}

func (r *Receiver) serve(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(req.Body)
	if err != nil {
		r.t.Errorf("receiver: read body: %v", err)
	}
	if r.validator != nil {
		r.validator.ValidateRequest(r.t, req, body)
	}

	user, pass, _ := req.BasicAuth()

	r.mu.Lock()
	r.received = append(r.received, ReceivedRequest{Username: user, Password: pass, Body: body})
	status := r.status
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}

	w.WriteHeader(status)
}
