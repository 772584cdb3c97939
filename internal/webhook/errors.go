package webhook

import (
	"errors"
	"fmt"
	"time"
)

// RejectedError indicates the receiver answered with a non-2xx status.
type RejectedError struct {
	Code int
	Body string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("webhook rejected with status %d: %s", e.Code, e.Body)
}

// TimeoutError indicates the delivery did not complete in time.
type TimeoutError struct {
	URL     string
	Timeout time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("webhook %s timed out after %s: %v", e.URL, e.Timeout, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Delivery outcomes used as metric labels.
const (
	OutcomeDelivered = "delivered"
	OutcomeRejected  = "rejected"
	OutcomeTimeout   = "timeout"
	OutcomeError     = "error"
)

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeDelivered
	}
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return OutcomeRejected
	}
	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return OutcomeTimeout
	}
	return OutcomeError
}
