package bridge

import (
	"errors"
	"fmt"
)

// Classification errors.
var (
	ErrExtensionMissing   = errors.New("incident extension not found")
	ErrExtensionMalformed = errors.New("incident extension is malformed")
)

// Enrichment errors.
var (
	ErrNoIndicator       = errors.New("incident has no related indicator")
	ErrIndicatorNotFound = errors.New("indicator not found")
)

// ErrorKind tags a message processing failure.
type ErrorKind string

// Processing failure kinds.
const (
	KindDecode           ErrorKind = "decode"
	KindDeliveryTimeout  ErrorKind = "delivery_timeout"
	KindDeliveryRejected ErrorKind = "delivery_rejected"
	KindEnrichment       ErrorKind = "enrichment"
	KindUnexpected       ErrorKind = "unexpected"
)

// ProcessError is the failure of one stream message. It never outlives the message.
type ProcessError struct {
	Kind       ErrorKind
	EventID    string
	IncidentID string
	// Payload is the body that failed delivery, if any.
	Payload any
	Stack   []byte
	Err     error
}

func (e *ProcessError) Error() string {
	if e.IncidentID != "" {
		return fmt.Sprintf("%s (incident %s): %v", e.Kind, e.IncidentID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// EnrichmentError reports which lookup step failed.
type EnrichmentError struct {
	Step string
	Err  error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich %s: %v", e.Step, e.Err)
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a processing error, or "" when err is nil or untagged.
func KindOf(err error) ErrorKind {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}
