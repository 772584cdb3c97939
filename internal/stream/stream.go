// Package stream delivers raw platform change events to a handler.
//
// Every source calls the handler synchronously, one message at a time, so the
// handler never needs to be safe for concurrent use by the same source.
package stream

import (
	"context"
	"errors"
	"strings"
)

// Source kinds.
const (
	KindSSE   = "sse"
	KindNATS  = "nats"
	KindKafka = "kafka"
)

// ErrUnknownKind reports a configured source kind with no implementation.
var ErrUnknownKind = errors.New("unknown stream source")

// HandleFunc processes one raw event. It must not retain data after returning.
type HandleFunc func(ctx context.Context, data []byte)

// Source is a subscription to the platform event stream.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string
	// Run consumes events until ctx is cancelled. It returns nil on
	// cancellation and an error only when the source cannot continue.
	Run(ctx context.Context, handle HandleFunc) error
	// Connected reports whether the source currently holds a live subscription.
	Connected() bool
}

// ParseBrokers parses a comma-separated broker list and trims whitespace.
func ParseBrokers(brokers string) []string {
	if brokers == "" {
		return nil
	}
	list := strings.Split(brokers, ",")
	result := make([]string, 0, len(list))
	for _, b := range list {
		if b = strings.TrimSpace(b); b != "" {
			result = append(result, b)
		}
	}
	return result
}
