package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bissquit/cti-webhook/internal/pkg/metrics"
	"github.com/nats-io/nats.go"
)

// Pending limits of the subscription. Messages beyond them are dropped by
// the client and reported as a slow consumer.
const (
	natsPendingMsgs  = 65536
	natsPendingBytes = 256 << 20
)

// NATSConfig configures a NATS subject subscription.
type NATSConfig struct {
	URL     string
	Subject string
	// Queue joins a queue group; empty subscribes directly.
	Queue         string
	Name          string
	ReconnectWait time.Duration
}

// NATS consumes events republished on a NATS subject.
type NATS struct {
	config    NATSConfig
	connected atomic.Bool
}

// NewNATS creates a NATS source. It does not connect until Run.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, errors.New("nats url is empty")
	}
	if cfg.Subject == "" {
		return nil, errors.New("nats subject is empty")
	}
	if cfg.Name == "" {
		cfg.Name = "cti-webhook"
	}
	if cfg.ReconnectWait <= 0 {
		cfg.ReconnectWait = 2 * time.Second
	}
	return &NATS{config: cfg}, nil
}

// Name implements Source.
func (n *NATS) Name() string { return KindNATS }

// Connected implements Source.
func (n *NATS) Connected() bool { return n.connected.Load() }

func (n *NATS) setConnected(v bool) {
	n.connected.Store(v)
	metrics.SetStreamConnected(KindNATS, v)
}

// asyncError reports errors raised outside the read loop, slow consumer
// drops included.
func (n *NATS) asyncError(_ *nats.Conn, sub *nats.Subscription, err error) {
	attrs := []any{"error", err, "subject", n.config.Subject}
	if sub != nil {
		if dropped, derr := sub.Dropped(); derr == nil {
			attrs = append(attrs, "dropped", dropped)
		}
	}

	if errors.Is(err, nats.ErrSlowConsumer) {
		metrics.StreamDropped.WithLabelValues(KindNATS).Inc()
		slog.Error("nats slow consumer, messages dropped", attrs...)
		return
	}
	slog.Error("nats async error", attrs...)
}

// Run implements Source.
func (n *NATS) Run(ctx context.Context, handle HandleFunc) error {
	nc, err := nats.Connect(n.config.URL,
		nats.Name(n.config.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(n.config.ReconnectWait),
		nats.ErrorHandler(n.asyncError),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			n.setConnected(false)
			slog.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			n.setConnected(true)
			metrics.StreamReconnects.WithLabelValues(KindNATS).Inc()
			slog.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return fmt.Errorf("connect nats: %w", err)
	}
	defer nc.Close()

	var sub *nats.Subscription
	if n.config.Queue != "" {
		sub, err = nc.QueueSubscribeSync(n.config.Subject, n.config.Queue)
	} else {
		sub, err = nc.SubscribeSync(n.config.Subject)
	}
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", n.config.Subject, err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	if err := sub.SetPendingLimits(natsPendingMsgs, natsPendingBytes); err != nil {
		return fmt.Errorf("set pending limits: %w", err)
	}

	// Round-trip to the server so the subscription is registered before
	// the source reports itself connected.
	if err := nc.Flush(); err != nil {
		return fmt.Errorf("flush nats subscription: %w", err)
	}

	n.setConnected(true)
	defer n.setConnected(false)
	slog.Info("subscribed to nats subject", "subject", n.config.Subject, "queue", n.config.Queue)

	for {
		msg, err := sub.NextMsgWithContext(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, nats.ErrSlowConsumer):
			// Already reported by asyncError; the subscription keeps delivering.
			continue
		case err != nil:
			return fmt.Errorf("next nats message: %w", err)
		}
		handle(ctx, msg.Data)
	}
}
