package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bissquit/cti-webhook/internal/pkg/metrics"
	"github.com/segmentio/kafka-go"
)

const (
	kafkaMaxWait        = 10 * time.Second
	kafkaCommitInterval = time.Second
	kafkaDialTimeout    = 10 * time.Second
)

// KafkaConfig configures a consumer-group reader.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	// StartOffset applies only when the group has no committed offset:
	// "first" or "last".
	StartOffset string
}

// Kafka consumes events republished on a Kafka topic.
type Kafka struct {
	config    KafkaConfig
	connected atomic.Bool
}

// NewKafka creates a Kafka source. It does not connect until Run.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("brokers cannot be empty")
	}
	if cfg.Topic == "" {
		return nil, errors.New("topic cannot be empty")
	}
	if cfg.GroupID == "" {
		return nil, errors.New("groupID cannot be empty")
	}
	switch cfg.StartOffset {
	case "":
		cfg.StartOffset = "last"
	case "first", "last":
	default:
		return nil, fmt.Errorf("invalid start offset %q", cfg.StartOffset)
	}
	return &Kafka{config: cfg}, nil
}

// Name implements Source.
func (k *Kafka) Name() string { return KindKafka }

// Connected implements Source. It turns true once a broker has served the
// topic metadata or the first message.
func (k *Kafka) Connected() bool { return k.connected.Load() }

func (k *Kafka) setConnected(v bool) {
	k.connected.Store(v)
	metrics.SetStreamConnected(KindKafka, v)
}

func (k *Kafka) readerConfig() kafka.ReaderConfig {
	offset := kafka.LastOffset
	if k.config.StartOffset == "first" {
		offset = kafka.FirstOffset
	}
	return kafka.ReaderConfig{
		Brokers:        k.config.Brokers,
		Topic:          k.config.Topic,
		GroupID:        k.config.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		MaxWait:        kafkaMaxWait,
		CommitInterval: kafkaCommitInterval,
		StartOffset:    offset,
	}
}

// Run implements Source. Offsets are committed after the handler returns.
func (k *Kafka) Run(ctx context.Context, handle HandleFunc) error {
	reader := kafka.NewReader(k.readerConfig())
	defer func() {
		if err := reader.Close(); err != nil {
			slog.Error("close kafka reader", "error", err)
		}
	}()

	slog.Info("kafka consumer started",
		"brokers", k.config.Brokers,
		"topic", k.config.Topic,
		"group_id", k.config.GroupID,
	)
	defer k.setConnected(false)

	if err := k.checkBrokers(ctx); err != nil {
		slog.Warn("kafka brokers not reachable yet", "error", err)
	} else {
		k.setConnected(true)
	}

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch kafka message: %w", err)
		}

		if !k.connected.Load() {
			k.setConnected(true)
		}

		handle(ctx, msg.Value)

		if err := reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("commit kafka offset", "error", err, "offset", msg.Offset, "partition", msg.Partition)
		}
	}
}

// checkBrokers reads the topic partitions from the first broker that answers.
func (k *Kafka) checkBrokers(ctx context.Context) error {
	dialer := &kafka.Dialer{Timeout: kafkaDialTimeout}

	var errs []error
	for _, broker := range k.config.Brokers {
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			errs = append(errs, fmt.Errorf("dial %s: %w", broker, err))
			continue
		}
		partitions, err := conn.ReadPartitions(k.config.Topic)
		_ = conn.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("read partitions from %s: %w", broker, err))
			continue
		}
		if len(partitions) == 0 {
			errs = append(errs, fmt.Errorf("topic %s has no partitions on %s", k.config.Topic, broker))
			continue
		}
		return nil
	}
	return errors.Join(errs...)
}
