// Package config loads the service configuration from defaults, an optional
// YAML file and CTI_WEBHOOK_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CTI_WEBHOOK_"

// Keys that live at the top level and must not be split into section.key.
var topLevelKeys = map[string]bool{
	"startup_failure_delay": true,
}

// Config is the complete service configuration.
type Config struct {
	Log                 LogConfig      `koanf:"log"`
	Server              ServerConfig   `koanf:"server"`
	Platform            PlatformConfig `koanf:"platform"`
	Stream              StreamConfig   `koanf:"stream"`
	NATS                NATSConfig     `koanf:"nats"`
	Kafka               KafkaConfig    `koanf:"kafka"`
	Webhook             WebhookConfig  `koanf:"webhook"`
	EventLog            EventLogConfig `koanf:"eventlog"`
	StartupFailureDelay time.Duration  `koanf:"startup_failure_delay" validate:"gte=0"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Enabled           bool          `koanf:"enabled"`
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required,numeric"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gt=0"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout       time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	// APIToken protects /api/v1 when set.
	APIToken string `koanf:"api_token"`
}

// PlatformConfig configures the OpenCTI API client.
type PlatformConfig struct {
	URL       string        `koanf:"url" validate:"required,url"`
	Token     string        `koanf:"token" validate:"required"`
	SSLVerify bool          `koanf:"ssl_verify"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit float64       `koanf:"rate_limit" validate:"gte=0"`
	Burst     int           `koanf:"burst" validate:"gte=1"`
}

// StreamConfig selects and configures the inbound event source.
type StreamConfig struct {
	Source         string        `koanf:"source" validate:"oneof=sse nats kafka"`
	ID             string        `koanf:"id"`
	StartFrom      string        `koanf:"start_from"`
	ReconnectDelay time.Duration `koanf:"reconnect_delay" validate:"gt=0"`
	MaxEventSize   int           `koanf:"max_event_size" validate:"gte=1024"`
	ExtensionKey   string        `koanf:"extension_key"`
}

// NATSConfig configures the NATS source.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
	Queue   string `koanf:"queue"`
}

// KafkaConfig configures the Kafka source.
type KafkaConfig struct {
	Brokers     string `koanf:"brokers"`
	Topic       string `koanf:"topic"`
	GroupID     string `koanf:"group_id"`
	StartOffset string `koanf:"start_offset" validate:"omitempty,oneof=first last"`
}

// WebhookConfig configures the outbound receiver.
type WebhookConfig struct {
	URL       string        `koanf:"url" validate:"required,url"`
	Username  string        `koanf:"username"`
	Password  string        `koanf:"password"`
	SSLVerify bool          `koanf:"ssl_verify"`
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
}

// EventLogConfig configures the diagnostic event log.
type EventLogConfig struct {
	Enabled bool   `koanf:"enabled"`
	Dir     string `koanf:"dir"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			Enabled:           true,
			Host:              "0.0.0.0",
			Port:              "9090",
			ReadTimeout:       5 * time.Second,
			ReadHeaderTimeout: 2 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Platform: PlatformConfig{
			SSLVerify: true,
			Timeout:   30 * time.Second,
			Burst:     1,
		},
		Stream: StreamConfig{
			Source:         "sse",
			ReconnectDelay: 5 * time.Second,
			MaxEventSize:   16 << 20,
		},
		NATS: NATSConfig{
			Subject: "opencti.stream",
		},
		Kafka: KafkaConfig{
			GroupID:     "cti-webhook",
			StartOffset: "last",
		},
		Webhook: WebhookConfig{
			SSLVerify: true,
			Timeout:   20 * time.Second,
		},
		EventLog: EventLogConfig{
			Dir: "logs",
		},
		StartupFailureDelay: 10 * time.Second,
	}
}

// Load reads configuration. A missing file at path is not an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// envKey maps CTI_WEBHOOK_WEBHOOK_SSL_VERIFY to webhook.ssl_verify.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if topLevelKeys[key] {
		return key
	}
	return strings.Replace(key, "_", ".", 1)
}

// Validate checks field constraints and the settings required by the
// selected stream source.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	switch c.Stream.Source {
	case "nats":
		if c.NATS.URL == "" || c.NATS.Subject == "" {
			return errors.New("validate config: nats.url and nats.subject are required for the nats source")
		}
	case "kafka":
		if c.Kafka.Brokers == "" || c.Kafka.Topic == "" || c.Kafka.GroupID == "" {
			return errors.New("validate config: kafka.brokers, kafka.topic and kafka.group_id are required for the kafka source")
		}
	}

	if c.EventLog.Enabled && c.EventLog.Dir == "" {
		return errors.New("validate config: eventlog.dir is required when the event log is enabled")
	}

	return nil
}
