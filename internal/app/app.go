// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/bissquit/cti-webhook/internal/bridge"
	"github.com/bissquit/cti-webhook/internal/config"
	"github.com/bissquit/cti-webhook/internal/eventlog"
	"github.com/bissquit/cti-webhook/internal/opencti"
	"github.com/bissquit/cti-webhook/internal/pkg/ctxlog"
	"github.com/bissquit/cti-webhook/internal/pkg/httputil"
	"github.com/bissquit/cti-webhook/internal/statuses"
	"github.com/bissquit/cti-webhook/internal/stream"
	"github.com/bissquit/cti-webhook/internal/version"
	"github.com/bissquit/cti-webhook/internal/webhook"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const bootstrapTimeout = 60 * time.Second

var errUnknownLabel = errors.New("unknown entity label")

// App represents the application instance.
type App struct {
	config    *config.Config
	logger    *slog.Logger
	directory *statuses.Directory
	handler   *bridge.Handler
	source    stream.Source
	server    *http.Server
}

// New wires the bridge. It loads the workflow statuses from the platform, so
// the platform must be reachable.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := InitLogger(cfg.Log)
	slog.SetDefault(logger)

	platform, err := NewPlatformClient(cfg.Platform)
	if err != nil {
		return nil, err
	}

	bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
	defer cancel()

	directory, err := statuses.Load(bootstrapCtx, platform)
	if err != nil {
		return nil, err
	}
	logger.Info("workflow statuses loaded",
		"labels", len(directory.Labels()),
		"statuses", directory.Len(),
	)

	sender, err := webhook.NewSender(webhook.Config{
		URL:       cfg.Webhook.URL,
		Username:  cfg.Webhook.Username,
		Password:  cfg.Webhook.Password,
		SSLVerify: cfg.Webhook.SSLVerify,
		Timeout:   cfg.Webhook.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create webhook sender: %w", err)
	}

	var recorder eventlog.Recorder = eventlog.Nop{}
	if cfg.EventLog.Enabled {
		w, err := eventlog.NewWriter(cfg.EventLog.Dir)
		if err != nil {
			return nil, fmt.Errorf("create event log: %w", err)
		}
		recorder = w
		logger.Info("event log enabled", "dir", cfg.EventLog.Dir)
	}

	source, err := newSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("create stream source: %w", err)
	}

	handler := bridge.NewHandler(
		bridge.NewClassifier(directory, cfg.Stream.ExtensionKey),
		bridge.NewEnricher(platform, directory),
		sender,
		recorder,
		bridge.NewDeletedSet(),
		logger,
	)

	app := &App{
		config:    cfg,
		logger:    logger,
		directory: directory,
		handler:   handler,
		source:    source,
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           app.setupRouter(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	logger.Info("bridge configured",
		"source", source.Name(),
		"webhook", sender.URL(),
		"ops_server", cfg.Server.Enabled,
	)

	return app, nil
}

// NewPlatformClient creates the platform API client from configuration.
func NewPlatformClient(cfg config.PlatformConfig) (*opencti.Client, error) {
	client, err := opencti.NewClient(opencti.Config{
		URL:       cfg.URL,
		Token:     cfg.Token,
		Timeout:   cfg.Timeout,
		SSLVerify: cfg.SSLVerify,
		RateLimit: cfg.RateLimit,
		Burst:     cfg.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("create platform client: %w", err)
	}
	if !cfg.SSLVerify {
		slog.Warn("platform TLS verification is disabled")
	}
	return client, nil
}

func newSource(cfg *config.Config) (stream.Source, error) {
	switch cfg.Stream.Source {
	case stream.KindSSE:
		return stream.NewSSE(stream.SSEConfig{
			URL:            cfg.Platform.URL,
			Token:          cfg.Platform.Token,
			StreamID:       cfg.Stream.ID,
			StartFrom:      cfg.Stream.StartFrom,
			ReconnectDelay: cfg.Stream.ReconnectDelay,
			MaxEventSize:   cfg.Stream.MaxEventSize,
			SSLVerify:      cfg.Platform.SSLVerify,
		})
	case stream.KindNATS:
		return stream.NewNATS(stream.NATSConfig{
			URL:           cfg.NATS.URL,
			Subject:       cfg.NATS.Subject,
			Queue:         cfg.NATS.Queue,
			ReconnectWait: cfg.Stream.ReconnectDelay,
		})
	case stream.KindKafka:
		return stream.NewKafka(stream.KafkaConfig{
			Brokers:     stream.ParseBrokers(cfg.Kafka.Brokers),
			Topic:       cfg.Kafka.Topic,
			GroupID:     cfg.Kafka.GroupID,
			StartOffset: cfg.Kafka.StartOffset,
		})
	default:
		return nil, fmt.Errorf("%w: %q", stream.ErrUnknownKind, cfg.Stream.Source)
	}
}

// Run starts the ops server and consumes the stream until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a.config.Server.Enabled {
		go func() {
			a.logger.Info("starting ops server",
				"host", a.config.Server.Host,
				"port", a.config.Server.Port,
			)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("ops server error", "error", err)
			}
		}()
	}

	a.logger.Info("starting stream consumer", "source", a.source.Name())

	handle := func(ctx context.Context, data []byte) {
		a.handler.Handle(ctx, data)
	}
	if err := a.source.Run(ctx, handle); err != nil {
		return fmt.Errorf("stream %s: %w", a.source.Name(), err)
	}

	return nil
}

// Shutdown stops the ops server.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down",
		"deleted_incidents", a.handler.DeletedCount(),
	)

	if !a.config.Server.Enabled {
		return nil
	}
	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown ops server: %w", err)
	}
	return nil
}

// Router returns the ops HTTP handler.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Handler returns the message handler.
func (a *App) Handler() *bridge.Handler {
	return a.handler
}

func (a *App) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.TokenMiddleware(a.config.Server.APIToken))
		r.Get("/statuses", a.statusesHandler)
		r.Get("/statuses/{label}", a.statusesHandler)
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	if !a.source.Connected() {
		ctxlog.FromContext(r.Context()).Warn("readiness check failed", "source", a.source.Name())
		httputil.Text(w, http.StatusServiceUnavailable, "Stream disconnected")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Info())
}

func (a *App) statusesHandler(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	if label == "" {
		all := make(map[string]map[string]string)
		for _, l := range a.directory.Labels() {
			all[l] = a.directory.Statuses(l)
		}
		httputil.Success(w, http.StatusOK, all)
		return
	}

	if !a.directory.Has(label) {
		httputil.HandleError(r.Context(), w, fmt.Errorf("%w: %s", errUnknownLabel, label),
			httputil.ErrorMapping{Error: errUnknownLabel, Status: http.StatusNotFound},
		)
		return
	}

	httputil.Success(w, http.StatusOK, a.directory.Statuses(label))
}

// InitLogger builds the process logger from configuration.
func InitLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
