package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/bissquit/cti-webhook/internal/domain"
	"github.com/bissquit/cti-webhook/internal/eventlog"
	"github.com/bissquit/cti-webhook/internal/pkg/ctxlog"
	"github.com/bissquit/cti-webhook/internal/webhook"
	"github.com/google/uuid"
)

// Outcome is the terminal state of one message.
type Outcome string

// Message outcomes.
const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDelivered Outcome = "delivered"
	OutcomeRejected  Outcome = "rejected"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeFailed    Outcome = "failed"
)

// Sender delivers a payload to the webhook receiver.
type Sender interface {
	Send(ctx context.Context, action string, payload any) error
}

// Assembler builds the alert for a Create classification.
type Assembler interface {
	Assemble(ctx context.Context, ev *domain.StreamEvent, cls Classification) (*domain.Alert, error)
}

// Result describes what happened to one message.
type Result struct {
	Kind       Kind
	EventID    string
	IncidentID string
	Title      string
	Outcome    Outcome
	Reason     string
	Err        error
}

// Handler processes stream messages one at a time. It owns the set of
// incidents already announced as deleted.
type Handler struct {
	classifier *Classifier
	assembler  Assembler
	sender     Sender
	recorder   eventlog.Recorder
	deleted    *DeletedSet
	logger     *slog.Logger
	now        func() time.Time
}

// NewHandler creates a message handler. A nil recorder disables event logging.
func NewHandler(classifier *Classifier, assembler Assembler, sender Sender, recorder eventlog.Recorder, deleted *DeletedSet, logger *slog.Logger) *Handler {
	if recorder == nil {
		recorder = eventlog.Nop{}
	}
	if deleted == nil {
		deleted = NewDeletedSet()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		classifier: classifier,
		assembler:  assembler,
		sender:     sender,
		recorder:   recorder,
		deleted:    deleted,
		logger:     logger,
		now:        time.Now,
	}
}

// Deleted reports whether a delete notice was delivered for the stream id.
func (h *Handler) Deleted(eventID string) bool {
	return h.deleted.Contains(eventID)
}

// DeletedCount returns how many incidents were announced as deleted.
func (h *Handler) DeletedCount() int {
	return h.deleted.Len()
}

// Handle processes one raw stream message. Every failure, including panics,
// is contained here and reported through the result.
func (h *Handler) Handle(ctx context.Context, raw []byte) (result Result) {
	start := h.now()
	ctx, _ = ctxlog.With(ctx, h.logger, "message_id", uuid.NewString())

	defer func() {
		if r := recover(); r != nil {
			result.Outcome = OutcomeFailed
			result.Err = &ProcessError{
				Kind:       KindUnexpected,
				EventID:    result.EventID,
				IncidentID: result.IncidentID,
				Stack:      debug.Stack(),
				Err:        fmt.Errorf("panic: %v", r),
			}
		}
		h.report(ctx, raw, result)
		recordMessage(result, time.Since(start))
	}()

	return h.process(ctx, raw, &result, start)
}

func (h *Handler) process(ctx context.Context, raw []byte, result *Result, at time.Time) Result {
	var ev domain.StreamEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		result.Outcome = OutcomeFailed
		result.Err = &ProcessError{Kind: KindDecode, Err: err}
		return *result
	}

	if err := h.recorder.RecordEvent(at, raw); err != nil {
		ctxlog.FromContext(ctx).Warn("failed to record event", "error", err)
	}

	result.EventID = ev.Data.ID
	result.Title = ev.Data.Name

	cls, err := h.classifier.Classify(&ev, h.deleted)
	result.Kind = cls.Kind
	result.IncidentID = cls.IncidentID
	result.Reason = cls.Reason
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = &ProcessError{Kind: KindUnexpected, EventID: ev.Data.ID, Err: err}
		return *result
	}

	switch cls.Kind {
	case KindDelete:
		h.deleteFlow(ctx, &ev, cls, result)
	case KindCreate:
		h.createFlow(ctx, &ev, cls, result, at)
	default:
		result.Outcome = OutcomeSkipped
		if cls.Reason != ReasonNotIncident {
			ctxlog.FromContext(ctx).Info("incident skipped",
				"title", ev.Data.Name,
				"status", cls.StatusName,
				"is_inferred", cls.IsInferred,
				"reason", cls.Reason,
			)
		}
	}

	return *result
}

func (h *Handler) deleteFlow(ctx context.Context, ev *domain.StreamEvent, cls Classification, result *Result) {
	notice := domain.NewDeleteNotice(ev.Message, cls.IncidentID)

	if err := h.sender.Send(ctx, domain.ActionDelete, notice); err != nil {
		result.Outcome, result.Err = deliveryFailure(err, cls, notice)
		return
	}

	// Only a confirmed delivery marks the incident as deleted, so a failed
	// notice is sent again when the platform repeats the event.
	h.deleted.Add(cls.EventID)
	deletedIncidents.Set(float64(h.deleted.Len()))
	result.Outcome = OutcomeDelivered
}

func (h *Handler) createFlow(ctx context.Context, ev *domain.StreamEvent, cls Classification, result *Result, at time.Time) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("incoming incident", "title", ev.Data.Name, "incident_id", cls.IncidentID)

	enrichStart := time.Now()
	alert, err := h.assembler.Assemble(ctx, ev, cls)
	enrichmentDuration.Observe(time.Since(enrichStart).Seconds())
	if err != nil {
		result.Outcome = OutcomeFailed
		result.Err = &ProcessError{
			Kind:       KindEnrichment,
			EventID:    cls.EventID,
			IncidentID: cls.IncidentID,
			Stack:      debug.Stack(),
			Err:        err,
		}
		return
	}

	if err := h.recorder.RecordAlert(at, alert); err != nil {
		logger.Warn("failed to record alert", "error", err)
	}

	if err := h.sender.Send(ctx, domain.ActionCreate, alert); err != nil {
		result.Outcome, result.Err = deliveryFailure(err, cls, alert)
		return
	}

	result.Outcome = OutcomeDelivered
}

// deliveryFailure tags a sender error. Nothing is retried.
func deliveryFailure(err error, cls Classification, payload any) (Outcome, error) {
	pe := &ProcessError{
		Kind:       KindUnexpected,
		EventID:    cls.EventID,
		IncidentID: cls.IncidentID,
		Payload:    payload,
		Err:        err,
	}
	outcome := OutcomeFailed

	var rejected *webhook.RejectedError
	var timeout *webhook.TimeoutError
	switch {
	case errors.As(err, &rejected):
		pe.Kind = KindDeliveryRejected
		outcome = OutcomeRejected
	case errors.As(err, &timeout):
		pe.Kind = KindDeliveryTimeout
		outcome = OutcomeTimeout
	}

	return outcome, pe
}

// report is the single logging point for a processed message.
func (h *Handler) report(ctx context.Context, raw []byte, result Result) {
	logger := ctxlog.FromContext(ctx)
	if result.EventID != "" {
		logger = logger.With("event_id", result.EventID)
	}

	if result.Err == nil {
		switch {
		case result.Outcome == OutcomeDelivered && result.Kind == KindDelete:
			logger.Info("event deleted", "incident_id", result.IncidentID)
		case result.Outcome == OutcomeDelivered:
			logger.Info("sending new incident", "incident", result.Title, "incident_id", result.IncidentID)
		default:
			logger.Debug("event ignored", "reason", result.Reason)
		}
		return
	}

	var pe *ProcessError
	if !errors.As(result.Err, &pe) {
		logger.Error("unexpected error was occurred", "error", result.Err)
		return
	}

	switch pe.Kind {
	case KindDecode:
		logger.Error("JSON decoder error", "error", pe.Err, "event", string(raw))

	case KindDeliveryTimeout:
		var timeout *webhook.TimeoutError
		url := ""
		if errors.As(pe.Err, &timeout) {
			url = timeout.URL
		}
		logger.Error("sending webhook has timed out", "url", url, "incident_id", pe.IncidentID)

	case KindDeliveryRejected:
		attrs := []any{"error", pe.Err, "incident_id", pe.IncidentID}
		var rejected *webhook.RejectedError
		if errors.As(pe.Err, &rejected) {
			attrs = append(attrs, "status_code", rejected.Code, "text", rejected.Body)
		}
		body, _ := json.Marshal(pe.Payload)
		attrs = append(attrs, "body", string(body))
		logger.Error("alert wasn't sent successfully", attrs...)

	case KindEnrichment:
		logger.Error("incident enrichment failed",
			"error", pe.Err,
			"incident_id", pe.IncidentID,
			"traceback", string(pe.Stack),
		)

	default:
		attrs := []any{"error", pe.Err, "incident_id", pe.IncidentID}
		if len(pe.Stack) > 0 {
			attrs = append(attrs, "traceback", string(pe.Stack))
		}
		logger.Error("unexpected error was occurred", attrs...)
	}
}
