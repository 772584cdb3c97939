// Package bridge turns platform stream events into webhook notifications.
package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/bissquit/cti-webhook/internal/domain"
	"github.com/bissquit/cti-webhook/internal/statuses"
)

// DefaultExtensionKey is the namespace of the platform extension on STIX objects.
const DefaultExtensionKey = "extension-definition--ea279b3e-5c71-4632-ac08-831c66a786ba"

// StatusNew is the only incident status that produces an alert.
const StatusNew = "NEW"

// Kind is the decision taken for one stream event.
type Kind string

// Classification kinds.
const (
	KindIgnore Kind = "ignore"
	KindDelete Kind = "delete"
	KindCreate Kind = "create"
)

// Reasons reported for ignored events.
const (
	ReasonNotIncident    = "not an incident"
	ReasonAlreadyDeleted = "already deleted"
	ReasonStatusNotNew   = "status is not NEW"
	ReasonNotInferred    = "incident is not inferred"
)

// StatusResolver resolves workflow status ids to names.
type StatusResolver interface {
	Lookup(label, statusID string) string
}

// Classification is the outcome of Classify.
type Classification struct {
	Kind Kind
	// EventID is the STIX id of the stream object (incident--...).
	EventID string
	// IncidentID is the platform internal id taken from the extension.
	IncidentID string
	StatusID   string
	StatusName string
	IsInferred bool
	Reason     string
}

// Classifier decides what to do with a stream event.
type Classifier struct {
	statuses     StatusResolver
	extensionKey string
}

// NewClassifier creates a classifier. An empty extensionKey selects DefaultExtensionKey.
func NewClassifier(statuses StatusResolver, extensionKey string) *Classifier {
	if extensionKey == "" {
		extensionKey = DefaultExtensionKey
	}
	return &Classifier{
		statuses:     statuses,
		extensionKey: extensionKey,
	}
}

// Classify inspects ev. deleted holds incidents already announced as deleted.
// An error means the event is unusable; it concerns this event only.
func (c *Classifier) Classify(ev *domain.StreamEvent, deleted *DeletedSet) (Classification, error) {
	cls := Classification{
		Kind:    KindIgnore,
		EventID: ev.Data.ID,
	}

	if !ev.Data.IsIncident() {
		cls.Reason = ReasonNotIncident
		return cls, nil
	}

	ext, err := c.extension(ev.Data.Extensions)
	if err != nil {
		return cls, err
	}

	cls.IncidentID = ext.ID
	cls.StatusID = ext.WorkflowID
	cls.StatusName = c.statuses.Lookup(statuses.LabelIncident, ext.WorkflowID)
	cls.IsInferred = ext.IsInferred

	if ev.Type == domain.EventTypeDelete {
		if deleted.Contains(cls.EventID) {
			cls.Reason = ReasonAlreadyDeleted
			return cls, nil
		}
		cls.Kind = KindDelete
		return cls, nil
	}

	// Manual incidents carry no inferred relations (indicator, observables),
	// so only inferred incidents in NEW are forwarded.
	switch {
	case cls.StatusName != StatusNew:
		cls.Reason = ReasonStatusNotNew
	case !cls.IsInferred:
		cls.Reason = ReasonNotInferred
	default:
		cls.Kind = KindCreate
	}

	return cls, nil
}

// extension selects the platform extension: the configured namespace key,
// or the sole entry when the map holds exactly one.
func (c *Classifier) extension(extensions map[string]json.RawMessage) (*domain.IncidentExtension, error) {
	raw, ok := extensions[c.extensionKey]
	if !ok {
		if len(extensions) != 1 {
			return nil, fmt.Errorf("%w: %d extension entries, none under %s", ErrExtensionMissing, len(extensions), c.extensionKey)
		}
		for _, v := range extensions {
			raw = v
		}
	}

	var ext domain.IncidentExtension
	if err := json.Unmarshal(raw, &ext); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtensionMalformed, err)
	}
	if ext.ID == "" {
		return nil, fmt.Errorf("%w: empty id", ErrExtensionMalformed)
	}

	return &ext, nil
}
