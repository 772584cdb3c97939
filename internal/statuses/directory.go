// Package statuses resolves workflow status identifiers to their names.
package statuses

import (
	"context"
	"fmt"
	"sort"

	"github.com/bissquit/cti-webhook/internal/opencti"
	"golang.org/x/text/cases"
)

// Unknown is returned for status identifiers missing from the directory.
const Unknown = "UNKNOWN"

// Entity labels used by the bridge.
const (
	LabelIncident  = "Incident"
	LabelIndicator = "Indicator"
)

// Directory maps entity label -> status id -> status name.
// It is immutable once built.
type Directory struct {
	labels  map[string]string
	byLabel map[string]map[string]string
}

// Build groups subtypes and their statuses into a directory.
func Build(subTypes []opencti.SubType) *Directory {
	d := &Directory{
		labels:  make(map[string]string, len(subTypes)),
		byLabel: make(map[string]map[string]string, len(subTypes)),
	}

	for _, st := range subTypes {
		key := foldLabel(st.Label)
		if _, ok := d.byLabel[key]; !ok {
			d.byLabel[key] = make(map[string]string, len(st.Statuses))
			d.labels[key] = st.Label
		}
		for _, s := range st.Statuses {
			d.byLabel[key][s.ID] = s.Template.Name
		}
	}

	return d
}

// SubTypeSource lists entity subtypes with their workflow statuses.
type SubTypeSource interface {
	SubTypes(ctx context.Context) ([]opencti.SubType, error)
}

// Load fetches subtypes once and builds the directory.
func Load(ctx context.Context, src SubTypeSource) (*Directory, error) {
	subTypes, err := src.SubTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load statuses: %w", err)
	}
	return Build(subTypes), nil
}

// Lookup returns the status name, or Unknown.
func (d *Directory) Lookup(label, statusID string) string {
	if d == nil {
		return Unknown
	}
	if name, ok := d.byLabel[foldLabel(label)][statusID]; ok {
		return name
	}
	return Unknown
}

// Labels returns the known entity labels, sorted.
func (d *Directory) Labels() []string {
	labels := make([]string, 0, len(d.labels))
	for _, l := range d.labels {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

// Has reports whether the directory knows the label.
func (d *Directory) Has(label string) bool {
	_, ok := d.byLabel[foldLabel(label)]
	return ok
}

// Statuses returns a copy of the status id -> name map for a label.
func (d *Directory) Statuses(label string) map[string]string {
	src := d.byLabel[foldLabel(label)]
	out := make(map[string]string, len(src))
	for id, name := range src {
		out[id] = name
	}
	return out
}

// Len returns the number of statuses across all labels.
func (d *Directory) Len() int {
	n := 0
	for _, s := range d.byLabel {
		n += len(s)
	}
	return n
}

func foldLabel(label string) string {
	// cases.Caser is stateful, so a fresh one is used per call.
	return cases.Fold().String(label)
}
