package statuses

import (
	"context"
	"errors"
	"testing"

	"github.com/bissquit/cti-webhook/internal/opencti"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func status(id, name string) opencti.Status {
	return opencti.Status{ID: id, Template: opencti.StatusTemplate{Name: name}}
}

func testSubTypes() []opencti.SubType {
	return []opencti.SubType{
		{
			Label: "Incident",
			Statuses: []opencti.Status{
				status("s-new", "NEW"),
				status("s-progress", "IN_PROGRESS"),
			},
		},
		{
			Label: "Indicator",
			Statuses: []opencti.Status{
				status("i-new", "NEW"),
				status("i-analyzed", "ANALYZED"),
			},
		},
		{Label: "Report"},
	}
}

func TestBuild_Lookup(t *testing.T) {
	d := Build(testSubTypes())

	tests := []struct {
		name     string
		label    string
		statusID string
		expected string
	}{
		{"incident new", LabelIncident, "s-new", "NEW"},
		{"incident in progress", LabelIncident, "s-progress", "IN_PROGRESS"},
		{"indicator analyzed", LabelIndicator, "i-analyzed", "ANALYZED"},
		{"label is case insensitive", "incident", "s-new", "NEW"},
		{"status scoped per label", LabelIndicator, "s-new", Unknown},
		{"unknown status", LabelIncident, "missing", Unknown},
		{"unknown label", "Malware", "s-new", Unknown},
		{"label without statuses", "Report", "s-new", Unknown},
		{"empty status id", LabelIncident, "", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, d.Lookup(tt.label, tt.statusID))
		})
	}
}

func TestBuild_Empty(t *testing.T) {
	d := Build(nil)

	assert.Equal(t, Unknown, d.Lookup(LabelIncident, "s-new"))
	assert.Empty(t, d.Labels())
	assert.Equal(t, 0, d.Len())
}

func TestDirectory_NilLookup(t *testing.T) {
	var d *Directory
	assert.Equal(t, Unknown, d.Lookup(LabelIncident, "s-new"))
}

func TestBuild_MergesDuplicateLabels(t *testing.T) {
	d := Build([]opencti.SubType{
		{Label: "Incident", Statuses: []opencti.Status{status("a", "NEW")}},
		{Label: "INCIDENT", Statuses: []opencti.Status{status("b", "CLOSED")}},
	})

	assert.Equal(t, "NEW", d.Lookup(LabelIncident, "a"))
	assert.Equal(t, "CLOSED", d.Lookup(LabelIncident, "b"))
	assert.Equal(t, []string{"Incident"}, d.Labels())
}

func TestDirectory_Views(t *testing.T) {
	d := Build(testSubTypes())

	assert.Equal(t, []string{"Incident", "Indicator", "Report"}, d.Labels())
	assert.Equal(t, 4, d.Len())

	incident := d.Statuses(LabelIncident)
	require.Len(t, incident, 2)
	assert.Equal(t, "NEW", incident["s-new"])

	assert.True(t, d.Has("indicator"))
	assert.False(t, d.Has("Malware"))

	// Returned map is a copy.
	incident["s-new"] = "CHANGED"
	assert.Equal(t, "NEW", d.Lookup(LabelIncident, "s-new"))
}

type stubSource struct {
	subTypes []opencti.SubType
	err      error
}

func (s stubSource) SubTypes(context.Context) ([]opencti.SubType, error) {
	return s.subTypes, s.err
}

func TestLoad(t *testing.T) {
	d, err := Load(context.Background(), stubSource{subTypes: testSubTypes()})
	require.NoError(t, err)
	assert.Equal(t, "NEW", d.Lookup(LabelIncident, "s-new"))

	_, err = Load(context.Background(), stubSource{err: errors.New("forbidden")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load statuses")
}
