package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/bissquit/cti-webhook/internal/opencti"
	"github.com/bissquit/cti-webhook/internal/statuses"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDirectory() *statuses.Directory {
	return statuses.Build([]opencti.SubType{
		{Label: "Incident", Statuses: []opencti.Status{
			{ID: "s2", Template: opencti.StatusTemplate{Name: "IN_PROGRESS"}},
			{ID: "s1", Template: opencti.StatusTemplate{Name: "NEW"}},
		}},
	})
}

func TestPrintStatuses_Table(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printStatuses(&buf, testDirectory(), "table"))

	out := buf.String()
	assert.Contains(t, out, "LABEL")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("s1")), bytes.Index(buf.Bytes(), []byte("s2")))
	assert.Contains(t, out, "NEW")
}

func TestPrintStatuses_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printStatuses(&buf, testDirectory(), "json"))

	var got map[string]map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "NEW", got["Incident"]["s1"])
}

func TestPrintStatuses_UnknownFormat(t *testing.T) {
	assert.Error(t, printStatuses(&bytes.Buffer{}, testDirectory(), "yaml"))
}
