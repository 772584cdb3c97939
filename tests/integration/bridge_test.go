//go:build integration

package integration

import (
	"net/http"
	"testing"
	"time"

	"github.com/bissquit/cti-webhook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridge_NewInferredIncident(t *testing.T) {
	env := startBridge(t)

	env.publish(t, incidentEvent("create", statusNewID, true))

	got := env.receiver.WaitFor(1, 10*time.Second)
	assert.Equal(t, "bridge", got[0].Username)
	assert.Equal(t, "secret", got[0].Password)

	var alert domain.Alert
	got[0].Decode(t, &alert)
	assert.Equal(t, "create", alert.Action)
	assert.Equal(t, "X", alert.ID)
	assert.Equal(t, "NEW", alert.Status)
	assert.Equal(t, "I", alert.IndicatorID)
	assert.Equal(t, "ANALYZED", alert.IndicatorStatus)
	assert.Equal(t, 5, alert.IndicatorHits)
	require.Len(t, alert.Observables, 1)
	assert.Equal(t, "evil.example.com", alert.Observables[0].Value)
	assert.Equal(t, []domain.IndicatingEntity{{EntityType: "Malware", Value: "Emotet"}}, alert.Indicates)
	require.Len(t, alert.Reports, 1)
	assert.Equal(t, "Campaign", alert.Reports[0].Name)
}

func TestBridge_DeleteIsSentOnce(t *testing.T) {
	env := startBridge(t)

	env.publish(t, incidentEvent("delete", statusNewID, true))
	env.publish(t, incidentEvent("delete", statusNewID, true))
	// A trailing event proves both deletes were processed before asserting.
	env.publish(t, incidentEvent("create", statusNewID, true))

	got := env.receiver.WaitFor(2, 10*time.Second)
	require.Len(t, got, 2)

	var notice domain.DeleteNotice
	got[0].Decode(t, &notice)
	assert.Equal(t, domain.NewDeleteNotice("deletes an incident", "X"), notice)

	var alert domain.Alert
	got[1].Decode(t, &alert)
	assert.Equal(t, "create", alert.Action)

	assert.True(t, env.app.Handler().Deleted("incident--1"))
}

func TestBridge_IgnoredIncidentsMakeNoLookups(t *testing.T) {
	env := startBridge(t)
	bootstrapQueries := len(env.platform.Queries())

	env.publish(t, incidentEvent("update", statusInProgressID, true))
	env.publish(t, incidentEvent("create", statusNewID, false))
	env.publish(t, `{"type":"create","data":{"id":"indicator--9"}}`)
	env.publish(t, `not json`)
	env.publish(t, incidentEvent("delete", statusInProgressID, false))

	got := env.receiver.WaitFor(1, 10*time.Second)
	require.Len(t, got, 1)

	var notice domain.DeleteNotice
	got[0].Decode(t, &notice)
	assert.Equal(t, "delete", notice.Action)
	assert.Len(t, env.platform.Queries(), bootstrapQueries)
}

func TestBridge_EnrichmentFailureDropsMessage(t *testing.T) {
	env := startBridge(t)
	env.platform.mu.Lock()
	env.platform.noLinks = true
	env.platform.mu.Unlock()

	env.publish(t, incidentEvent("create", statusNewID, true))
	env.publish(t, incidentEvent("delete", statusNewID, true))

	got := env.receiver.WaitFor(1, 10*time.Second)
	require.Len(t, got, 1)

	var notice domain.DeleteNotice
	got[0].Decode(t, &notice)
	assert.Equal(t, "delete", notice.Action)
}

func TestBridge_RejectedDeleteIsRetriedOnNextEvent(t *testing.T) {
	env := startBridge(t)
	env.receiver.SetStatus(http.StatusInternalServerError)

	env.publish(t, incidentEvent("delete", statusNewID, true))
	env.receiver.WaitFor(1, 10*time.Second)

	require.Never(t, func() bool { return env.app.Handler().Deleted("incident--1") }, 200*time.Millisecond, 20*time.Millisecond)

	env.receiver.SetStatus(http.StatusOK)
	env.publish(t, incidentEvent("delete", statusNewID, true))
	env.receiver.WaitFor(2, 10*time.Second)

	require.Eventually(t, func() bool { return env.app.Handler().Deleted("incident--1") }, 5*time.Second, 20*time.Millisecond)
}
