//go:build integration

package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bissquit/cti-webhook/internal/app"
	"github.com/bissquit/cti-webhook/internal/bridge"
	"github.com/bissquit/cti-webhook/internal/config"
	"github.com/bissquit/cti-webhook/internal/testutil"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

const (
	statusNewID        = "st-new"
	statusInProgressID = "st-progress"
)

// fakePlatform answers the GraphQL queries issued during bootstrap and
// enrichment with a fixed graph: incident X -> indicator I -> observable o1.
type fakePlatform struct {
	*httptest.Server

	mu      sync.Mutex
	queries []string
	noLinks bool
}

func newFakePlatform(t *testing.T) *fakePlatform {
	t.Helper()
	p := &fakePlatform{}
	p.Server = httptest.NewServer(http.HandlerFunc(p.serve))
	t.Cleanup(p.Close)
	return p
}

func (p *fakePlatform) Queries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.queries...)
}

func (p *fakePlatform) serve(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var op, data string
	switch {
	case strings.Contains(req.Query, "subTypes"):
		op = "subTypes"
		data = fmt.Sprintf(`{"subTypes":{"edges":[
			{"node":{"id":"Incident","label":"Incident","workflowEnabled":true,"statuses":{"edges":[
				{"node":{"id":%q,"order":1,"template":{"id":"t1","name":"NEW","color":"#ff9800"}}},
				{"node":{"id":%q,"order":2,"template":{"id":"t2","name":"IN_PROGRESS","color":"#5c7bf5"}}}
			]}}},
			{"node":{"id":"Indicator","label":"Indicator","workflowEnabled":true,"statuses":{"edges":[
				{"node":{"id":"ist-1","order":1,"template":{"id":"t3","name":"ANALYZED","color":"#4caf50"}}}
			]}}}
		]}}`, statusNewID, statusInProgressID)

	case strings.Contains(req.Query, "stixCoreRelationships"):
		op = "stixCoreRelationships"
		relType := fmt.Sprint(req.Variables["relationship_type"])
		switch {
		case p.noLinks:
			data = `{"stixCoreRelationships":{"edges":[]}}`
		case strings.Contains(relType, "related-to"):
			data = `{"stixCoreRelationships":{"edges":[{"node":{"id":"rel-1","relationship_type":"related-to",
				"from":{"id":"X","entity_type":"Incident","name":"Phishing wave"},
				"to":{"id":"I","entity_type":"Indicator","name":"evil.example.com"}}}]}}`
		default:
			data = `{"stixCoreRelationships":{"edges":[{"node":{"id":"rel-2","relationship_type":"indicates",
				"from":{"id":"I","entity_type":"Indicator","name":"evil.example.com"},
				"to":{"id":"m1","entity_type":"Malware","name":"Emotet"}}}]}}`
		}

	case strings.Contains(req.Query, "indicator(id"):
		op = "indicator"
		data = `{"indicator":{"id":"I","name":"evil.example.com","valid_from":"2024-01-01T00:00:00Z",
			"valid_until":"2024-07-01T00:00:00Z","status":{"id":"ist-1"},"creator":{"name":"connector-misp"},
			"x_opencti_detection":true,"x_opencti_score":75,"x_opencti_main_observable_type":"Domain-Name",
			"observables":{"edges":[{"node":{"id":"o1","entity_type":"Domain-Name","observable_value":"evil.example.com"}}]}}}`

	case strings.Contains(req.Query, "observedDatas"):
		op = "observedDatas"
		data = `{"observedDatas":{"edges":[{"node":{"id":"od-1","first_observed":"2024-02-01T00:00:00Z",
			"last_observed":"2024-02-03T00:00:00Z","number_observed":5}}]}}`

	case strings.Contains(req.Query, "reports("):
		op = "reports"
		data = `{"reports":{"edges":[{"node":{"id":"r1","name":"Campaign","description":"d","published":"2024-03-01T00:00:00Z"}}]}}`

	default:
		http.Error(w, "unexpected query", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	p.queries = append(p.queries, op)
	p.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = fmt.Fprintf(w, `{"data":%s}`, data)
}

// bridgeEnv is a running bridge fed from a fresh NATS subject.
type bridgeEnv struct {
	app      *app.App
	platform *fakePlatform
	receiver *testutil.Receiver
	nc       *nats.Conn
	subject  string
}

func startBridge(t *testing.T) *bridgeEnv {
	t.Helper()

	platform := newFakePlatform(t)
	receiver := testutil.NewReceiver(t, testValidator)
	subject := "opencti.stream." + uuid.NewString()

	cfg := config.Default()
	cfg.Log.Level = "error"
	cfg.Log.Format = "text"
	cfg.Server.Enabled = false
	cfg.Platform.URL = platform.URL
	cfg.Platform.Token = "token"
	cfg.Stream.Source = "nats"
	cfg.NATS.URL = natsContainer.URL
	cfg.NATS.Subject = subject
	cfg.Webhook.URL = receiver.WebhookURL()
	cfg.Webhook.Username = "bridge"
	cfg.Webhook.Password = "secret"
	require.NoError(t, cfg.Validate())

	a, err := app.New(context.Background(), &cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("bridge run: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("bridge did not stop")
		}
	})

	nc, err := nats.Connect(natsContainer.URL)
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	env := &bridgeEnv{app: a, platform: platform, receiver: receiver, nc: nc, subject: subject}
	env.waitReady(t)
	return env
}

func (e *bridgeEnv) waitReady(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		e.app.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		return rec.Code == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)
}

func (e *bridgeEnv) publish(t *testing.T, event string) {
	t.Helper()
	require.NoError(t, e.nc.Publish(e.subject, []byte(event)))
	require.NoError(t, e.nc.Flush())
}

func incidentEvent(eventType, workflowID string, inferred bool) string {
	return fmt.Sprintf(`{"type":%q,"message":"%ss an incident","data":{"id":"incident--1","name":"Phishing wave",
		"created":"2024-02-05T10:00:00Z","modified":"2024-02-05T10:00:00Z","confidence":60,
		"extensions":{%q:{"id":"X","workflow_id":%q,"is_inferred":%t}}}}`,
		eventType, eventType, bridge.DefaultExtensionKey, workflowID, inferred)
}
