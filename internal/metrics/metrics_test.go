package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorderAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	rec.ObserveDispatch("claude", OutcomeSuccess, 120*time.Millisecond)
	rec.ObserveDispatch("claude", OutcomeRateLimited, 0)
	rec.ObserveMailboxCycle("event", false)

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	text := string(body)

	assert.Contains(t, text, `model_bridge_dispatches_total{outcome="success",provider="claude"} 1`)
	assert.Contains(t, text, `model_bridge_rate_limited_total{provider="claude"} 1`)
	assert.Contains(t, text, `model_bridge_mailbox_cycles_total{result="failure",trigger="event"} 1`)
	assert.Contains(t, text, `model_bridge_dispatch_duration_seconds_count{provider="claude"} 1`)
}

func TestNewPrometheusRecorder_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheusRecorder(reg)
	require.NoError(t, err)

	_, err = NewPrometheusRecorder(reg)
	assert.Error(t, err)

	_, err = NewPrometheusRecorder(nil)
	assert.Error(t, err)
}
