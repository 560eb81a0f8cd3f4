package observability

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/ringtrace/internal/config"
)

func TestMetrics_RecordRun(t *testing.T) {
	m := NewMetrics()

	m.RecordRun(StatusSuccess, 120, 40*time.Millisecond)
	m.RecordRun(StatusRejected, 0, 0)
	m.RecordRun(StatusSuccess, 80, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(StatusRejected)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.runDuration))
}

func TestMetrics_RecordFindings(t *testing.T) {
	m := NewMetrics()

	m.RecordFindings(map[string]int{"cycle": 2, "shell": 1}, 7)
	m.RecordFindings(map[string]int{"cycle": 1}, 3)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.rings.WithLabelValues("cycle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rings.WithLabelValues("shell")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.flagged))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.RecordExport(StatusFailed, time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `ringtrace_graph_exports_total{status="failed"} 1`))
}

func TestInitTracer_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), config.ObservabilityConfig{ServiceName: "ringtrace"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
