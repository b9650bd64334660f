package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPrometheusCollector_StateTransitions tests transition counters and the running gauge
func TestPrometheusCollector_StateTransitions(t *testing.T) {
	pc := NewPrometheusCollector("test")

	pc.StateTransition("sleep", "not_started", "running")
	pc.StateTransition("sleep", "running", "terminated")
	pc.StateTransition("mysqld", "not_started", "running")

	count, err := testutil.GatherAndCount(pc.registry, "test_process_state_transitions_total")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	expected := `
		# HELP test_processes_running Number of supervised processes currently running
		# TYPE test_processes_running gauge
		test_processes_running{process="mysqld"} 1
		test_processes_running{process="sleep"} 0
	`
	err = testutil.GatherAndCompare(pc.registry, strings.NewReader(expected), "test_processes_running")
	assert.NoError(t, err)
}

// TestPrometheusCollector_Exits tests exit counters and runtime histogram
func TestPrometheusCollector_Exits(t *testing.T) {
	pc := NewPrometheusCollector("test")

	pc.ProcessExited("true", "natural", 0, 10*time.Millisecond)
	pc.ProcessExited("false", "natural", 1, 10*time.Millisecond)
	pc.ProcessExited("sleep", "destroyed", 143, 2*time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(pc.exits.WithLabelValues("false", "natural", "1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pc.exits.WithLabelValues("sleep", "destroyed", "143")))

	count, err := testutil.GatherAndCount(pc.registry, "test_process_runtime_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

// TestPrometheusCollector_Console tests console line counters and wait histograms
func TestPrometheusCollector_Console(t *testing.T) {
	pc := NewPrometheusCollector("test")

	for i := 0; i < 5; i++ {
		pc.ConsoleLine("mysqld", "stdout")
	}
	pc.ConsoleLine("mysqld", "stderr")
	pc.PatternWait("mysqld", "matched", 150*time.Millisecond)
	pc.PatternWait("mysqld", "timeout", time.Second)

	assert.Equal(t, float64(5), testutil.ToFloat64(pc.consoleLines.WithLabelValues("mysqld", "stdout")))
	assert.Equal(t, float64(1), testutil.ToFloat64(pc.consoleLines.WithLabelValues("mysqld", "stderr")))

	count, err := testutil.GatherAndCount(pc.registry, "test_console_wait_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

// TestPrometheusCollector_DestroyAndErrors tests destroy histogram and error counter
func TestPrometheusCollector_DestroyAndErrors(t *testing.T) {
	pc := NewPrometheusCollector("")

	pc.DestroyDuration("vi", 600*time.Millisecond, true)
	pc.ProcessError("vi", "destroy_failed")
	pc.ProcessError("vi", "destroy_failed")

	assert.Equal(t, float64(2), testutil.ToFloat64(pc.errors.WithLabelValues("vi", "destroy_failed")))

	count, err := testutil.GatherAndCount(pc.registry, "mproc_process_destroy_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// TestPrometheusCollector_Handler tests the HTTP exposition
func TestPrometheusCollector_Handler(t *testing.T) {
	pc := NewPrometheusCollector("test")
	pc.ConsoleLine("sleep", "stdout")

	rec := httptest.NewRecorder()
	pc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `test_console_lines_total{process="sleep",stream="stdout"} 1`)
}

// TestNoop ensures the no-op collector satisfies the interface and does nothing
func TestNoop(t *testing.T) {
	var c Collector = Noop()
	c.StateTransition("p", "a", "b")
	c.ProcessExited("p", "natural", 0, 0)
	c.DestroyDuration("p", 0, false)
	c.ConsoleLine("p", "stdout")
	c.PatternWait("p", "matched", 0)
	c.ProcessError("p", "x")

	var _ Collector = (*PrometheusCollector)(nil)
}
