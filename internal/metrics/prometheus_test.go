package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCounters(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.CyclesStarted.Inc()
	prom.Metrics.CyclesFinalized.Inc()
	prom.Metrics.LegsSucceeded.Inc()
	prom.Metrics.LegsSucceeded.Inc()
	prom.Metrics.LegsFailed.Inc()
	prom.Metrics.StrayResults.Inc()
	prom.Metrics.SubmitFailed.Inc()
	prom.Metrics.KeeperErrors.Inc()
	prom.Metrics.TradesRemaining.Set(4)

	assertCounter(t, prom.counters["cycles_started_total"], 1)
	assertCounter(t, prom.counters["cycles_finalized_total"], 1)
	assertCounter(t, prom.counters["legs_succeeded_total"], 2)
	assertCounter(t, prom.counters["legs_failed_total"], 1)
	assertCounter(t, prom.counters["stray_results_total"], 1)
	assertCounter(t, prom.counters["submit_failed_total"], 1)
	assertCounter(t, prom.counters["keeper_errors_total"], 1)
	require.Equal(t, float64(4), testutil.ToFloat64(prom.tradesRemaining))
}

func TestPrometheusHandlerExposesNamespace(t *testing.T) {
	prom := NewPrometheus()
	prom.Metrics.CyclesStarted.Inc()
	rec := httptest.NewRecorder()
	prom.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Contains(t, rec.Body.String(), "dca_vault_cycles_started_total 1")
}

func TestNoopMetrics(t *testing.T) {
	m := NewNoop()
	m.CyclesStarted.Inc()
	m.TradesRemaining.Set(1)
}

func assertCounter(t *testing.T, counter prometheus.Counter, expected float64) {
	t.Helper()
	require.NotNil(t, counter, "counter not registered")
	require.Equal(t, expected, testutil.ToFloat64(counter))
}
