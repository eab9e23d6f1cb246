package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func TestInventoryMetricsCountsOperationsAndUnits(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewInventoryMetrics(reg)

	m.Observe("purchase", OutcomeSuccess)
	m.Observe("purchase", OutcomeRejected)
	m.Observe("purchase", OutcomeSuccess)
	m.AddUnits("purchase", 5)
	m.AddUnits("restock", 10)
	m.AddUnits("restock", 0)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := counterValue(mfs, "sweets_stock_operations_total", map[string]string{"op": "purchase", "outcome": OutcomeSuccess})
	require.NoError(t, err)
	require.Equal(t, 2.0, got)

	got, err = counterValue(mfs, "sweets_stock_operations_total", map[string]string{"op": "purchase", "outcome": OutcomeRejected})
	require.NoError(t, err)
	require.Equal(t, 1.0, got)

	got, err = counterValue(mfs, "sweets_units_moved_total", map[string]string{"op": "restock"})
	require.NoError(t, err)
	require.Equal(t, 10.0, got)
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("POST", "/api/sweets/{id}/purchase", 200, 20*time.Millisecond)
	m.Observe("POST", "/api/sweets/{id}/purchase", 400, 5*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := counterValue(mfs, "http_requests_total", map[string]string{"method": "POST", "route": "/api/sweets/{id}/purchase", "status": "400"})
	require.NoError(t, err)
	require.Equal(t, 1.0, got)

	mf := findMetricFamily(mfs, "http_request_duration_seconds")
	require.NotNil(t, mf)
	require.EqualValues(t, 2, mf.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestNilRegistererIsNoop(t *testing.T) {
	require.NotPanics(t, func() {
		NewInventoryMetrics(nil).Observe("purchase", OutcomeSuccess)
		NewHTTPMetrics(nil).Observe("GET", "", 200, time.Millisecond)
		var m *InventoryMetrics
		m.AddUnits("restock", 1)
	})
}

func counterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q with labels %v not found", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
