package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// InventoryMetrics counts ledger operations and the stock units they move.
type InventoryMetrics struct {
	operations *prometheus.CounterVec
	units      *prometheus.CounterVec
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweets_stock_operations_total",
		Help: "Inventory ledger operations by kind and outcome.",
	}, []string{"op", "outcome"})
	units := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sweets_units_moved_total",
		Help: "Stock units removed by purchases or added by restocks.",
	}, []string{"op"})
	reg.MustRegister(operations, units)
	return &InventoryMetrics{operations: operations, units: units}
}

// Observe records one operation outcome.
func (m *InventoryMetrics) Observe(op, outcome string) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(op), normalizeLabel(outcome)).Inc()
}

// AddUnits records stock moved by a successful purchase or restock.
func (m *InventoryMetrics) AddUnits(op string, units int) {
	if m == nil || m.units == nil || units <= 0 {
		return
	}
	m.units.WithLabelValues(normalizeLabel(op)).Add(float64(units))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
