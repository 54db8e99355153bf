package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics tracks calls into market contracts and the oracle reads they
// depend on.
type MarketMetrics struct {
	calls          *prometheus.CounterVec
	collaterals    *prometheus.GaugeVec
	activated      *prometheus.GaugeVec
	oracleFailures *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the process-wide market metrics registry.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			calls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swaylend",
				Subsystem: "market",
				Name:      "calls_total",
				Help:      "Market entry point invocations by method and result.",
			}, []string{"method", "result"}),
			collaterals: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "swaylend",
				Subsystem: "market",
				Name:      "collateral_assets",
				Help:      "Number of registered collateral assets per market.",
			}, []string{"contract"}),
			activated: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "swaylend",
				Subsystem: "market",
				Name:      "activated",
				Help:      "Whether the market accepts value operations (1) or is still bootstrapping (0).",
			}, []string{"contract"}),
			oracleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "swaylend",
				Subsystem: "market",
				Name:      "oracle_failures_total",
				Help:      "Rejected or unavailable oracle prices by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			marketRegistry.calls,
			marketRegistry.collaterals,
			marketRegistry.activated,
			marketRegistry.oracleFailures,
		)
	})
	return marketRegistry
}

func (m *MarketMetrics) ObserveCall(method, result string) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	if result == "" {
		result = "ok"
	}
	m.calls.WithLabelValues(method, result).Inc()
}

func (m *MarketMetrics) SetCollaterals(contract string, count int) {
	if m == nil {
		return
	}
	m.collaterals.WithLabelValues(contract).Set(float64(count))
}

func (m *MarketMetrics) SetActivated(contract string, active bool) {
	if m == nil {
		return
	}
	value := 0.0
	if active {
		value = 1
	}
	m.activated.WithLabelValues(contract).Set(value)
}

func (m *MarketMetrics) ObserveOracleFailure(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.oracleFailures.WithLabelValues(reason).Inc()
}
