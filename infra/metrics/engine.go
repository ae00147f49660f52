package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"tickbook/domain/orderbook"
)

// EngineMetrics exposes matching activity to Prometheus. Observe is called
// once per processed order after its latency window closes.
type EngineMetrics struct {
	Orders  prometheus.Counter
	Trades  prometheus.Counter
	Volume  prometheus.Counter
	Latency prometheus.Histogram

	Levels       *prometheus.GaugeVec
	Resting      prometheus.Gauge
	PoolCapacity prometheus.Gauge
	PoolBytes    prometheus.Gauge
}

// NewEngineMetrics builds the collectors and registers them with reg.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		Orders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickbook",
			Name:      "orders_processed_total",
			Help:      "Orders submitted to the matching engine.",
		}),
		Trades: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickbook",
			Name:      "trades_total",
			Help:      "Fills produced by matching.",
		}),
		Volume: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tickbook",
			Name:      "trade_volume_total",
			Help:      "Total filled quantity.",
		}),
		Latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tickbook",
			Name:      "process_latency_seconds",
			Help:      "Match plus insert latency per order.",
			Buckets:   prometheus.ExponentialBuckets(50e-9, 2, 16),
		}),
		Levels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tickbook",
			Name:      "book_levels",
			Help:      "Price levels per side.",
		}, []string{"side"}),
		Resting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tickbook",
			Name:      "book_resting_orders",
			Help:      "Orders resting in the book.",
		}),
		PoolCapacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tickbook",
			Name:      "pool_capacity_slots",
			Help:      "Order pool capacity.",
		}),
		PoolBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tickbook",
			Name:      "pool_memory_bytes",
			Help:      "Memory held by the order pool.",
		}),
	}
	reg.MustRegister(m.Orders, m.Trades, m.Volume, m.Latency,
		m.Levels, m.Resting, m.PoolCapacity, m.PoolBytes)
	return m
}

func (m *EngineMetrics) Observe(latencyNs uint64, trades []orderbook.Trade) {
	m.Orders.Inc()
	m.Latency.Observe(float64(latencyNs) / 1e9)
	if len(trades) == 0 {
		return
	}
	m.Trades.Add(float64(len(trades)))
	var qty int64
	for _, t := range trades {
		qty += t.Qty
	}
	m.Volume.Add(float64(qty))
}

// SetBook publishes a book shape snapshot.
func (m *EngineMetrics) SetBook(s orderbook.BookStats) {
	m.Levels.WithLabelValues("bid").Set(float64(s.BidLevels))
	m.Levels.WithLabelValues("ask").Set(float64(s.AskLevels))
	m.Resting.Set(float64(s.Resting))
	m.PoolCapacity.Set(float64(s.PoolCapacity))
	m.PoolBytes.Set(float64(s.PoolBytes))
}
