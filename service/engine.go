package service

import (
	"tickbook/domain/orderbook"
	"tickbook/infra/clock"
	"tickbook/infra/metrics"
)

// Recorder observes each processed order after its latency window closes.
type Recorder interface {
	Observe(latencyNs uint64, trades []orderbook.Trade)
}

// Processor is what a Runner drives.
type Processor interface {
	Process(o orderbook.Order, trades []orderbook.Trade) []orderbook.Trade
	Stats() orderbook.BookStats
}

type MatchingEngine struct {
	book    *orderbook.OrderBook
	latency *metrics.LatencyStats
	now     clock.Clock
	rec     Recorder
}

type EngineOption func(*MatchingEngine)

// WithClock replaces the monotonic clock used for latency samples.
func WithClock(c clock.Clock) EngineOption {
	return func(e *MatchingEngine) { e.now = c }
}

// WithRecorder attaches an observer, typically Prometheus collectors.
func WithRecorder(r Recorder) EngineOption {
	return func(e *MatchingEngine) { e.rec = r }
}

func NewMatchingEngine(book *orderbook.OrderBook, latency *metrics.LatencyStats, opts ...EngineOption) *MatchingEngine {
	e := &MatchingEngine{
		book:    book,
		latency: latency,
		now:     clock.Monotonic,
	}
	for _, fn := range opts {
		fn(e)
	}
	return e
}

// Process matches o against the book, rests any residual and appends the
// resulting fills to trades. One latency sample covering match and insert
// is recorded for every call, including no-op orders.
func (e *MatchingEngine) Process(o orderbook.Order, trades []orderbook.Trade) []orderbook.Trade {
	start := e.now()

	n := len(trades)
	trades = e.book.Match(&o, trades)
	if o.Qty > 0 {
		e.book.Add(o)
	}

	elapsed := e.now() - start
	e.latency.Add(elapsed)
	if e.rec != nil {
		e.rec.Observe(elapsed, trades[n:])
	}
	return trades
}

func (e *MatchingEngine) Book() *orderbook.OrderBook { return e.book }

func (e *MatchingEngine) Latency() *metrics.LatencyStats { return e.latency }

func (e *MatchingEngine) Stats() orderbook.BookStats { return e.book.Stats() }
