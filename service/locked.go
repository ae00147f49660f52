package service

import (
	"sync"

	"tickbook/domain/orderbook"
	"tickbook/infra/metrics"
)

// LockedEngine serializes every call into one MatchingEngine so several
// feeds can share a book.
type LockedEngine struct {
	mu sync.Mutex
	e  *MatchingEngine
}

func NewLockedEngine(e *MatchingEngine) *LockedEngine {
	return &LockedEngine{e: e}
}

func (l *LockedEngine) Process(o orderbook.Order, trades []orderbook.Trade) []orderbook.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.Process(o, trades)
}

func (l *LockedEngine) Stats() orderbook.BookStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.Stats()
}

func (l *LockedEngine) BestBid() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.book.BestBid()
}

func (l *LockedEngine) BestAsk() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.book.BestAsk()
}

func (l *LockedEngine) Depth(s orderbook.Side, n int) []orderbook.LevelView {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.book.Depth(s, n)
}

// LatencyReport summarises the shared latency samples.
func (l *LockedEngine) LatencyReport() metrics.LatencyReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.e.latency.Report()
}

// Do runs fn with exclusive access to the engine.
func (l *LockedEngine) Do(fn func(*MatchingEngine)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fn(l.e)
}
