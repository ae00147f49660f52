package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbook/domain/orderbook"
	"tickbook/infra/clock"
	"tickbook/infra/metrics"
)

type observation struct {
	ns     uint64
	trades int
}

type fakeRecorder struct {
	obs []observation
}

func (f *fakeRecorder) Observe(ns uint64, trades []orderbook.Trade) {
	f.obs = append(f.obs, observation{ns, len(trades)})
}

func newTestEngine(opts ...EngineOption) *MatchingEngine {
	opts = append([]EngineOption{WithClock(clock.NewFake(1000, 25).Now)}, opts...)
	return NewMatchingEngine(orderbook.New(), metrics.NewLatencyStats(16), opts...)
}

func TestEngineRestsOnEmptyBook(t *testing.T) {
	e := newTestEngine()
	trades := e.Process(orderbook.Order{ID: 1, Side: orderbook.Buy, Price: 10000, Qty: 10}, nil)

	assert.Empty(t, trades)
	assert.Equal(t, int64(10000), e.Book().BestBid())
	assert.Equal(t, int64(0), e.Book().BestAsk())
	assert.Equal(t, 1, e.Latency().Count())
}

func TestEngineRestsResidual(t *testing.T) {
	e := newTestEngine()
	e.Process(orderbook.Order{ID: 1, Side: orderbook.Sell, Price: 10050, Qty: 5}, nil)

	trades := e.Process(orderbook.Order{ID: 2, Side: orderbook.Buy, Price: 10050, Qty: 8}, nil)
	require.Len(t, trades, 1)
	assert.Equal(t, orderbook.Trade{TakerID: 2, MakerID: 1, Price: 10050, Qty: 5}, trades[0])
	assert.Equal(t, []orderbook.LevelView{{Price: 10050, Qty: 3}}, e.Book().Depth(orderbook.Buy, 0))
	assert.Empty(t, e.Book().Depth(orderbook.Sell, 0))
}

func TestEngineFIFO(t *testing.T) {
	e := newTestEngine()
	e.Process(orderbook.Order{ID: 1, Side: orderbook.Sell, Price: 10000, Qty: 3}, nil)
	e.Process(orderbook.Order{ID: 2, Side: orderbook.Sell, Price: 10000, Qty: 4}, nil)

	trades := e.Process(orderbook.Order{ID: 3, Side: orderbook.Buy, Price: 10000, Qty: 5}, nil)
	assert.Equal(t, []orderbook.Trade{
		{TakerID: 3, MakerID: 1, Price: 10000, Qty: 3},
		{TakerID: 3, MakerID: 2, Price: 10000, Qty: 2},
	}, trades)
	assert.Equal(t, []orderbook.LevelView{{Price: 10000, Qty: 2}}, e.Book().Depth(orderbook.Sell, 0))
}

func TestEngineZeroQtyStillSampled(t *testing.T) {
	rec := &fakeRecorder{}
	e := newTestEngine(WithRecorder(rec))
	e.Process(orderbook.Order{ID: 1, Side: orderbook.Sell, Price: 100, Qty: 2}, nil)
	before := e.Stats()

	trades := e.Process(orderbook.Order{ID: 2, Side: orderbook.Buy, Price: 100, Qty: 0}, nil)
	assert.Empty(t, trades)
	assert.Equal(t, before, e.Stats())
	assert.Equal(t, 2, e.Latency().Count())
	assert.Len(t, rec.obs, 2)
}

func TestEngineLatencyFromClock(t *testing.T) {
	rec := &fakeRecorder{}
	e := newTestEngine(WithRecorder(rec))
	e.Process(orderbook.Order{ID: 1, Side: orderbook.Sell, Price: 100, Qty: 2}, nil)
	e.Process(orderbook.Order{ID: 2, Side: orderbook.Buy, Price: 100, Qty: 1}, nil)

	// the fake clock advances 25ns per read, two reads per order
	assert.Equal(t, []uint64{25, 25}, e.Latency().Samples())
	assert.Equal(t, []observation{{25, 0}, {25, 1}}, rec.obs)
}

func TestEngineAppendsToCallerBuffer(t *testing.T) {
	rec := &fakeRecorder{}
	e := newTestEngine(WithRecorder(rec))
	e.Process(orderbook.Order{ID: 1, Side: orderbook.Sell, Price: 100, Qty: 1}, nil)
	e.Process(orderbook.Order{ID: 2, Side: orderbook.Sell, Price: 100, Qty: 1}, nil)

	buf := []orderbook.Trade{{TakerID: 99}}
	buf = e.Process(orderbook.Order{ID: 3, Side: orderbook.Buy, Price: 100, Qty: 2}, buf)
	assert.Len(t, buf, 3)
	assert.Equal(t, 2, rec.obs[2].trades, "recorder sees only the new fills")
}

func BenchmarkEngineProcess(b *testing.B) {
	e := NewMatchingEngine(orderbook.New(), metrics.NewLatencyStats(b.N))
	trades := make([]orderbook.Trade, 0, 64)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		side := orderbook.Buy
		if i&1 == 1 {
			side = orderbook.Sell
		}
		trades = e.Process(orderbook.Order{
			ID:    uint64(i + 1),
			Side:  side,
			Price: int64(10000 + (i*17)%101 - 50),
			Qty:   int64(1 + i%100),
		}, trades[:0])
	}
}
