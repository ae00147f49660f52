package orderbook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbook/infra/memory"
)

var ladders = []LadderKind{LadderRBTree, LadderBTree}

func forEachLadder(t *testing.T, fn func(t *testing.T, b *OrderBook)) {
	for _, k := range ladders {
		t.Run(string(k), func(t *testing.T) {
			fn(t, New(WithLadder(k), WithBlockSize(8)))
		})
	}
}

// process mirrors the engine: match, then rest the residual.
func process(b *OrderBook, o Order) []Trade {
	trades := b.Match(&o, nil)
	if o.Qty > 0 {
		b.Add(o)
	}
	return trades
}

func restingQtys(b *OrderBook, s Side) []int64 {
	var out []int64
	b.Orders(s, func(o Order) bool {
		out = append(out, o.Qty)
		return true
	})
	return out
}

func TestRestOnEmptyBook(t *testing.T) {
	forEachLadder(t, func(t *testing.T, b *OrderBook) {
		trades := process(b, Order{ID: 1, Side: Buy, Price: 10000, Qty: 10})
		assert.Empty(t, trades)
		assert.Equal(t, int64(10000), b.BestBid())
		assert.Equal(t, int64(0), b.BestAsk())
		require.NoError(t, b.CheckInvariants())
	})
}

func TestPartialFillRestsResidual(t *testing.T) {
	forEachLadder(t, func(t *testing.T, b *OrderBook) {
		process(b, Order{ID: 1, Side: Sell, Price: 10050, Qty: 5})

		trades := process(b, Order{ID: 2, Side: Buy, Price: 10050, Qty: 8})
		require.Len(t, trades, 1)
		assert.Equal(t, Trade{TakerID: 2, MakerID: 1, Price: 10050, Qty: 5}, trades[0])

		assert.Equal(t, int64(10050), b.BestBid())
		assert.Equal(t, int64(0), b.BestAsk())
		assert.Equal(t, []LevelView{{Price: 10050, Qty: 3}}, b.Depth(Buy, 0))
		assert.Empty(t, b.Depth(Sell, 0))
		require.NoError(t, b.CheckInvariants())
	})
}

func TestFIFOWithinLevel(t *testing.T) {
	forEachLadder(t, func(t *testing.T, b *OrderBook) {
		process(b, Order{ID: 1, Side: Sell, Price: 10000, Qty: 3})
		process(b, Order{ID: 2, Side: Sell, Price: 10000, Qty: 4})

		trades := process(b, Order{ID: 3, Side: Buy, Price: 10000, Qty: 5})
		assert.Equal(t, []Trade{
			{TakerID: 3, MakerID: 1, Price: 10000, Qty: 3},
			{TakerID: 3, MakerID: 2, Price: 10000, Qty: 2},
		}, trades)

		assert.Equal(t, []int64{2}, restingQtys(b, Sell))
		assert.Equal(t, int64(0), b.BestBid())
		assert.Equal(t, 1, b.Stats().Resting)
		require.NoError(t, b.CheckInvariants())
	})
}

func TestZeroQuantityIsNoop(t *testing.T) {
	forEachLadder(t, func(t *testing.T, b *OrderBook) {
		process(b, Order{ID: 1, Side: Sell, Price: 100, Qty: 5})
		before := b.Stats()

		in := Order{ID: 2, Side: Buy, Price: 100, Qty: 0}
		assert.Empty(t, b.Match(&in, nil))
		b.Add(in)
		b.Add(Order{ID: 3, Side: Buy, Price: 100, Qty: -4})

		assert.Equal(t, before, b.Stats())
	})
}

func TestTradesAtMakerPrice(t *testing.T) {
	forEachLadder(t, func(t *testing.T, b *OrderBook) {
		process(b, Order{ID: 1, Side: Buy, Price: 99, Qty: 2})
		process(b, Order{ID: 2, Side: Buy, Price: 101, Qty: 2})

		trades := process(b, Order{ID: 3, Side: Sell, Price: 90, Qty: 10})
		assert.Equal(t, []Trade{
			{TakerID: 3, MakerID: 2, Price: 101, Qty: 2},
			{TakerID: 3, MakerID: 1, Price: 99, Qty: 2},
		}, trades)
		assert.Equal(t, int64(90), b.BestAsk())
		assert.Equal(t, []int64{6}, restingQtys(b, Sell))
	})
}

func TestMatchStopsAtLimit(t *testing.T) {
	forEachLadder(t, func(t *testing.T, b *OrderBook) {
		process(b, Order{ID: 1, Side: Sell, Price: 100, Qty: 1})
		process(b, Order{ID: 2, Side: Sell, Price: 102, Qty: 1})

		in := Order{ID: 3, Side: Buy, Price: 101, Qty: 5}
		trades := b.Match(&in, nil)
		require.Len(t, trades, 1)
		assert.Equal(t, int64(4), in.Qty)
		assert.Equal(t, int64(102), b.BestAsk())
		assert.Equal(t, int64(0), b.BestBid(), "Match must not rest the residual")
	})
}

func TestMatchAppends(t *testing.T) {
	b := New()
	b.Add(Order{ID: 1, Side: Sell, Price: 5, Qty: 1})

	prior := []Trade{{TakerID: 9}}
	in := Order{ID: 2, Side: Buy, Price: 5, Qty: 1}
	out := b.Match(&in, prior)
	require.Len(t, out, 2)
	assert.Equal(t, uint64(9), out[0].TakerID)
}

func TestDepthAndOrders(t *testing.T) {
	forEachLadder(t, func(t *testing.T, b *OrderBook) {
		for i, p := range []int64{100, 98, 99, 98} {
			b.Add(Order{ID: uint64(i + 1), Side: Buy, Price: p, Qty: int64(i + 1)})
		}
		for i, p := range []int64{103, 101, 102} {
			b.Add(Order{ID: uint64(i + 10), Side: Sell, Price: p, Qty: 1})
		}

		assert.Equal(t, []LevelView{{100, 1}, {99, 3}, {98, 6}}, b.Depth(Buy, 0))
		assert.Equal(t, []LevelView{{100, 1}, {99, 3}}, b.Depth(Buy, 2))
		assert.Equal(t, []LevelView{{101, 1}, {102, 1}, {103, 1}}, b.Depth(Sell, 10))

		var ids []uint64
		b.Orders(Buy, func(o Order) bool {
			ids = append(ids, o.ID)
			return true
		})
		assert.Equal(t, []uint64{1, 3, 2, 4}, ids)

		ids = ids[:0]
		b.Orders(Buy, func(o Order) bool {
			ids = append(ids, o.ID)
			return len(ids) < 2
		})
		assert.Equal(t, []uint64{1, 3}, ids)

		s := b.Stats()
		assert.Equal(t, 3, s.BidLevels)
		assert.Equal(t, 3, s.AskLevels)
		assert.Equal(t, 7, s.Resting)
		assert.Equal(t, 7, s.PoolAllocated)
		assert.Equal(t, 8, s.PoolCapacity)
	})
}

func TestLevelRemovedWhenDrained(t *testing.T) {
	forEachLadder(t, func(t *testing.T, b *OrderBook) {
		b.Add(Order{ID: 1, Side: Sell, Price: 100, Qty: 2})
		b.Add(Order{ID: 2, Side: Sell, Price: 101, Qty: 2})
		process(b, Order{ID: 3, Side: Buy, Price: 101, Qty: 2})

		assert.Equal(t, 1, b.Stats().AskLevels)
		assert.Equal(t, int64(101), b.BestAsk())
		require.NoError(t, b.CheckInvariants())

		// the freed level is recycled for a new price
		b.Add(Order{ID: 4, Side: Sell, Price: 99, Qty: 1})
		assert.Equal(t, []LevelView{{99, 1}, {101, 2}}, b.Depth(Sell, 0))
		require.NoError(t, b.CheckInvariants())
	})
}

func TestReset(t *testing.T) {
	forEachLadder(t, func(t *testing.T, b *OrderBook) {
		for i := 0; i < 20; i++ {
			side := Buy
			price := int64(90 + i%5)
			if i%2 == 1 {
				side, price = Sell, int64(110+i%5)
			}
			b.Add(Order{ID: uint64(i + 1), Side: side, Price: price, Qty: 3})
		}
		capBefore := b.Stats().PoolCapacity

		b.Reset()
		s := b.Stats()
		assert.Zero(t, s.Resting)
		assert.Zero(t, s.BidLevels)
		assert.Zero(t, s.AskLevels)
		assert.Zero(t, s.PoolAllocated)
		assert.Equal(t, capBefore, s.PoolCapacity)
		require.NoError(t, b.CheckInvariants())
	})
}

func TestSharedPool(t *testing.T) {
	pool := memory.NewPool[Order](16)
	a := New(WithPool(pool))
	b := New(WithPool(pool), WithLadder(LadderBTree))

	a.Add(Order{ID: 1, Side: Buy, Price: 10, Qty: 1})
	b.Add(Order{ID: 2, Side: Sell, Price: 10, Qty: 1})

	assert.Equal(t, 2, pool.Allocated())
	require.NoError(t, a.CheckInvariants())
	require.NoError(t, b.CheckInvariants())
}

func TestCheckInvariantsDetectsCorruption(t *testing.T) {
	b := New()
	b.Add(Order{ID: 1, Side: Buy, Price: 100, Qty: 5})
	b.bids.Best().TotalQty = 7

	err := b.CheckInvariants()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "aggregate")
}

func TestParseSide(t *testing.T) {
	for _, tok := range []string{"B", "BUY", "Buy", "buy"} {
		s, ok := ParseSide(tok)
		assert.True(t, ok, tok)
		assert.Equal(t, Buy, s)
	}
	for _, tok := range []string{"S", "SELL", "Sell", "sell"} {
		s, ok := ParseSide(tok)
		assert.True(t, ok, tok)
		assert.Equal(t, Sell, s)
	}
	for _, tok := range []string{"", "b", "bUY", "X"} {
		_, ok := ParseSide(tok)
		assert.False(t, ok, tok)
	}
	assert.Equal(t, "BUY", Buy.String())
	assert.Equal(t, Sell, Buy.Opposite())
}

func TestParseLadderKind(t *testing.T) {
	k, err := ParseLadderKind("btree")
	require.NoError(t, err)
	assert.Equal(t, LadderBTree, k)

	_, err = ParseLadderKind("skiplist")
	assert.Error(t, err)
}
