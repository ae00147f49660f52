package snapshot

import "tickbook/domain/orderbook"

// Snapshot is the per-level shape of a book at one instant. Levels are best
// first on both sides.
type Snapshot struct {
	Bids []orderbook.LevelView
	Asks []orderbook.LevelView
}

// Take copies up to depth levels per side. depth <= 0 takes every level.
func Take(book *orderbook.OrderBook, depth int) Snapshot {
	return Snapshot{
		Bids: book.Depth(orderbook.Buy, depth),
		Asks: book.Depth(orderbook.Sell, depth),
	}
}

// Spread is best ask minus best bid, 0 when either side is empty.
func (s Snapshot) Spread() int64 {
	if len(s.Bids) == 0 || len(s.Asks) == 0 {
		return 0
	}
	return s.Asks[0].Price - s.Bids[0].Price
}
