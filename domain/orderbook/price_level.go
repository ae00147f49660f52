package orderbook

import "tickbook/infra/memory"

// PriceLevel is the FIFO of resting orders at one price.
type PriceLevel struct {
	Price    int64
	TotalQty int64

	orders memory.Queue[Order, *Order]
}

func (l *PriceLevel) reset(price int64, pool *memory.Pool[Order]) {
	l.Price = price
	l.TotalQty = 0
	l.orders.Init(pool)
}

func (l *PriceLevel) push(h memory.Handle, qty int64) {
	l.orders.PushBack(h)
	l.TotalQty += qty
}

// Len is the number of queued orders.
func (l *PriceLevel) Len() int    { return l.orders.Len() }
func (l *PriceLevel) Empty() bool { return l.orders.Empty() }

// LevelView is a read-only (price, aggregate quantity) pair.
type LevelView struct {
	Price int64
	Qty   int64
}
