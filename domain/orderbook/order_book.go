package orderbook

import (
	"github.com/cockroachdb/errors"

	"tickbook/infra/memory"
)

// OrderBook is the two-sided limit book. It is single-writer; callers that
// share one across goroutines must serialize access.
type OrderBook struct {
	pool    *memory.Pool[Order]
	ownPool bool
	bids    Ladder
	asks    Ladder
	resting int
}

type options struct {
	ladder    LadderKind
	blockSize int
	pool      *memory.Pool[Order]
}

type Option func(*options)

// WithLadder selects the price index implementation.
func WithLadder(k LadderKind) Option {
	return func(o *options) { o.ladder = k }
}

// WithBlockSize sets the growth step of the book's own order pool.
func WithBlockSize(n int) Option {
	return func(o *options) { o.blockSize = n }
}

// WithPool backs the book with an existing pool, which may be shared.
func WithPool(p *memory.Pool[Order]) Option {
	return func(o *options) { o.pool = p }
}

func New(opts ...Option) *OrderBook {
	o := options{ladder: LadderRBTree, blockSize: memory.DefaultBlockSize}
	for _, fn := range opts {
		fn(&o)
	}
	b := &OrderBook{
		pool: o.pool,
		bids: newLadder(o.ladder, Descending),
		asks: newLadder(o.ladder, Ascending),
	}
	if b.pool == nil {
		b.pool = memory.NewPool[Order](o.blockSize)
		b.ownPool = true
	}
	return b
}

func (b *OrderBook) ladder(s Side) Ladder {
	if s == Buy {
		return b.bids
	}
	return b.asks
}

// Add rests o at its price behind every order already there. It does not
// match; orders with non-positive quantity are ignored.
func (b *OrderBook) Add(o Order) {
	if o.Qty <= 0 {
		return
	}
	lvl, created := b.ladder(o.Side).GetOrCreate(o.Price)
	if created {
		lvl.reset(o.Price, b.pool)
	}
	h, slot := b.pool.Alloc()
	*slot = o
	lvl.push(h, o.Qty)
	b.resting++
	b.check()
}

// Match fills in against the opposite side in price-time priority, appending
// one Trade per fill to trades. in.Qty is reduced by the filled amount; any
// residual is left for the caller to Add.
func (b *OrderBook) Match(in *Order, trades []Trade) []Trade {
	if in.Qty <= 0 {
		return trades
	}
	opp := b.ladder(in.Side.Opposite())
	for in.Qty > 0 {
		lvl := opp.Best()
		if lvl == nil || !crosses(in, lvl.Price) {
			break
		}
		trades = b.drain(lvl, in, trades)
		opp.RemoveIfEmpty(lvl)
	}
	b.check()
	return trades
}

func crosses(in *Order, price int64) bool {
	if in.Side == Buy {
		return in.Price >= price
	}
	return in.Price <= price
}

func (b *OrderBook) drain(lvl *PriceLevel, in *Order, trades []Trade) []Trade {
	for in.Qty > 0 {
		h := lvl.orders.Front()
		if h == memory.Nil {
			break
		}
		maker := b.pool.Get(h)
		exec := min(in.Qty, maker.Qty)
		in.Qty -= exec
		maker.Qty -= exec
		lvl.TotalQty -= exec
		trades = append(trades, Trade{
			TakerID: in.ID,
			MakerID: maker.ID,
			Price:   lvl.Price,
			Qty:     exec,
		})
		if maker.Qty == 0 {
			b.evict(lvl, h)
		}
	}
	return trades
}

// evict unlinks one order from its level and returns its slot to the pool.
func (b *OrderBook) evict(lvl *PriceLevel, h memory.Handle) {
	o := b.pool.Get(h)
	lvl.TotalQty -= o.Qty
	lvl.orders.Remove(h)
	b.pool.Free(h)
	b.resting--
}

// Reset releases every resting order. Pool capacity is kept.
func (b *OrderBook) Reset() {
	for _, l := range [...]Ladder{b.bids, b.asks} {
		for lvl := l.Best(); lvl != nil; lvl = l.Best() {
			for h := lvl.orders.Front(); h != memory.Nil; h = lvl.orders.Front() {
				b.evict(lvl, h)
			}
			l.RemoveIfEmpty(lvl)
		}
	}
	b.check()
}

// BestBid is the highest bid price, 0 when there are no bids.
func (b *OrderBook) BestBid() int64 { return bestPrice(b.bids) }

// BestAsk is the lowest ask price, 0 when there are no asks.
func (b *OrderBook) BestAsk() int64 { return bestPrice(b.asks) }

func bestPrice(l Ladder) int64 {
	if lvl := l.Best(); lvl != nil {
		return lvl.Price
	}
	return 0
}

// Depth returns up to n levels of side s, best first. n <= 0 means all.
func (b *OrderBook) Depth(s Side, n int) []LevelView {
	l := b.ladder(s)
	size := l.Len()
	if n > 0 && n < size {
		size = n
	}
	out := make([]LevelView, 0, size)
	l.Walk(func(lvl *PriceLevel) bool {
		out = append(out, LevelView{Price: lvl.Price, Qty: lvl.TotalQty})
		return len(out) < size
	})
	return out
}

// Orders visits resting orders of side s, best level first and FIFO within
// a level, until fn returns false.
func (b *OrderBook) Orders(s Side, fn func(Order) bool) {
	more := true
	b.ladder(s).Walk(func(lvl *PriceLevel) bool {
		lvl.orders.Each(func(_ memory.Handle, o *Order) bool {
			more = fn(*o)
			return more
		})
		return more
	})
}

type BookStats struct {
	BidLevels     int
	AskLevels     int
	Resting       int
	PoolAllocated int
	PoolCapacity  int
	PoolBytes     uintptr
}

func (b *OrderBook) Stats() BookStats {
	return BookStats{
		BidLevels:     b.bids.Len(),
		AskLevels:     b.asks.Len(),
		Resting:       b.resting,
		PoolAllocated: b.pool.Allocated(),
		PoolCapacity:  b.pool.Capacity(),
		PoolBytes:     b.pool.MemoryBytes(),
	}
}

// CheckInvariants walks the whole book and reports the first broken
// invariant: level aggregates, empty or misordered levels, a crossed book,
// index shape, and pool accounting.
func (b *OrderBook) CheckInvariants() error {
	total := 0
	for _, s := range [...]Side{Buy, Sell} {
		n, err := b.checkSide(s)
		if err != nil {
			return err
		}
		total += n
	}
	if total != b.resting {
		return errors.AssertionFailedf("resting count %d, walked %d", b.resting, total)
	}
	if b.ownPool && b.pool.Allocated() != b.resting {
		return errors.AssertionFailedf("pool holds %d orders, book %d", b.pool.Allocated(), b.resting)
	}
	bid, ask := b.bids.Best(), b.asks.Best()
	if bid != nil && ask != nil && bid.Price >= ask.Price {
		return errors.AssertionFailedf("crossed book: bid %d >= ask %d", bid.Price, ask.Price)
	}
	return nil
}

func (b *OrderBook) checkSide(s Side) (int, error) {
	l := b.ladder(s)
	dir := Descending
	if s == Sell {
		dir = Ascending
	}
	var (
		err    error
		orders int
		levels int
		prev   *PriceLevel
	)
	l.Walk(func(lvl *PriceLevel) bool {
		levels++
		if prev != nil && !dir.better(prev.Price, lvl.Price) {
			err = errors.AssertionFailedf("%s level %d out of order after %d", s, lvl.Price, prev.Price)
			return false
		}
		prev = lvl
		if lvl.Empty() {
			err = errors.AssertionFailedf("%s level %d is empty but indexed", s, lvl.Price)
			return false
		}
		var sum int64
		lvl.orders.Each(func(_ memory.Handle, o *Order) bool {
			if o.Qty <= 0 || o.Side != s || o.Price != lvl.Price {
				err = errors.AssertionFailedf("%s order %d misplaced at level %d", s, o.ID, lvl.Price)
				return false
			}
			sum += o.Qty
			orders++
			return true
		})
		if err == nil && sum != lvl.TotalQty {
			err = errors.AssertionFailedf("%s level %d aggregate %d, orders sum %d", s, lvl.Price, lvl.TotalQty, sum)
		}
		return err == nil
	})
	if err != nil {
		return 0, err
	}
	if levels != l.Len() {
		return 0, errors.AssertionFailedf("%s ladder reports %d levels, walked %d", s, l.Len(), levels)
	}
	if v, ok := l.(interface{ verify() error }); ok {
		if err := v.verify(); err != nil {
			return 0, err
		}
	}
	return orders, nil
}

func (b *OrderBook) check() {
	if !debugChecks {
		return
	}
	if err := b.CheckInvariants(); err != nil {
		panic(err)
	}
}
