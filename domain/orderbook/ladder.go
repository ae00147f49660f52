package orderbook

import "github.com/cockroachdb/errors"

// Direction orders a ladder best-first.
type Direction uint8

const (
	Ascending  Direction = iota // asks: lowest price is best
	Descending                  // bids: highest price is best
)

// better reports whether price a ranks ahead of b.
func (d Direction) better(a, b int64) bool {
	if d == Ascending {
		return a < b
	}
	return a > b
}

// Ladder is the price-ordered index of one side of the book. It exposes
// only what matching and inspection need.
type Ladder interface {
	// Best is the best level, nil when the side is empty.
	Best() *PriceLevel
	// GetOrCreate returns the level at price, reporting whether it is new.
	// A new level must be reset by the caller before use.
	GetOrCreate(price int64) (*PriceLevel, bool)
	// RemoveIfEmpty drops l from the index when its queue is empty.
	RemoveIfEmpty(l *PriceLevel) bool
	// Walk visits levels best first until fn returns false.
	Walk(fn func(*PriceLevel) bool)
	Len() int
}

// LadderKind names a Ladder implementation.
type LadderKind string

const (
	LadderRBTree LadderKind = "rbtree"
	LadderBTree  LadderKind = "btree"
)

// ParseLadderKind validates a ladder name.
func ParseLadderKind(s string) (LadderKind, error) {
	switch k := LadderKind(s); k {
	case LadderRBTree, LadderBTree:
		return k, nil
	}
	return "", errors.Newf("unknown ladder %q (want %s or %s)", s, LadderRBTree, LadderBTree)
}

func newLadder(kind LadderKind, dir Direction) Ladder {
	if kind == LadderBTree {
		return newBTreeLadder(dir)
	}
	return newRBLadder(dir)
}
