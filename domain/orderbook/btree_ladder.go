package orderbook

import (
	"github.com/cockroachdb/errors"
	"github.com/tidwall/btree"
)

const btreeDegree = 32

// btreeLadder keeps levels in a B-tree map keyed by price. Levels are
// heap-allocated once and recycled through spare.
type btreeLadder struct {
	levels *btree.Map[int64, *PriceLevel]
	best   *PriceLevel
	spare  []*PriceLevel
	dir    Direction
}

func newBTreeLadder(dir Direction) *btreeLadder {
	return &btreeLadder{
		levels: btree.NewMap[int64, *PriceLevel](btreeDegree),
		dir:    dir,
	}
}

func (t *btreeLadder) Len() int { return t.levels.Len() }

func (t *btreeLadder) Best() *PriceLevel { return t.best }

func (t *btreeLadder) GetOrCreate(price int64) (*PriceLevel, bool) {
	if l, ok := t.levels.Get(price); ok {
		return l, false
	}
	var l *PriceLevel
	if n := len(t.spare); n > 0 {
		l = t.spare[n-1]
		t.spare = t.spare[:n-1]
	} else {
		l = &PriceLevel{}
	}
	l.Price = price
	t.levels.Set(price, l)
	if t.best == nil || t.dir.better(price, t.best.Price) {
		t.best = l
	}
	return l, true
}

func (t *btreeLadder) RemoveIfEmpty(l *PriceLevel) bool {
	if !l.Empty() {
		return false
	}
	if got, ok := t.levels.Delete(l.Price); !ok || got != l {
		panic(errors.AssertionFailedf("orderbook: level %d not in ladder", l.Price))
	}
	if l == t.best {
		t.best = t.edge()
	}
	l.TotalQty = 0
	t.spare = append(t.spare, l)
	return true
}

func (t *btreeLadder) Walk(fn func(*PriceLevel) bool) {
	iter := func(_ int64, l *PriceLevel) bool { return fn(l) }
	if t.dir == Ascending {
		t.levels.Scan(iter)
	} else {
		t.levels.Reverse(iter)
	}
}

func (t *btreeLadder) edge() *PriceLevel {
	var (
		l  *PriceLevel
		ok bool
	)
	if t.dir == Ascending {
		_, l, ok = t.levels.Min()
	} else {
		_, l, ok = t.levels.Max()
	}
	if !ok {
		return nil
	}
	return l
}

func (t *btreeLadder) verify() error {
	if t.best != t.edge() {
		return errors.AssertionFailedf("btree: stale best level")
	}
	return nil
}
