package orderbook

import (
	"slices"
	"testing"

	"pgregory.net/rapid"

	"tickbook/infra/memory"
)

func TestLadderContract(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		kind := rapid.SampledFrom(ladders).Draw(t, "kind")
		dir := rapid.SampledFrom([]Direction{Ascending, Descending}).Draw(t, "dir")
		l := newLadder(kind, dir)
		pool := memory.NewPool[Order](4)
		model := make(map[int64]*PriceLevel)

		steps := rapid.IntRange(1, 200).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			if len(model) == 0 || rapid.IntRange(0, 2).Draw(t, "op") > 0 {
				price := rapid.Int64Range(-20, 20).Draw(t, "price")
				lvl, created := l.GetOrCreate(price)
				prev, existed := model[price]
				if created == existed {
					t.Fatalf("price %d: created=%v but existed=%v", price, created, existed)
				}
				if existed && prev != lvl {
					t.Fatalf("price %d: level pointer changed", price)
				}
				if created {
					lvl.reset(price, pool)
					model[price] = lvl
				}
			} else {
				keys := sortedKeys(model)
				price := rapid.SampledFrom(keys).Draw(t, "victim")
				if !l.RemoveIfEmpty(model[price]) {
					t.Fatalf("empty level %d not removed", price)
				}
				delete(model, price)
			}

			want := sortedKeys(model)
			if dir == Descending {
				slices.Reverse(want)
			}
			var got []int64
			l.Walk(func(lvl *PriceLevel) bool {
				got = append(got, lvl.Price)
				return true
			})
			if !slices.Equal(want, got) {
				t.Fatalf("walk %v, want %v", got, want)
			}
			if l.Len() != len(want) {
				t.Fatalf("len %d, want %d", l.Len(), len(want))
			}
			best := l.Best()
			if len(want) == 0 {
				if best != nil {
					t.Fatalf("best %d on empty ladder", best.Price)
				}
			} else if best != model[want[0]] {
				t.Fatalf("best is not level %d", want[0])
			}
			if v, ok := l.(interface{ verify() error }); ok {
				if err := v.verify(); err != nil {
					t.Fatal(err)
				}
			}
		}
	})
}

func TestLadderKeepsNonEmptyLevel(t *testing.T) {
	for _, k := range ladders {
		t.Run(string(k), func(t *testing.T) {
			b := New(WithLadder(k))
			b.Add(Order{ID: 1, Side: Sell, Price: 7, Qty: 1})
			if b.asks.RemoveIfEmpty(b.asks.Best()) {
				t.Fatal("non-empty level removed")
			}
		})
	}
}

func sortedKeys(m map[int64]*PriceLevel) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
