package orderbook

import (
	"testing"

	"pgregory.net/rapid"
)

type flow struct {
	orders []Order
}

func drawFlow(t *rapid.T) flow {
	n := rapid.IntRange(1, 300).Draw(t, "n")
	f := flow{orders: make([]Order, n)}
	for i := range f.orders {
		side := Buy
		if rapid.Bool().Draw(t, "sell") {
			side = Sell
		}
		f.orders[i] = Order{
			ID:    uint64(i + 1),
			Side:  side,
			Price: rapid.Int64Range(95, 105).Draw(t, "price"),
			Qty:   rapid.Int64Range(0, 20).Draw(t, "qty"),
		}
	}
	return f
}

func TestBookProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := drawFlow(t)
		kind := rapid.SampledFrom(ladders).Draw(t, "ladder")
		b := New(WithLadder(kind), WithBlockSize(rapid.IntRange(1, 64).Draw(t, "block")))

		byID := make(map[uint64]Order, len(f.orders))
		type key struct {
			side  Side
			price int64
		}
		lastMaker := make(map[key]uint64)
		var submitted, traded int64
		lastCap := 0

		for _, o := range f.orders {
			byID[o.ID] = o
			if o.Qty > 0 {
				submitted += o.Qty
			}
			in := o
			trades := b.Match(&in, nil)
			if in.Qty > 0 {
				b.Add(in)
			}

			var filled int64
			for _, tr := range trades {
				maker := byID[tr.MakerID]
				if tr.TakerID != o.ID || tr.Qty <= 0 {
					t.Fatalf("bad trade %+v for order %d", tr, o.ID)
				}
				if maker.Side == o.Side || tr.Price != maker.Price {
					t.Fatalf("trade %+v not at maker price %d", tr, maker.Price)
				}
				if (o.Side == Buy && tr.Price > o.Price) || (o.Side == Sell && tr.Price < o.Price) {
					t.Fatalf("trade %+v violates limit %d", tr, o.Price)
				}
				k := key{maker.Side, maker.Price}
				if tr.MakerID < lastMaker[k] {
					t.Fatalf("maker %d filled after later maker %d at %d", tr.MakerID, lastMaker[k], maker.Price)
				}
				lastMaker[k] = tr.MakerID
				filled += tr.Qty
			}
			if o.Qty > 0 && filled+in.Qty != o.Qty {
				t.Fatalf("order %d: filled %d + residual %d != %d", o.ID, filled, in.Qty, o.Qty)
			}
			traded += filled

			if err := b.CheckInvariants(); err != nil {
				t.Fatal(err)
			}
			if c := b.Stats().PoolCapacity; c < lastCap {
				t.Fatalf("pool capacity shrank to %d", c)
			} else {
				lastCap = c
			}
		}

		var resting int64
		for _, s := range []Side{Buy, Sell} {
			for _, lv := range b.Depth(s, 0) {
				resting += lv.Qty
			}
		}
		if submitted != resting+2*traded {
			t.Fatalf("quantity not conserved: submitted %d, resting %d, traded %d", submitted, resting, traded)
		}
	})
}

func TestLaddersAgree(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		f := drawFlow(t)
		rb := New(WithLadder(LadderRBTree))
		bt := New(WithLadder(LadderBTree))
		for _, o := range f.orders {
			a, b := o, o
			ta := process(rb, a)
			tb := process(bt, b)
			if len(ta) != len(tb) {
				t.Fatalf("order %d: %d trades vs %d", o.ID, len(ta), len(tb))
			}
			for i := range ta {
				if ta[i] != tb[i] {
					t.Fatalf("order %d trade %d: %+v vs %+v", o.ID, i, ta[i], tb[i])
				}
			}
		}
		for _, s := range []Side{Buy, Sell} {
			da, db := rb.Depth(s, 0), bt.Depth(s, 0)
			if len(da) != len(db) {
				t.Fatalf("%s depth differs: %v vs %v", s, da, db)
			}
			for i := range da {
				if da[i] != db[i] {
					t.Fatalf("%s depth differs: %v vs %v", s, da, db)
				}
			}
		}
	})
}
