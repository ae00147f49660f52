package orderbook

import "testing"

func BenchmarkAddResting(b *testing.B) {
	for _, k := range ladders {
		b.Run(string(k), func(b *testing.B) {
			book := New(WithLadder(k))
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				book.Add(Order{ID: uint64(i + 1), Side: Buy, Price: int64(9000 + i%100), Qty: 10})
			}
		})
	}
}

func BenchmarkMatchAndRest(b *testing.B) {
	for _, k := range ladders {
		b.Run(string(k), func(b *testing.B) {
			book := New(WithLadder(k))
			trades := make([]Trade, 0, 64)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				side := Buy
				if i%2 == 1 {
					side = Sell
				}
				o := Order{ID: uint64(i + 1), Side: side, Price: int64(10000 + (i*31)%100 - 50), Qty: int64(1 + i%100)}
				trades = book.Match(&o, trades[:0])
				if o.Qty > 0 {
					book.Add(o)
				}
			}
		})
	}
}
