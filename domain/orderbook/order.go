package orderbook

import "tickbook/infra/memory"

type Side uint8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite is the side an order of side s matches against.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide accepts the side tokens of the text order format.
func ParseSide(tok string) (Side, bool) {
	switch tok {
	case "B", "BUY", "Buy", "buy":
		return Buy, true
	case "S", "SELL", "Sell", "sell":
		return Sell, true
	}
	return 0, false
}

// Order is a priced quantity commitment. Only Qty changes while it rests.
type Order struct {
	ID    uint64
	Side  Side
	Price int64 // ticks
	Qty   int64
	TsNs  uint64

	links memory.Links
}

func (o *Order) QueueLinks() *memory.Links { return &o.links }

// Trade is one fill. Price is always the resting (maker) order's price.
type Trade struct {
	TakerID uint64
	MakerID uint64
	Price   int64
	Qty     int64
}
