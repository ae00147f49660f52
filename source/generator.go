package source

import (
	"context"
	"io"
	"math/rand/v2"

	"tickbook/domain/orderbook"
	"tickbook/infra/clock"
)

// GeneratorConfig shapes synthetic order flow. Prices are drawn uniformly
// from BasePrice±PriceRange ticks and clamped to at least one tick.
type GeneratorConfig struct {
	Count      int
	BasePrice  int64
	PriceRange int64
	MaxQty     int64
	Seed       uint64
	BuyRatio   float64
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Count:      100000,
		BasePrice:  10000,
		PriceRange: 50,
		MaxQty:     100,
		Seed:       1,
		BuyRatio:   0.5,
	}
}

// Generator emits Count orders with ids 1..Count. Output depends only on the
// config.
type Generator struct {
	cfg  GeneratorConfig
	rng  *rand.Rand
	now  clock.Clock
	next int
}

func NewGenerator(cfg GeneratorConfig, now clock.Clock) *Generator {
	if cfg.PriceRange < 0 {
		cfg.PriceRange = -cfg.PriceRange
	}
	if cfg.MaxQty < 1 {
		cfg.MaxQty = 1
	}
	if now == nil {
		now = clock.Monotonic
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		now: now,
	}
}

func (g *Generator) Next(ctx context.Context) (orderbook.Order, error) {
	if g.next >= g.cfg.Count {
		return orderbook.Order{}, io.EOF
	}
	if g.next&1023 == 0 {
		if err := ctx.Err(); err != nil {
			return orderbook.Order{}, err
		}
	}
	g.next++

	delta := g.rng.Int64N(2*g.cfg.PriceRange+1) - g.cfg.PriceRange
	side := orderbook.Sell
	if g.rng.Float64() < g.cfg.BuyRatio {
		side = orderbook.Buy
	}
	return orderbook.Order{
		ID:    uint64(g.next),
		Side:  side,
		Price: max(1, g.cfg.BasePrice+delta),
		Qty:   1 + g.rng.Int64N(g.cfg.MaxQty),
		TsNs:  g.now(),
	}, nil
}

// Remaining is the number of orders still to be generated.
func (g *Generator) Remaining() int { return g.cfg.Count - g.next }
