// Package source produces the orders a run feeds into the engine: a seeded
// synthetic generator, a text line reader and a journal replayer.
package source

import (
	"context"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"tickbook/domain/orderbook"
)

// Source yields orders one at a time. Next returns io.EOF once exhausted.
type Source interface {
	Next(ctx context.Context) (orderbook.Order, error)
}

// TicksPerUnit is the number of price ticks in one unit of quoted price.
const TicksPerUnit = 100

var (
	hundred  = decimal.NewFromInt(TicksPerUnit)
	maxTicks = decimal.NewFromInt(math.MaxInt64)
	minTicks = decimal.NewFromInt(math.MinInt64)
)

// ParseTicks converts a decimal price such as "100.25" into integer ticks,
// rounding half away from zero.
func ParseTicks(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.Wrapf(err, "price %q", s)
	}
	t := d.Mul(hundred).Round(0)
	if t.GreaterThan(maxTicks) || t.LessThan(minTicks) {
		return 0, errors.Newf("price %q out of range", s)
	}
	return t.IntPart(), nil
}

// FormatTicks renders ticks as a decimal price with two places.
func FormatTicks(t int64) string {
	return decimal.New(t, -2).StringFixed(2)
}
