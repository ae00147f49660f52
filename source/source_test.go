package source

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tickbook/domain/orderbook"
	"tickbook/infra/clock"
	"tickbook/infra/journal"
)

func collect(t *testing.T, s Source) []orderbook.Order {
	t.Helper()
	var out []orderbook.Order
	for {
		o, err := s.Next(context.Background())
		if err == io.EOF {
			return out
		}
		require.NoError(t, err)
		out = append(out, o)
	}
}

func TestParseTicks(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"100", 10000},
		{"100.00", 10000},
		{"100.25", 10025},
		{"0.50", 50},
		{"100.005", 10001},
		{"100.004", 10000},
		{"-0.015", -2},
		{"1e2", 10000},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTicks(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []string{"", "abc", "1.2.3", "1e400"} {
		_, err := ParseTicks(bad)
		assert.Error(t, err, bad)
	}
}

func TestFormatTicks(t *testing.T) {
	assert.Equal(t, "100.25", FormatTicks(10025))
	assert.Equal(t, "0.05", FormatTicks(5))
}

func TestGeneratorDeterministic(t *testing.T) {
	cfg := DefaultGeneratorConfig()
	cfg.Count = 500
	fake := clock.NewFake(0, 1)

	a := collect(t, NewGenerator(cfg, fake.Now))
	b := collect(t, NewGenerator(cfg, clock.NewFake(0, 1).Now))
	require.Len(t, a, 500)
	assert.Equal(t, a, b)

	buys := 0
	for i, o := range a {
		assert.Equal(t, uint64(i+1), o.ID)
		assert.GreaterOrEqual(t, o.Price, cfg.BasePrice-cfg.PriceRange)
		assert.LessOrEqual(t, o.Price, cfg.BasePrice+cfg.PriceRange)
		assert.GreaterOrEqual(t, o.Qty, int64(1))
		assert.LessOrEqual(t, o.Qty, cfg.MaxQty)
		if o.Side == orderbook.Buy {
			buys++
		}
	}
	assert.InDelta(t, 250, buys, 60)

	cfg.Seed = 2
	c := collect(t, NewGenerator(cfg, clock.NewFake(0, 1).Now))
	assert.NotEqual(t, a, c)
}

func TestGeneratorClampsPrice(t *testing.T) {
	cfg := GeneratorConfig{Count: 200, BasePrice: 2, PriceRange: 10, MaxQty: 0, Seed: 7, BuyRatio: 1}
	for _, o := range collect(t, NewGenerator(cfg, nil)) {
		assert.GreaterOrEqual(t, o.Price, int64(1))
		assert.Equal(t, int64(1), o.Qty)
		assert.Equal(t, orderbook.Buy, o.Side)
	}
}

func TestGeneratorHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGenerator(DefaultGeneratorConfig(), nil).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLineReader(t *testing.T) {
	in := "B 100.00 10\n\n  \nSELL 100.50 5 trailing\nbuy 99 1\n"
	got := collect(t, NewLineReader(strings.NewReader(in), clock.NewFake(10, 10).Now))
	assert.Equal(t, []orderbook.Order{
		{Side: orderbook.Buy, Price: 10000, Qty: 10, TsNs: 10},
		{Side: orderbook.Sell, Price: 10050, Qty: 5, TsNs: 20},
		{Side: orderbook.Buy, Price: 9900, Qty: 1, TsNs: 30},
	}, got)
}

func TestLineReaderInvalid(t *testing.T) {
	cases := []string{
		"X 100 1",
		"B abc 1",
		"B 100",
		"B 100 1.5",
		"bUY 100 1",
	}
	for _, line := range cases {
		t.Run(line, func(t *testing.T) {
			r := NewLineReader(strings.NewReader("B 1 1\n"+line+"\n"), nil)
			_, err := r.Next(context.Background())
			require.NoError(t, err)

			_, err = r.Next(context.Background())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidLine))
			assert.Contains(t, err.Error(), "line 2")
		})
	}
}

func TestJournalSourceReplays(t *testing.T) {
	dir := t.TempDir()
	w, err := journal.Create(journal.Config{Dir: dir})
	require.NoError(t, err)

	cfg := DefaultGeneratorConfig()
	cfg.Count = 50
	want := collect(t, NewGenerator(cfg, clock.NewFake(0, 3).Now))
	for _, o := range want {
		require.NoError(t, w.Append(o))
	}
	require.NoError(t, w.Close())

	src, err := OpenJournal(dir)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, want, collect(t, src))
}
