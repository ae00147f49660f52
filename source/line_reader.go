package source

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"tickbook/domain/orderbook"
	"tickbook/infra/clock"
)

// ErrInvalidLine marks an input line that is not "SIDE PRICE QTY".
var ErrInvalidLine = errors.New("invalid order line")

// LineReader parses one order per line of text. Blank lines are skipped and
// fields after QTY are ignored. Ids are left for the runner to assign.
type LineReader struct {
	sc   *bufio.Scanner
	now  clock.Clock
	line int
}

func NewLineReader(r io.Reader, now clock.Clock) *LineReader {
	if now == nil {
		now = clock.Monotonic
	}
	return &LineReader{sc: bufio.NewScanner(r), now: now}
}

func (l *LineReader) Next(ctx context.Context) (orderbook.Order, error) {
	for l.sc.Scan() {
		l.line++
		text := l.sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return orderbook.Order{}, err
		}
		o, err := ParseLine(text)
		if err != nil {
			return orderbook.Order{}, errors.Wrapf(err, "line %d", l.line)
		}
		o.TsNs = l.now()
		return o, nil
	}
	if err := l.sc.Err(); err != nil {
		return orderbook.Order{}, errors.Wrap(err, "read orders")
	}
	return orderbook.Order{}, io.EOF
}

// ParseLine decodes "SIDE PRICE QTY". Errors wrap ErrInvalidLine and quote
// the offending text.
func ParseLine(text string) (orderbook.Order, error) {
	f := strings.Fields(text)
	if len(f) < 3 {
		return orderbook.Order{}, errors.Wrapf(ErrInvalidLine, "%q", text)
	}
	side, ok := orderbook.ParseSide(f[0])
	if !ok {
		return orderbook.Order{}, errors.Wrapf(ErrInvalidLine, "%q: side %q", text, f[0])
	}
	price, err := ParseTicks(f[1])
	if err != nil {
		return orderbook.Order{}, errors.Wrapf(ErrInvalidLine, "%q: %v", text, err)
	}
	qty, err := strconv.ParseInt(f[2], 10, 64)
	if err != nil {
		return orderbook.Order{}, errors.Wrapf(ErrInvalidLine, "%q: qty %q", text, f[2])
	}
	return orderbook.Order{Side: side, Price: price, Qty: qty}, nil
}
