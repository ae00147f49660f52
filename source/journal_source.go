package source

import (
	"context"

	"tickbook/domain/orderbook"
	"tickbook/infra/journal"
)

// JournalSource replays the orders captured by a journal.Writer, ids and
// timestamps included.
type JournalSource struct {
	rd *journal.Reader
}

func OpenJournal(dir string) (*JournalSource, error) {
	rd, err := journal.OpenReader(dir)
	if err != nil {
		return nil, err
	}
	return &JournalSource{rd: rd}, nil
}

func (j *JournalSource) Next(ctx context.Context) (orderbook.Order, error) {
	if err := ctx.Err(); err != nil {
		return orderbook.Order{}, err
	}
	rec, err := j.rd.Next()
	if err != nil {
		return orderbook.Order{}, err
	}
	return rec.Order()
}

func (j *JournalSource) Close() error { return j.rd.Close() }
