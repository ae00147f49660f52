package broadcaster

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"tickbook/domain/orderbook"
	"tickbook/infra/clock"
	"tickbook/infra/kafka"
	"tickbook/infra/memory"
	"tickbook/infra/outbox"
	"tickbook/infra/sequence"
)

const (
	DefaultInterval   = 250 * time.Millisecond
	DefaultMaxRetries = 5
	drainBatch        = 1024
)

type Config struct {
	Interval   time.Duration
	MaxRetries uint32
}

// Store is the durable side of the feed, implemented by *outbox.Outbox.
type Store interface {
	PutBatch(fills []outbox.Fill) error
	MarkSent(seq uint64) error
	MarkAcked(seq uint64) error
	MarkFailed(seq uint64) error
	ScanByState(fn func(outbox.Entry) error, states ...outbox.State) error
	TruncateAcked() (int, error)
	LastSeq() (uint64, error)
}

// Broadcaster moves fills off the matching thread: it drains the fill ring
// into the outbox, then relays pending outbox entries to the publisher.
// It is the ring's only consumer.
type Broadcaster struct {
	ring *memory.Ring[orderbook.Trade]
	box  Store
	pub  kafka.Publisher
	seq  *sequence.Sequencer
	cfg  Config
	now  clock.Clock
	log  *zap.Logger

	batch   []outbox.Fill
	unsaved bool // batch was dequeued but PutBatch failed
	pending []outbox.Entry
	key     []byte
	value   []byte
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

// New resumes fill numbering after the highest sequence already in box.
func New(cfg Config, ring *memory.Ring[orderbook.Trade], box Store, pub kafka.Publisher, log *zap.Logger) (*Broadcaster, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if log == nil {
		log = zap.NewNop()
	}
	last, err := box.LastSeq()
	if err != nil {
		return nil, errors.Wrap(err, "resume fill sequence")
	}
	return &Broadcaster{
		ring:  ring,
		box:   box,
		pub:   pub,
		seq:   sequence.New(last),
		cfg:   cfg,
		now:   clock.Monotonic,
		log:   log,
		batch: make([]outbox.Fill, 0, drainBatch),
	}, nil
}

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run flushes every interval until ctx ends, then flushes once more so fills
// already handed off are persisted.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.log.Info("broadcaster started", zap.Duration("interval", b.cfg.Interval))
	t := time.NewTicker(b.cfg.Interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := b.Flush(final)
			b.log.Info("broadcaster stopped", zap.Uint64("last_seq", b.seq.Current()), zap.Error(err))
			return err
		case <-t.C:
			if err := b.Flush(ctx); err != nil && ctx.Err() == nil {
				b.log.Warn("broadcast flush failed", zap.Error(err))
			}
		}
	}
}

// Flush drains the ring, relays pending entries and drops acknowledged ones.
func (b *Broadcaster) Flush(ctx context.Context) error {
	if _, err := b.Drain(); err != nil {
		return err
	}
	if _, err := b.Relay(ctx); err != nil {
		return err
	}
	_, err := b.box.TruncateAcked()
	return err
}

// ------------------------------------------------
// DRAIN: ring -> outbox
// ------------------------------------------------

// Drain persists every fill currently in the ring as NEW. A batch whose
// write failed keeps its sequence numbers and is written first next time.
func (b *Broadcaster) Drain() (int, error) {
	total := 0
	for {
		if !b.unsaved {
			b.batch = b.batch[:0]
			for len(b.batch) < cap(b.batch) {
				t, ok := b.ring.Dequeue()
				if !ok {
					break
				}
				b.batch = append(b.batch, outbox.NewFill(b.seq.Next(), t, b.now()))
			}
		}
		if len(b.batch) == 0 {
			return total, nil
		}
		if err := b.box.PutBatch(b.batch); err != nil {
			b.unsaved = true
			return total, errors.Wrapf(err, "persist %d fills", len(b.batch))
		}
		b.unsaved = false
		total += len(b.batch)
	}
}

// ------------------------------------------------
// RELAY: outbox -> publisher
// ------------------------------------------------

// Relay publishes NEW entries, entries left SENT by an earlier crash, and
// FAILED entries under the retry limit. It returns how many were acked.
func (b *Broadcaster) Relay(ctx context.Context) (int, error) {
	b.pending = b.pending[:0]
	err := b.box.ScanByState(func(e outbox.Entry) error {
		if e.State == outbox.StateFailed && e.Retries >= b.cfg.MaxRetries {
			return nil
		}
		b.pending = append(b.pending, e)
		return nil
	}, outbox.StateNew, outbox.StateSent, outbox.StateFailed)
	if err != nil {
		return 0, err
	}

	acked := 0
	for _, e := range b.pending {
		if err := ctx.Err(); err != nil {
			return acked, err
		}
		seq := e.Fill.Seq

		// 1. mark SENT
		if err := b.box.MarkSent(seq); err != nil {
			return acked, err
		}

		// 2. publish
		b.key = strconv.AppendUint(b.key[:0], seq, 10)
		b.value = e.Fill.AppendWire(b.value[:0])
		if err := b.pub.Publish(ctx, b.key, b.value); err != nil {
			b.log.Warn("publish fill failed",
				zap.Uint64("seq", seq),
				zap.Uint32("retries", e.Retries+1),
				zap.Error(err),
			)
			if err := b.box.MarkFailed(seq); err != nil {
				return acked, err
			}
			continue
		}

		// 3. mark ACKED
		if err := b.box.MarkAcked(seq); err != nil {
			return acked, err
		}
		acked++
	}
	return acked, nil
}

// LastSeq is the sequence of the most recently drained fill.
func (b *Broadcaster) LastSeq() uint64 { return b.seq.Current() }
