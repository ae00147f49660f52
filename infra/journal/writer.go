package journal

import (
	"os"

	"github.com/cockroachdb/errors"

	"tickbook/domain/orderbook"
)

const DefaultSegmentSize = 64 << 20

type Config struct {
	Dir         string
	SegmentSize int64
}

// Writer appends order records to size-rotated segment files. It captures
// a run's input so the run can be replayed; it is not used to restore book
// state.
type Writer struct {
	dir      string
	segSize  int64
	current  *segment
	segIndex int
	lastSeq  uint64
	count    int
	buf      []byte
}

// Create starts a journal in cfg.Dir, which must not already hold one.
func Create(cfg Config) (*Writer, error) {
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = DefaultSegmentSize
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "journal dir %s", cfg.Dir)
	}
	existing, err := segments(cfg.Dir)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, errors.Newf("journal: %s already holds %d segments", cfg.Dir, len(existing))
	}

	seg, err := createSegment(cfg.Dir, 0)
	if err != nil {
		return nil, err
	}
	return &Writer{
		dir:     cfg.Dir,
		segSize: cfg.SegmentSize,
		current: seg,
		buf:     make([]byte, 0, headerSize+orderSize+trailerSize),
	}, nil
}

// Append records o. Sequence numbers (order ids) must strictly increase.
func (w *Writer) Append(o orderbook.Order) error {
	return w.write(OrderRecord(o))
}

func (w *Writer) write(r Record) error {
	if r.Seq <= w.lastSeq {
		return errors.Newf("journal: seq %d not after %d", r.Seq, w.lastSeq)
	}
	w.buf = appendFrame(w.buf[:0], r)
	if err := w.current.append(w.buf); err != nil {
		return errors.Wrap(err, "journal append")
	}
	w.lastSeq = r.Seq
	w.count++

	if w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

func (w *Writer) rotate() error {
	if err := w.current.close(); err != nil {
		return errors.Wrap(err, "close segment")
	}
	w.segIndex++
	seg, err := createSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}
	w.current = seg
	return nil
}

// Sync flushes buffered records to stable storage.
func (w *Writer) Sync() error {
	return errors.Wrap(w.current.sync(), "journal sync")
}

func (w *Writer) Close() error {
	return errors.Wrap(w.current.close(), "journal close")
}

func (w *Writer) Count() int      { return w.count }
func (w *Writer) LastSeq() uint64 { return w.lastSeq }
func (w *Writer) Segments() int   { return w.segIndex + 1 }
