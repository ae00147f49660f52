package outbox

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

// -------------------- Entry --------------------

// Entry is one fill and its delivery state.
type Entry struct {
	State       State
	Retries     uint32
	LastAttempt int64
	Fill        Fill
}

// value layout: [state:1][retries:4][lastAttempt:8][fill (protowire)]
const metaSize = 1 + 4 + 8

func encodeEntry(buf []byte, e Entry) []byte {
	buf = append(buf[:0], byte(e.State))
	buf = binary.BigEndian.AppendUint32(buf, e.Retries)
	buf = binary.BigEndian.AppendUint64(buf, uint64(e.LastAttempt))
	return e.Fill.AppendWire(buf)
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) < metaSize {
		return Entry{}, errors.Newf("outbox: entry of %d bytes", len(b))
	}
	f, err := DecodeFill(b[metaSize:])
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Fill:        f,
	}, nil
}

// -------------------- Outbox --------------------

// ErrNotFound is returned for an unknown fill sequence.
var ErrNotFound = errors.New("outbox: fill not found")

// Outbox persists fills in pebble until a publisher acknowledges them.
// Fills move NEW -> SENT -> ACKED, or to FAILED and back to SENT on retry.
type Outbox struct {
	db   *pebble.DB
	now  func() int64
	buf  []byte
	high uint64 // highest sequence ever stored, survives truncation
}

func Open(dir string) (*Outbox, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "open outbox %s", dir)
	}
	o := &Outbox{
		db:  db,
		now: func() int64 { return time.Now().UnixNano() },
	}
	if o.high, err = o.loadHighWater(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return o, nil
}

func (o *Outbox) loadHighWater() (uint64, error) {
	val, closer, err := o.db.Get([]byte(highWaterKey))
	if errors.Is(err, pebble.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "read high water mark")
	}
	defer closer.Close()
	if len(val) != 8 {
		return 0, errors.Newf("outbox: high water mark of %d bytes", len(val))
	}
	return binary.BigEndian.Uint64(val), nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// PutBatch stores fills as NEW in one synced batch, together with the
// high water mark LastSeq resumes from.
func (o *Outbox) PutBatch(fills []Fill) error {
	if len(fills) == 0 {
		return nil
	}
	b := o.db.NewBatch()
	defer b.Close()
	high := o.high
	for _, f := range fills {
		o.buf = encodeEntry(o.buf, Entry{State: StateNew, Fill: f})
		if err := b.Set(keyFor(f.Seq), o.buf, nil); err != nil {
			return errors.Wrapf(err, "stage fill %d", f.Seq)
		}
		high = max(high, f.Seq)
	}
	var mark [8]byte
	binary.BigEndian.PutUint64(mark[:], high)
	if err := b.Set([]byte(highWaterKey), mark[:], nil); err != nil {
		return errors.Wrap(err, "stage high water mark")
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return errors.Wrap(err, "commit fills")
	}
	o.high = high
	return nil
}

func (o *Outbox) MarkSent(seq uint64) error {
	return o.update(seq, func(e *Entry) { e.State = StateSent })
}

func (o *Outbox) MarkAcked(seq uint64) error {
	return o.update(seq, func(e *Entry) { e.State = StateAcked })
}

// MarkFailed records a failed delivery attempt and bumps the retry count.
func (o *Outbox) MarkFailed(seq uint64) error {
	return o.update(seq, func(e *Entry) {
		e.State = StateFailed
		e.Retries++
	})
}

func (o *Outbox) update(seq uint64, fn func(*Entry)) error {
	e, err := o.Get(seq)
	if err != nil {
		return err
	}
	fn(&e)
	e.LastAttempt = o.now()
	o.buf = encodeEntry(o.buf, e)
	return errors.Wrapf(o.db.Set(keyFor(seq), o.buf, pebble.Sync), "update fill %d", seq)
}

func (o *Outbox) Get(seq uint64) (Entry, error) {
	val, closer, err := o.db.Get(keyFor(seq))
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, errors.Wrapf(ErrNotFound, "seq %d", seq)
	}
	if err != nil {
		return Entry{}, errors.Wrapf(err, "get fill %d", seq)
	}
	defer closer.Close()
	return decodeEntry(val)
}

// -------------------- Scan --------------------

// Scan visits every entry in sequence order until fn returns an error.
func (o *Outbox) Scan(fn func(Entry) error) error {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return errors.Wrap(err, "outbox iterator")
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		e, err := decodeEntry(iter.Value())
		if err != nil {
			return errors.Wrapf(err, "key %s", iter.Key())
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

// ScanByState visits entries in any of the given states.
func (o *Outbox) ScanByState(fn func(Entry) error, states ...State) error {
	var want [4]bool
	for _, s := range states {
		if int(s) < len(want) {
			want[s] = true
		}
	}
	return o.Scan(func(e Entry) error {
		if int(e.State) >= len(want) || !want[e.State] {
			return nil
		}
		return fn(e)
	})
}

// Counts tallies entries per state.
func (o *Outbox) Counts() (map[State]int, error) {
	out := make(map[State]int)
	err := o.Scan(func(e Entry) error {
		out[e.State]++
		return nil
	})
	return out, err
}

// LastSeq is the highest sequence ever stored, including fills already
// truncated. It is 0 for a fresh outbox.
func (o *Outbox) LastSeq() (uint64, error) {
	last, err := o.lastKey()
	return max(last, o.high), err
}

func (o *Outbox) lastKey() (uint64, error) {
	iter, err := o.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyUpper),
	})
	if err != nil {
		return 0, errors.Wrap(err, "outbox iterator")
	}
	defer iter.Close()
	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// TruncateAcked deletes delivered entries and reports how many went.
func (o *Outbox) TruncateAcked() (int, error) {
	b := o.db.NewBatch()
	defer b.Close()
	n := 0
	err := o.ScanByState(func(e Entry) error {
		n++
		return b.Delete(keyFor(e.Fill.Seq), nil)
	}, StateAcked)
	if err != nil || n == 0 {
		return 0, err
	}
	if err := b.Commit(pebble.Sync); err != nil {
		return 0, errors.Wrap(err, "commit truncation")
	}
	return n, nil
}

// -------------------- Helpers --------------------

const (
	keyPrefix    = "fill/"
	keyUpper     = "fill/~"
	highWaterKey = "meta/last_seq"
)

func keyFor(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	s := string(b)
	if len(s) <= len(keyPrefix) || s[:len(keyPrefix)] != keyPrefix {
		return 0, errors.Newf("outbox: bad key %q", s)
	}
	seq, err := strconv.ParseUint(s[len(keyPrefix):], 10, 64)
	return seq, errors.Wrapf(err, "outbox: bad key %q", s)
}
