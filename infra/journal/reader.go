package journal

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// Reader walks every record of a journal in order.
type Reader struct {
	files   []string
	file    *os.File
	r       *bufio.Reader
	lastSeq uint64
	hdr     [headerSize]byte
}

func OpenReader(dir string) (*Reader, error) {
	files, err := segments(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Newf("journal: no segments in %s", dir)
	}
	return &Reader{files: files}, nil
}

// Next returns the next record, io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	for {
		if r.file == nil {
			if len(r.files) == 0 {
				return Record{}, io.EOF
			}
			if err := r.open(r.files[0]); err != nil {
				return Record{}, err
			}
			r.files = r.files[1:]
		}
		rec, err := r.read()
		if err == io.EOF {
			_ = r.file.Close()
			r.file = nil
			continue
		}
		if err != nil {
			return Record{}, err
		}
		if rec.Seq <= r.lastSeq {
			return Record{}, errors.Wrapf(ErrCorrupt, "non-monotonic seq %d after %d", rec.Seq, r.lastSeq)
		}
		r.lastSeq = rec.Seq
		return rec, nil
	}
}

func (r *Reader) open(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open segment")
	}
	r.file = f
	if r.r == nil {
		r.r = bufio.NewReaderSize(f, 64<<10)
	} else {
		r.r.Reset(f)
	}
	return nil
}

func (r *Reader) read() (Record, error) {
	if _, err := io.ReadFull(r.r, r.hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Record{}, errors.Wrap(ErrCorrupt, "truncated header")
		}
		return Record{}, err
	}
	n := binary.BigEndian.Uint32(r.hdr[17:21])
	if n > maxPayload {
		return Record{}, errors.Wrapf(ErrCorrupt, "record length %d", n)
	}
	body := make([]byte, n+trailerSize)
	if _, err := io.ReadFull(r.r, body); err != nil {
		return Record{}, errors.Wrap(ErrCorrupt, "truncated record")
	}

	payload := body[:n]
	sum := crc32.NewIEEE()
	_, _ = sum.Write(r.hdr[:])
	_, _ = sum.Write(payload)
	if sum.Sum32() != binary.BigEndian.Uint32(body[n:]) {
		return Record{}, errors.Wrap(ErrCorrupt, "crc mismatch")
	}
	return Record{
		Type: RecordType(r.hdr[0]),
		Seq:  binary.BigEndian.Uint64(r.hdr[1:9]),
		Time: binary.BigEndian.Uint64(r.hdr[9:17]),
		Data: payload,
	}, nil
}

func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

// Replay feeds every record of the journal in dir to fn and returns the
// last sequence seen.
func Replay(dir string, fn func(Record) error) (uint64, error) {
	rd, err := OpenReader(dir)
	if err != nil {
		return 0, err
	}
	defer rd.Close()
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return rd.lastSeq, nil
		}
		if err != nil {
			return rd.lastSeq, err
		}
		if err := fn(rec); err != nil {
			return rd.lastSeq, err
		}
	}
}
