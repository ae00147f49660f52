package journal

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/cockroachdb/errors"

	"tickbook/domain/orderbook"
)

type RecordType uint8

const (
	RecordOrder RecordType = iota + 1
)

// Frame layout, big endian:
// [type:1][seq:8][time:8][len:4][payload][crc:4]
// The CRC covers header and payload.
const (
	headerSize  = 21
	trailerSize = 4
	orderSize   = 17 // [side:1][price:8][qty:8]
	maxPayload  = 1 << 10
)

type Record struct {
	Type RecordType
	Seq  uint64
	Time uint64
	Data []byte
}

// ErrCorrupt marks a frame that fails its checksum or is cut short.
var ErrCorrupt = errors.New("journal: corrupt record")

func appendFrame(buf []byte, r Record) []byte {
	start := len(buf)
	var hdr [headerSize]byte
	hdr[0] = byte(r.Type)
	binary.BigEndian.PutUint64(hdr[1:9], r.Seq)
	binary.BigEndian.PutUint64(hdr[9:17], r.Time)
	binary.BigEndian.PutUint32(hdr[17:21], uint32(len(r.Data)))
	buf = append(buf, hdr[:]...)
	buf = append(buf, r.Data...)
	return binary.BigEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf[start:]))
}

// OrderRecord frames an order. The order id is the record sequence.
func OrderRecord(o orderbook.Order) Record {
	data := make([]byte, orderSize)
	data[0] = byte(o.Side)
	binary.BigEndian.PutUint64(data[1:9], uint64(o.Price))
	binary.BigEndian.PutUint64(data[9:17], uint64(o.Qty))
	return Record{Type: RecordOrder, Seq: o.ID, Time: o.TsNs, Data: data}
}

// Order decodes an order record.
func (r Record) Order() (orderbook.Order, error) {
	if r.Type != RecordOrder || len(r.Data) != orderSize {
		return orderbook.Order{}, errors.Wrapf(ErrCorrupt, "seq %d: not an order record", r.Seq)
	}
	side := orderbook.Side(r.Data[0])
	if side != orderbook.Buy && side != orderbook.Sell {
		return orderbook.Order{}, errors.Wrapf(ErrCorrupt, "seq %d: side %d", r.Seq, side)
	}
	return orderbook.Order{
		ID:    r.Seq,
		Side:  side,
		Price: int64(binary.BigEndian.Uint64(r.Data[1:9])),
		Qty:   int64(binary.BigEndian.Uint64(r.Data[9:17])),
		TsNs:  r.Time,
	}, nil
}
