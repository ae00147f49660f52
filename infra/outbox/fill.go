package outbox

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/protobuf/encoding/protowire"

	"tickbook/domain/orderbook"
)

// Fill is the event published for every trade. It is encoded in protobuf
// wire format:
//
//	1: seq      (varint)
//	2: taker_id (varint)
//	3: maker_id (varint)
//	4: price    (zigzag varint)
//	5: qty      (zigzag varint)
//	6: ts_ns    (fixed64)
type Fill struct {
	Seq     uint64
	TakerID uint64
	MakerID uint64
	Price   int64
	Qty     int64
	TsNs    uint64
}

const (
	fieldSeq protowire.Number = iota + 1
	fieldTaker
	fieldMaker
	fieldPrice
	fieldQty
	fieldTs
)

func NewFill(seq uint64, t orderbook.Trade, tsNs uint64) Fill {
	return Fill{
		Seq:     seq,
		TakerID: t.TakerID,
		MakerID: t.MakerID,
		Price:   t.Price,
		Qty:     t.Qty,
		TsNs:    tsNs,
	}
}

func (f Fill) Trade() orderbook.Trade {
	return orderbook.Trade{TakerID: f.TakerID, MakerID: f.MakerID, Price: f.Price, Qty: f.Qty}
}

// AppendWire appends the encoded event to b.
func (f Fill) AppendWire(b []byte) []byte {
	b = protowire.AppendTag(b, fieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, f.Seq)
	b = protowire.AppendTag(b, fieldTaker, protowire.VarintType)
	b = protowire.AppendVarint(b, f.TakerID)
	b = protowire.AppendTag(b, fieldMaker, protowire.VarintType)
	b = protowire.AppendVarint(b, f.MakerID)
	b = protowire.AppendTag(b, fieldPrice, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(f.Price))
	b = protowire.AppendTag(b, fieldQty, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(f.Qty))
	b = protowire.AppendTag(b, fieldTs, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, f.TsNs)
	return b
}

// DecodeFill parses an encoded event. Unknown fields are skipped.
func DecodeFill(b []byte) (Fill, error) {
	var f Fill
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Fill{}, errors.Wrap(protowire.ParseError(n), "fill tag")
		}
		b = b[n:]

		switch {
		case typ == protowire.VarintType && num >= fieldSeq && num <= fieldQty:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Fill{}, errors.Wrapf(protowire.ParseError(n), "fill field %d", num)
			}
			b = b[n:]
			switch num {
			case fieldSeq:
				f.Seq = v
			case fieldTaker:
				f.TakerID = v
			case fieldMaker:
				f.MakerID = v
			case fieldPrice:
				f.Price = protowire.DecodeZigZag(v)
			case fieldQty:
				f.Qty = protowire.DecodeZigZag(v)
			}
		case typ == protowire.Fixed64Type && num == fieldTs:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return Fill{}, errors.Wrap(protowire.ParseError(n), "fill ts")
			}
			b = b[n:]
			f.TsNs = v
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Fill{}, errors.Wrapf(protowire.ParseError(n), "fill field %d", num)
			}
			b = b[n:]
		}
	}
	return f, nil
}
