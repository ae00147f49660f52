package snapshot

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"

	"tickbook/domain/orderbook"
)

// WriteText renders the human readable dump:
//
//	BIDS (price/qty)
//	  10001 / 40
//	ASKS (price/qty)
//	  10002 / 15
func (s Snapshot) WriteText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	writeSide(bw, "BIDS", s.Bids)
	writeSide(bw, "ASKS", s.Asks)
	return errors.Wrap(bw.Flush(), "write book")
}

func writeSide(w *bufio.Writer, title string, levels []orderbook.LevelView) {
	fmt.Fprintf(w, "%s (price/qty)\n", title)
	for _, l := range levels {
		fmt.Fprintf(w, "  %d / %d\n", l.Price, l.Qty)
	}
}

// WriteCSV emits side,price,total_qty rows, bids then asks.
func (s Snapshot) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"side", "price", "total_qty"})
	for _, side := range []struct {
		tag    string
		levels []orderbook.LevelView
	}{{"BID", s.Bids}, {"ASK", s.Asks}} {
		for _, l := range side.levels {
			_ = cw.Write([]string{
				side.tag,
				strconv.FormatInt(l.Price, 10),
				strconv.FormatInt(l.Qty, 10),
			})
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "write book csv")
}
