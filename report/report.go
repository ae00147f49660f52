// Package report writes the end-of-run output: the throughput summary and
// the CSV dumps used for offline visualization.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cockroachdb/errors"

	"tickbook/domain/orderbook"
	"tickbook/snapshot"
)

const (
	TradesFile  = "trades.csv"
	LatencyFile = "latency.csv"
	BookFile    = "book.csv"
)

// WriteSummary prints "Processed N orders in Xs (M msg/s)".
func WriteSummary(w io.Writer, processed int, secs float64) error {
	var rate uint64
	if secs > 0 {
		rate = uint64(float64(processed) / secs)
	}
	_, err := fmt.Fprintf(w, "Processed %d orders in %.6gs (%d msg/s)\n", processed, secs, rate)
	return err
}

// WriteTrades emits one row per fill with its 0-based index in the run.
func WriteTrades(w io.Writer, trades []orderbook.Trade) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"trade_idx", "taker_id", "maker_id", "price", "qty"})
	for i, t := range trades {
		_ = cw.Write([]string{
			strconv.Itoa(i),
			strconv.FormatUint(t.TakerID, 10),
			strconv.FormatUint(t.MakerID, 10),
			strconv.FormatInt(t.Price, 10),
			strconv.FormatInt(t.Qty, 10),
		})
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "write trades")
}

// WriteLatency emits the raw samples in insertion order.
func WriteLatency(w io.Writer, samples []uint64) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"sample_ns"})
	for _, s := range samples {
		_ = cw.Write([]string{strconv.FormatUint(s, 10)})
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "write latency")
}

// Dump writes trades.csv, latency.csv and book.csv into dir, creating it
// when missing.
func Dump(dir string, trades []orderbook.Trade, samples []uint64, book snapshot.Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create dump dir %s", dir)
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{TradesFile, func(w io.Writer) error { return WriteTrades(w, trades) }},
		{LatencyFile, func(w io.Writer) error { return WriteLatency(w, samples) }},
		{BookFile, book.WriteCSV},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), f.write); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return write(f)
}
