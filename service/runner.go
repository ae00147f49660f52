package service

import (
	"context"
	"io"
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"tickbook/domain/orderbook"
	"tickbook/infra/memory"
	"tickbook/infra/sequence"
	"tickbook/source"
)

// OrderRecorder captures every order before it reaches the engine.
type OrderRecorder interface {
	Append(o orderbook.Order) error
}

// BookGauge receives periodic book shape snapshots.
type BookGauge interface {
	SetBook(s orderbook.BookStats)
}

const defaultGaugeEvery = 4096

type RunnerConfig struct {
	// KeepTrades retains every fill for the whole run; otherwise the trade
	// buffer is cleared after each order.
	KeepTrades bool
	Journal    OrderRecorder
	Fills      *memory.Ring[orderbook.Trade]
	Gauge      BookGauge
	GaugeEvery int
}

// RunStats is the outcome of one Runner.Run.
type RunStats struct {
	Processed int
	Fills     int
	Trades    []orderbook.Trade // only with KeepTrades
	Elapsed   time.Duration
}

// Throughput is orders per second, 0 for an instantaneous run.
func (s RunStats) Throughput() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.Processed) / secs
}

type Runner struct {
	proc Processor
	src  source.Source
	cfg  RunnerConfig
	ids  *sequence.Sequencer
	log  *zap.Logger
}

func NewRunner(proc Processor, src source.Source, cfg RunnerConfig, log *zap.Logger) *Runner {
	if cfg.GaugeEvery <= 0 {
		cfg.GaugeEvery = defaultGaugeEvery
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		proc: proc,
		src:  src,
		cfg:  cfg,
		ids:  sequence.New(0),
		log:  log,
	}
}

// Run drains the source through the processor until io.EOF, a source or
// journal error, or ctx cancellation. Orders without an id get the next
// sequence number, which is processed+1 when the source never sets ids.
func (r *Runner) Run(ctx context.Context) (stats RunStats, err error) {
	trades := make([]orderbook.Trade, 0, 64)
	start := time.Now()
	defer func() {
		stats.Elapsed = time.Since(start)
		if r.cfg.KeepTrades {
			stats.Trades = trades
		}
		r.publishGauge()
	}()

	for {
		var o orderbook.Order
		o, err = r.src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, errors.Wrapf(err, "after %d orders", stats.Processed)
		}
		if o.ID == 0 {
			o.ID = r.ids.Next()
		} else {
			r.ids.Reset(max(o.ID, r.ids.Current()))
		}
		if r.cfg.Journal != nil {
			if err := r.cfg.Journal.Append(o); err != nil {
				return stats, errors.Wrapf(err, "journal order %d", o.ID)
			}
		}

		n := len(trades)
		trades = r.proc.Process(o, trades)
		stats.Processed++
		stats.Fills += len(trades) - n

		if r.cfg.Fills != nil {
			if err := r.handOff(ctx, trades[n:]); err != nil {
				return stats, err
			}
		}
		if !r.cfg.KeepTrades {
			trades = trades[:0]
		}
		if stats.Processed%r.cfg.GaugeEvery == 0 {
			r.publishGauge()
		}
	}

	r.log.Debug("run finished",
		zap.Int("processed", stats.Processed),
		zap.Int("fills", stats.Fills),
	)
	return stats, nil
}

// handOff pushes fills onto the ring, spinning while the consumer catches up.
func (r *Runner) handOff(ctx context.Context, fills []orderbook.Trade) error {
	for _, t := range fills {
		for !r.cfg.Fills.Enqueue(t) {
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "fill ring full")
			}
			runtime.Gosched()
		}
	}
	return nil
}

func (r *Runner) publishGauge() {
	if r.cfg.Gauge != nil {
		r.cfg.Gauge.SetBook(r.proc.Stats())
	}
}
