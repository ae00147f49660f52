// Command tickbook runs the matching engine over a simulated, stdin or
// replayed order flow and reports throughput, latency and book state.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tickbook/config"
	"tickbook/domain/orderbook"
	"tickbook/infra/clock"
	"tickbook/infra/journal"
	"tickbook/infra/kafka"
	"tickbook/infra/logger"
	"tickbook/infra/memory"
	"tickbook/infra/metrics"
	"tickbook/infra/outbox"
	"tickbook/jobs/broadcaster"
	"tickbook/report"
	"tickbook/service"
	"tickbook/snapshot"
	"tickbook/source"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	if err != nil {
		if errors.Is(err, config.ErrHelp) {
			config.Usage(os.Stdout)
		} else {
			fmt.Fprintf(os.Stderr, "tickbook: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (err error) {
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}

	log, err := logger.NewWithWriter(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return errors.Wrapf(config.ErrInvalid, "%v", err)
	}
	defer func() { _ = log.Sync() }()

	// ---------------- Book & Engine ----------------

	book := orderbook.New(
		orderbook.WithLadder(cfg.Ladder),
		orderbook.WithBlockSize(cfg.PoolBlock),
	)
	latency := metrics.NewLatencyStats(0)
	var engineOpts []service.EngineOption
	runCfg := service.RunnerConfig{KeepTrades: cfg.KeepTrades}

	// ---------------- Metrics ----------------

	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		m := metrics.NewEngineMetrics(reg)
		engineOpts = append(engineOpts, service.WithRecorder(m))
		runCfg.Gauge = m

		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shut, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shut)
		}()
		log.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
	}

	engine := service.NewMatchingEngine(book, latency, engineOpts...)

	// ---------------- Source ----------------

	var src source.Source
	switch cfg.Source() {
	case "replay":
		js, jerr := source.OpenJournal(cfg.Replay)
		if jerr != nil {
			return jerr
		}
		defer js.Close()
		src = js
	case "stdin":
		src = source.NewLineReader(stdin, clock.Monotonic)
	default:
		latency.Reserve(cfg.Simulate)
		src = source.NewGenerator(cfg.Generator(), clock.Monotonic)
	}

	// ---------------- Input Journal ----------------

	if cfg.Record != "" {
		w, jerr := journal.Create(journal.Config{Dir: cfg.Record})
		if jerr != nil {
			return jerr
		}
		defer func() {
			if cerr := w.Close(); err == nil {
				err = errors.Wrap(cerr, "close journal")
			}
		}()
		runCfg.Journal = w
	}

	// ---------------- Fill Feed ----------------

	if cfg.Feed.Enabled {
		stopFeed, ferr := startFeed(ctx, cfg.Feed, &runCfg, log)
		if ferr != nil {
			return ferr
		}
		defer func() {
			if ferr := stopFeed(); err == nil {
				err = ferr
			}
		}()
	}

	// ---------------- Run ----------------

	log.Info("run starting",
		zap.String("source", cfg.Source()),
		zap.String("ladder", string(cfg.Ladder)),
		zap.Bool("keep_trades", cfg.KeepTrades),
	)
	stats, err := service.NewRunner(engine, src, runCfg, log).Run(ctx)
	if err != nil {
		return err
	}

	// ---------------- Report ----------------

	if err := report.WriteSummary(stdout, stats.Processed, stats.Elapsed.Seconds()); err != nil {
		return err
	}
	fmt.Fprintln(stdout, latency.Report())

	if cfg.PrintBook {
		if err := snapshot.Take(book, cfg.BookDepth).WriteText(stdout); err != nil {
			return err
		}
	}
	if cfg.DumpData != "" {
		if err := report.Dump(cfg.DumpData, stats.Trades, latency.Samples(), snapshot.Take(book, 0)); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Data dumped to %s/\n", cfg.DumpData)
	}

	bs := book.Stats()
	log.Info("run finished",
		zap.Int("processed", stats.Processed),
		zap.Int("fills", stats.Fills),
		zap.Int("resting", bs.Resting),
		zap.Int("pool_capacity", bs.PoolCapacity),
	)
	return nil
}

// startFeed wires the fill ring, outbox and publisher and starts the
// broadcaster. The returned func stops it after a final flush and releases
// everything it opened.
func startFeed(ctx context.Context, fc config.FeedConfig, runCfg *service.RunnerConfig, log *zap.Logger) (func() error, error) {
	box, err := outbox.Open(fc.OutboxDir)
	if err != nil {
		return nil, err
	}
	pub, err := kafka.New(fc.Client, fc.Brokers, fc.Topic)
	if err != nil {
		_ = box.Close()
		return nil, err
	}
	ring := memory.NewRing[orderbook.Trade](fc.RingSize)
	bc, err := broadcaster.New(broadcaster.Config{
		Interval:   fc.Interval,
		MaxRetries: fc.MaxRetries,
	}, ring, box, pub, log.Named("broadcaster"))
	if err != nil {
		_ = pub.Close()
		_ = box.Close()
		return nil, err
	}
	runCfg.Fills = ring

	feedCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- bc.Run(feedCtx) }()

	return func() error {
		cancel()
		err := <-done
		if perr := pub.Close(); err == nil {
			err = errors.Wrap(perr, "close publisher")
		}
		if berr := box.Close(); err == nil {
			err = berr
		}
		return err
	}, nil
}
