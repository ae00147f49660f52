// Package config resolves run configuration from flags, TICKBOOK_* env
// vars, an optional YAML file and defaults, in that order of precedence.
package config

import (
	"io"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tickbook/domain/orderbook"
	"tickbook/infra/kafka"
	"tickbook/infra/memory"
	"tickbook/source"
)

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("invalid configuration")
	// ErrHelp is returned when usage was requested.
	ErrHelp = errors.New("help requested")
)

const EnvPrefix = "TICKBOOK"

type Config struct {
	Simulate   int
	Stdin      bool
	BasePrice  int64 // ticks
	PriceRange int64 // ticks
	MaxQty     int64
	BuyRatio   float64
	Seed       uint64
	KeepTrades bool
	PrintBook  bool
	BookDepth  int
	DumpData   string

	Ladder    orderbook.LadderKind
	PoolBlock int
	Record    string
	Replay    string

	Log         LogConfig
	MetricsAddr string
	Feed        FeedConfig
}

type LogConfig struct {
	Level  string
	Format string
}

// FeedConfig controls the fill outbox and its Kafka relay.
type FeedConfig struct {
	Enabled    bool
	OutboxDir  string
	Brokers    []string
	Topic      string
	Client     string
	RingSize   int
	Interval   time.Duration
	MaxRetries uint32
}

// flag name -> viper key
var keys = map[string]string{
	"simulate":         "simulate",
	"stdin":            "stdin",
	"base":             "base",
	"range":            "range",
	"max-qty":          "max_qty",
	"buy-ratio":        "buy_ratio",
	"seed":             "seed",
	"keep-trades":      "keep_trades",
	"print-book":       "print_book",
	"book-depth":       "book_depth",
	"dump-data":        "dump_data",
	"ladder":           "ladder",
	"pool-block":       "pool_block",
	"record":           "record",
	"replay":           "replay",
	"log-level":        "log.level",
	"log-format":       "log.format",
	"metrics-addr":     "metrics_addr",
	"feed":             "feed.enabled",
	"feed-outbox":      "feed.outbox_dir",
	"feed-brokers":     "feed.brokers",
	"feed-topic":       "feed.topic",
	"feed-client":      "feed.client",
	"feed-ring-size":   "feed.ring_size",
	"feed-interval":    "feed.interval",
	"feed-max-retries": "feed.max_retries",
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("tickbook", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.SetOutput(io.Discard)
	fs.Usage = func() {}

	fs.Int("simulate", 100000, "Number of simulated orders")
	fs.Bool("stdin", false, "Read orders from stdin: SIDE PRICE QTY")
	fs.String("base", "100.00", "Base price")
	fs.String("range", "0.50", "Max price delta")
	fs.Int64("max-qty", 100, "Max quantity per order")
	fs.Float64("buy-ratio", 0.5, "Buy ratio 0-1")
	fs.Uint64("seed", 1, "RNG seed")
	fs.Bool("keep-trades", false, "Retain all trades in memory")
	fs.Bool("print-book", false, "Print top of book after run")
	fs.Int("book-depth", 10, "Depth for book print")
	fs.String("dump-data", "", "Dump CSV data to `DIR` for visualization")
	fs.String("ladder", string(orderbook.LadderRBTree), "Price index: rbtree or btree")
	fs.Int("pool-block", memory.DefaultBlockSize, "Order pool block size")
	fs.String("record", "", "Journal every input order to `DIR`")
	fs.String("replay", "", "Replay orders from the journal in `DIR`")
	fs.String("log-level", "info", "Log level")
	fs.String("log-format", "console", "Log format: console or json")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on `ADDR`")
	fs.Bool("feed", false, "Persist fills to the outbox and relay them to Kafka")
	fs.String("feed-outbox", "", "Fill outbox `DIR`")
	fs.StringSlice("feed-brokers", nil, "Kafka brokers")
	fs.String("feed-topic", "fills", "Kafka topic for fills")
	fs.String("feed-client", kafka.ClientSarama, "Kafka client: sarama or kafka-go")
	fs.Int("feed-ring-size", 1<<16, "Fill ring capacity, a power of two")
	fs.Duration("feed-interval", 250*time.Millisecond, "Relay interval")
	fs.Uint32("feed-max-retries", 5, "Delivery attempts per fill")
	fs.String("config", "", "YAML config `FILE`")
	fs.BoolP("help", "h", false, "Show this help")
	return fs
}

// Usage writes the help text.
func Usage(w io.Writer) {
	_, _ = io.WriteString(w, "Low-Latency Limit Order Book & Matching Engine\n"+
		"Usage:\n"+
		"  tickbook --simulate N [options]\n"+
		"  tickbook --stdin [options]\n"+
		"  tickbook --replay DIR [options]\n\n"+
		"Options:\n")
	_, _ = io.WriteString(w, newFlagSet().FlagUsages())
}

// Load parses args (without the program name) and returns a validated
// Config.
func Load(args []string) (*Config, error) {
	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, ErrHelp
		}
		return nil, errors.Wrapf(ErrInvalid, "%v", err)
	}
	if help, _ := fs.GetBool("help"); help {
		return nil, ErrHelp
	}
	if fs.NArg() > 0 {
		return nil, errors.Wrapf(ErrInvalid, "unexpected argument %q", fs.Arg(0))
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for flag, key := range keys {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, errors.Wrapf(err, "bind %s", flag)
		}
	}
	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	c := &Config{
		Simulate:   v.GetInt("simulate"),
		Stdin:      v.GetBool("stdin"),
		MaxQty:     v.GetInt64("max_qty"),
		BuyRatio:   v.GetFloat64("buy_ratio"),
		Seed:       v.GetUint64("seed"),
		KeepTrades: v.GetBool("keep_trades"),
		PrintBook:  v.GetBool("print_book"),
		BookDepth:  v.GetInt("book_depth"),
		DumpData:   v.GetString("dump_data"),
		PoolBlock:  v.GetInt("pool_block"),
		Record:     v.GetString("record"),
		Replay:     v.GetString("replay"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		MetricsAddr: v.GetString("metrics_addr"),
		Feed: FeedConfig{
			Enabled:    v.GetBool("feed.enabled"),
			OutboxDir:  v.GetString("feed.outbox_dir"),
			Brokers:    splitList(v.GetStringSlice("feed.brokers")),
			Topic:      v.GetString("feed.topic"),
			Client:     v.GetString("feed.client"),
			RingSize:   v.GetInt("feed.ring_size"),
			Interval:   v.GetDuration("feed.interval"),
			MaxRetries: v.GetUint32("feed.max_retries"),
		},
	}

	var err error
	if c.BasePrice, err = source.ParseTicks(v.GetString("base")); err != nil {
		return nil, errors.Wrapf(ErrInvalid, "base: %v", err)
	}
	if c.PriceRange, err = source.ParseTicks(v.GetString("range")); err != nil {
		return nil, errors.Wrapf(ErrInvalid, "range: %v", err)
	}
	if c.Ladder, err = orderbook.ParseLadderKind(v.GetString("ladder")); err != nil {
		return nil, errors.Wrapf(ErrInvalid, "%v", err)
	}
	if c.DumpData != "" {
		c.KeepTrades = true
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// splitList accepts both repeated values and a single comma separated
// string, which is how lists arrive from the environment.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c *Config) Validate() error {
	switch {
	case c.Simulate < 0:
		return errors.Wrapf(ErrInvalid, "simulate must be >= 0, got %d", c.Simulate)
	case c.MaxQty < 1:
		return errors.Wrapf(ErrInvalid, "max-qty must be >= 1, got %d", c.MaxQty)
	case c.BuyRatio < 0 || c.BuyRatio > 1:
		return errors.Wrapf(ErrInvalid, "buy-ratio must be within [0, 1], got %g", c.BuyRatio)
	case c.PriceRange < 0:
		return errors.Wrapf(ErrInvalid, "range must not be negative")
	case c.BookDepth < 1:
		return errors.Wrapf(ErrInvalid, "book-depth must be >= 1, got %d", c.BookDepth)
	case c.PoolBlock < 1:
		return errors.Wrapf(ErrInvalid, "pool-block must be >= 1, got %d", c.PoolBlock)
	case c.Stdin && c.Replay != "":
		return errors.Wrapf(ErrInvalid, "stdin and replay are mutually exclusive")
	case c.Record != "" && c.Record == c.Replay:
		return errors.Wrapf(ErrInvalid, "record and replay must use different directories")
	}
	if c.Feed.Enabled {
		f := c.Feed
		switch {
		case f.OutboxDir == "":
			return errors.Wrapf(ErrInvalid, "feed-outbox is required with feed")
		case len(f.Brokers) == 0:
			return errors.Wrapf(ErrInvalid, "feed-brokers is required with feed")
		case f.Topic == "":
			return errors.Wrapf(ErrInvalid, "feed-topic is required with feed")
		case f.Client != kafka.ClientSarama && f.Client != kafka.ClientKafkaGo:
			return errors.Wrapf(ErrInvalid, "feed-client %q", f.Client)
		case f.RingSize < 2 || f.RingSize&(f.RingSize-1) != 0:
			return errors.Wrapf(ErrInvalid, "feed-ring-size must be a power of two, got %d", f.RingSize)
		case f.Interval <= 0:
			return errors.Wrapf(ErrInvalid, "feed-interval must be positive")
		}
	}
	return nil
}

// Source names the order source the config selects.
func (c *Config) Source() string {
	switch {
	case c.Replay != "":
		return "replay"
	case c.Stdin:
		return "stdin"
	default:
		return "simulate"
	}
}

// Generator derives the synthetic flow settings.
func (c *Config) Generator() source.GeneratorConfig {
	return source.GeneratorConfig{
		Count:      c.Simulate,
		BasePrice:  c.BasePrice,
		PriceRange: c.PriceRange,
		MaxQty:     c.MaxQty,
		Seed:       c.Seed,
		BuyRatio:   c.BuyRatio,
	}
}
