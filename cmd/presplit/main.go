// Command presplit pre-splits the chunks of upcoming days of a sharded
// collection across its shards.
//
// It is meant to run once a day from cron:
//
//	presplit -config /etc/presplit/events.yaml                 # tomorrow
//	presplit -config events.yaml -date 2024-01-01              # one day
//	presplit -config events.yaml -from 2024-01-01 -to 2024-01-07
//
// Days already processed are skipped, so reruns are safe.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/arloliu/presplit"
	"github.com/arloliu/presplit/balancer"
	"github.com/arloliu/presplit/catalog"
	"github.com/arloliu/presplit/internal/logging"
	"github.com/arloliu/presplit/internal/metrics"
	"github.com/arloliu/presplit/marker"
	"github.com/arloliu/presplit/types"
)

// cliFlags holds parsed command line flags.
type cliFlags struct {
	configPath string
	date       string
	from       string
	to         string
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stderr)
	stop()

	if err != nil {
		log.Fatalf("presplit: %v", err)
	}
}

func parseFlags(args []string, out io.Writer) (cliFlags, error) {
	var f cliFlags

	fs := flag.NewFlagSet("presplit", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringVar(&f.configPath, "config", "presplit.yaml", "Path to configuration file")
	fs.StringVar(&f.date, "date", "", "Day to pre-split (YYYY-MM-DD); default is tomorrow")
	fs.StringVar(&f.from, "from", "", "First day of a range to pre-split (YYYY-MM-DD)")
	fs.StringVar(&f.to, "to", "", "Last day of a range to pre-split, inclusive (YYYY-MM-DD)")
	fs.StringVar(&f.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return f, err
	}

	if f.date != "" && (f.from != "" || f.to != "") {
		return f, errors.New("-date cannot be combined with -from/-to")
	}
	if (f.from == "") != (f.to == "") {
		return f, errors.New("-from and -to must be given together")
	}

	return f, nil
}

// resolveDays returns the first and last day to process.
func resolveDays(f cliFlags, loc *time.Location, now time.Time) (time.Time, time.Time, error) {
	parse := func(name, value string) (time.Time, error) {
		t, err := time.ParseInLocation(time.DateOnly, value, loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("-%s: %w", name, err)
		}

		return t, nil
	}

	switch {
	case f.date != "":
		day, err := parse("date", f.date)
		return day, day, err
	case f.from != "":
		from, err := parse("from", f.from)
		if err != nil {
			return from, from, err
		}
		to, err := parse("to", f.to)

		return from, to, err
	default:
		local := now.In(loc)
		tomorrow := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, loc)

		return tomorrow, tomorrow, nil
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	f, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := presplit.LoadConfig(f.configPath)
	if err != nil {
		return err
	}

	logger, err := logging.NewText(stderr, f.logLevel)
	if err != nil {
		return err
	}
	logger = logger.With("namespace", cfg.Namespace)

	from, to, err := resolveDays(f, cfg.Location(), time.Now())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.OperationTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return fmt.Errorf("connect to mongo: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Warn("mongo disconnect failed", "error", err)
		}
	}()

	store, closeStore, err := openMarkers(ctx, cfg, client, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("closing marker store failed", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	collector := metrics.NewPrometheus(reg, "presplit")

	cat := catalog.NewMongo(client,
		catalog.WithConfigDatabase(cfg.Mongo.ConfigDatabase),
		catalog.WithCountMovedDocuments(cfg.Mongo.CountMovedDocuments),
		catalog.WithMongoLogger(logger),
	)

	bal, err := balancer.New(cat, types.ShardKey{Namespace: cfg.Namespace, Field: cfg.ShardKey},
		balancer.WithLogger(logger),
		balancer.WithMetrics(collector),
	)
	if err != nil {
		return err
	}

	p, err := presplit.NewPreSplitter(cfg, bal, store,
		presplit.WithLogger(logger),
		presplit.WithMetrics(collector),
	)
	if err != nil {
		return err
	}

	runErr := p.PresplitRange(ctx, from, to)

	if cfg.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, reg); err != nil {
			logger.Error("writing metrics textfile failed", "path", cfg.Metrics.Textfile, "error", err)
		}
	}

	return runErr
}

// openMarkers builds the configured marker store. The returned close
// function releases whatever the store holds open.
func openMarkers(ctx context.Context, cfg *presplit.Config, client *mongo.Client, logger types.Logger) (types.MarkerStore, func() error, error) {
	noClose := func() error { return nil }

	switch cfg.Markers.Backend {
	case presplit.MarkerBackendMongo:
		coll := client.Database(cfg.Markers.Database).Collection(cfg.Markers.Collection)
		return marker.NewMongo(coll), noClose, nil

	case presplit.MarkerBackendKV:
		nc, err := nats.Connect(cfg.NATS.URL,
			nats.Name("presplit"),
			nats.Timeout(5*time.Second),
			nats.MaxReconnects(3),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to nats: %w", err)
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, nil, fmt.Errorf("create jetstream context: %w", err)
		}
		store, err := marker.OpenKV(ctx, js, cfg.Markers.Bucket, logger)
		if err != nil {
			nc.Close()
			return nil, nil, err
		}

		return store, func() error { return nc.Drain() }, nil

	case presplit.MarkerBackendBolt:
		store, err := marker.OpenBolt(cfg.Markers.Path)
		if err != nil {
			return nil, nil, err
		}

		return store, store.Close, nil

	case presplit.MarkerBackendMemory:
		return marker.NewMemory(), noClose, nil

	default:
		return nil, nil, fmt.Errorf("%w: unknown marker backend %q", presplit.ErrInvalidConfig, cfg.Markers.Backend)
	}
}
