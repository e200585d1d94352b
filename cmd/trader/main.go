package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/pkg/sys"

	"toucan/internal/clock"
	"toucan/internal/engine"
	"toucan/internal/mdg"
	"toucan/internal/obs"
	"toucan/internal/og"
	"toucan/internal/ops"
	"toucan/internal/recorder"
	"toucan/internal/runner"
	"toucan/internal/schema"
	"toucan/internal/state"
	"toucan/internal/strategy"
	"toucan/pkg/conn"
)

type options struct {
	configPath     string
	journalDir     string
	snapshotPath   string
	source         uint
	metricsAddr    string
	pyroscopeAddr  string
	reloadInterval time.Duration
	ticks          int
	interval       time.Duration
	seed           int64
	stepBps        int64
	postgres       string
	session        string
}

func main() {
	var opt options
	flag.StringVar(&opt.configPath, "config", "", "Path to JSON config")
	flag.StringVar(&opt.journalDir, "journal-dir", "testdata/journal", "Journal directory")
	flag.StringVar(&opt.snapshotPath, "snapshot-path", "", "State snapshot output (default: <journal-dir>/snapshot.json)")
	flag.UintVar(&opt.source, "source", 1, "Journal source id")
	flag.StringVar(&opt.metricsAddr, "metrics-addr", ":9100", "Prometheus listen address (empty=disable)")
	flag.StringVar(&opt.pyroscopeAddr, "pyroscope", "", "Pyroscope server address (empty=disable)")
	flag.DurationVar(&opt.reloadInterval, "reload-interval", 2*time.Second, "Risk config reload interval (0=disable)")
	flag.IntVar(&opt.ticks, "ticks", 0, "Generated market ticks before shutdown (0=until signal)")
	flag.DurationVar(&opt.interval, "interval", 100*time.Millisecond, "Delay between generated ticks")
	flag.Int64Var(&opt.seed, "seed", time.Now().UnixNano(), "Market data seed")
	flag.Int64Var(&opt.stepBps, "step-bps", 20, "Max price move per tick in basis points")
	flag.StringVar(&opt.postgres, "postgres", "", "PostgreSQL conn string for closed positions (empty=disable)")
	flag.StringVar(&opt.session, "session", "paper", "Session tag of stored positions")
	flag.Parse()

	if opt.configPath == "" {
		log.Fatalf("config is required")
	}
	if opt.snapshotPath == "" {
		opt.snapshotPath = filepath.Join(opt.journalDir, "snapshot.json")
	}
	if err := run(opt); err != nil {
		log.Fatalf("trader failed: %v", err)
	}
}

func run(opt options) error {
	loaded, err := ops.Load(opt.configPath)
	if err != nil {
		return err
	}

	stopProfiler, err := ops.StartProfiler("toucan.trader", opt.pyroscopeAddr, map[string]string{"session": opt.session})
	if err != nil {
		return err
	}
	defer stopProfiler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := obs.NewMetrics()
	if opt.metricsAddr != "" {
		srv, err := serveMetrics(opt.metricsAddr, metrics)
		if err != nil {
			return err
		}
		defer srv.Close()
	}

	risk := ops.NewRuntimeConfig(loaded.Risk)
	if opt.reloadInterval > 0 {
		risk.Watch(ctx, opt.configPath, opt.reloadInterval)
	}

	feed := runner.NewFeed(4096).OnDrop(metrics.IncQueueDrop)
	clk := clock.Live{}
	txs := og.NewTxMap()
	mocks := make(map[schema.ExchangeID]*og.MockExchange, len(loaded.Routes))
	var wg sync.WaitGroup
	for _, route := range loaded.Routes {
		mock := og.NewMockExchange(loaded.MockConfig(route), loaded.Instruments, clk, func(event schema.AccountStreamEvent) {
			if err := feed.PublishAccount(ctx, event); err != nil {
				log.Printf("publish account event failed: %v", err)
			}
		})
		txs.Register(mock.Exchange(), mock.Tx())
		mocks[mock.Exchange()] = mock
		mock.Snapshot()
		wg.Add(1)
		go func() {
			defer wg.Done()
			mock.Run(ctx)
		}()
	}

	start := clk.Time()
	s := loaded.StateBuilder(start).Build()
	e := engine.New(clk, s, txs, loaded.NewStrategy(strategy.SequentialCID(opt.session)), risk)

	w, err := recorder.NewWriter(recorder.DefaultConfig(opt.journalDir))
	if err != nil {
		return err
	}
	if err := w.Start(context.Background()); err != nil {
		return err
	}
	summary := runner.NewSummarySink(e.TradingSummaryGenerator(decimal.Zero))
	sinks := runner.MultiSink{
		runner.NewJournalSink(recorder.NewJournal(w, uint16(opt.source))),
		runner.NewMetricsSink(metrics),
		summary,
	}
	if opt.postgres != "" {
		store, closeStore, err := openStore(ctx, opt.postgres, opt.session)
		if err != nil {
			return err
		}
		defer closeStore()
		sinks = append(sinks, runner.NewStoreSink(store))
	}

	generator, err := mdg.NewGenerator(loaded.Instruments, mdg.Config{Seed: opt.seed, MaxStepBps: opt.stepBps})
	if err != nil {
		return err
	}
	go generate(ctx, generator, feed, mocks, opt.ticks, opt.interval)
	go func() {
		select {
		case <-ctx.Done():
		case <-sys.Shutdown():
			log.Printf("shutdown signal received")
			shutdownCtx, done := context.WithTimeout(ctx, time.Second)
			defer done()
			if err := feed.Shutdown(shutdownCtx); err != nil {
				cancel()
			}
		}
	}()

	result, runErr := runner.AsyncRun(ctx, e, feed.C(), sinks)
	log.Printf("run stopped, reason: %s, processed: %d, last_seq: %d, market_drops: %d", result.Reason, result.Processed, result.LastSequence, feed.Drops())
	cancel()
	wg.Wait()

	snapshot := e.State().Snapshot(e.Meta().Sequence, e.Time().UnixNano())
	snapshot.TimeStart = start.UnixNano()
	err = errors.Join(runErr, w.Close(), state.WriteSnapshot(opt.snapshotPath, snapshot))
	if data, jerr := sonic.ConfigStd.MarshalIndent(summary.Summary(), "", "  "); jerr == nil {
		log.Printf("trading summary:\n%s", data)
	}
	return err
}

func generate(ctx context.Context, g *mdg.Generator, feed *runner.Feed, mocks map[schema.ExchangeID]*og.MockExchange, ticks int, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for n := 0; ticks == 0 || n < ticks; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		event := g.Next(time.Now().UTC())
		feed.PublishMarket(schema.MarketItem(event))
		if mock, ok := mocks[event.Exchange]; ok {
			mock.MatchMarket(event)
		}
	}
	if err := feed.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("publish shutdown failed: %v", err)
	}
}

func serveMetrics(addr string, metrics *obs.Metrics) (*http.Server, error) {
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server stopped: %v", err)
		}
	}()
	return srv, nil
}

func openStore(ctx context.Context, dsn, session string) (*conn.PositionStore, func(), error) {
	client, err := conn.New(conn.Option{ConnString: dsn, Silent: true})
	if err != nil {
		return nil, nil, err
	}
	store, err := conn.NewPositionStore(client.DB(), session)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return store, func() { _ = client.Close() }, nil
}
