package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"toucan/internal/analytics"
	"toucan/internal/chaos"
	"toucan/internal/clock"
	"toucan/internal/engine"
	"toucan/internal/og"
	"toucan/internal/ops"
	"toucan/internal/recorder"
	"toucan/internal/runner"
	"toucan/internal/state"
	"toucan/internal/strategy"
	"toucan/pkg/exception"
)

type result struct {
	Name     string                   `json:"name"`
	Quantity decimal.Decimal          `json:"quantity"`
	Run      runner.Summary           `json:"run"`
	Summary  analytics.TradingSummary `json:"summary"`
	Err      string                   `json:"err,omitempty"`
}

// countingIterator ticks the progress bar for every market event pulled.
type countingIterator struct {
	runner.Iterator
	bar *progressbar.ProgressBar
}

func (it countingIterator) Next() (engine.Event, bool) {
	event, ok := it.Iterator.Next()
	if ok && event.Kind == engine.EventKindMarket {
		_ = it.bar.Add(1)
	}
	return event, ok
}

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	marketDir := flag.String("market-dir", "testdata/market", "Journal directory holding market data")
	prefix := flag.String("prefix", "", "Journal file prefix (default: wal)")
	quantities := flag.String("quantities", "1", "Comma separated order quantity of each run")
	concurrency := flag.Int("concurrency", 4, "Concurrent runs")
	pyroscopeAddr := flag.String("pyroscope", "", "Pyroscope server address (empty=disable)")
	var chaosCfg chaos.Config
	flag.Int64Var(&chaosCfg.Seed, "chaos-seed", 1, "Chaos random seed")
	flag.Float64Var(&chaosCfg.DropRate, "chaos-drop", 0, "Share of market events dropped")
	flag.Float64Var(&chaosCfg.DuplicateRate, "chaos-dup", 0, "Share of market events duplicated")
	flag.IntVar(&chaosCfg.ReorderWindow, "chaos-reorder", 0, "Market events shuffled together (0/1=keep order)")
	flag.DurationVar(&chaosCfg.MaxDelay, "chaos-delay", 0, "Max receive delay added to market events")
	flag.Parse()

	if *configPath == "" {
		log.Fatalf("config is required")
	}
	if *concurrency <= 0 {
		log.Fatalf("concurrency must be > 0")
	}
	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	qtys, err := parseQuantities(*quantities)
	if err != nil {
		log.Fatalf("invalid quantities: %v", err)
	}
	if err := chaosCfg.Validate(); err != nil {
		log.Fatalf("invalid chaos: %v", err)
	}

	stopProfiler, err := ops.StartProfiler("toucan.backtest", *pyroscopeAddr, nil)
	if err != nil {
		log.Fatalf("profiler start failed: %v", err)
	}
	defer stopProfiler()

	pb, err := recorder.NewPlayback(recorder.PlaybackConfig{Dir: *marketDir, FilePrefix: *prefix})
	if err != nil {
		log.Fatalf("playback init failed: %v", err)
	}
	market, err := recorder.LoadEvents(context.Background(), pb, engine.EventKindMarket)
	if err != nil {
		log.Fatalf("load market data failed: %v", err)
	}
	if len(market) == 0 {
		log.Fatalf("no market data in %s", *marketDir)
	}
	log.Printf("loaded %d market events, runs: %d", len(market), len(qtys))

	bar := initProgressBar(len(market) * len(qtys))
	results := make([]result, len(qtys))
	sem := make(chan struct{}, *concurrency)
	var wg sync.WaitGroup
	for i, qty := range qtys {
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = backtest(loaded, market, fmt.Sprintf("run%d", i), qty, chaosCfg, bar)
		}()
	}
	wg.Wait()
	_ = bar.Finish()
	fmt.Println()

	data, err := sonic.ConfigStd.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Fatalf("encode results failed: %v", err)
	}
	fmt.Println(string(data))
}

func backtest(loaded ops.Loaded, market []engine.Event, name string, qty decimal.Decimal, chaosCfg chaos.Config, bar *progressbar.ProgressBar) result {
	start, _ := market[0].TimeExchange()
	clk := clock.NewHistorical(start)
	txs := og.NewTxMap()

	events := make([]engine.Event, 0, len(market)+1)
	events = append(events, engine.TradingStateEvent(state.TradingEnabled))
	events = append(events, market...)
	var source runner.Iterator = runner.NewSliceIterator(events)
	if chaosCfg.Enabled() {
		degraded, err := chaos.New(source, chaosCfg)
		if err != nil {
			return result{Name: name, Quantity: qty, Err: err.Error()}
		}
		source = degraded
	}
	feed := runner.NewSimulatedFeed(countingIterator{Iterator: source, bar: bar})
	for _, route := range loaded.Routes {
		feed.Attach(txs, loaded.MockConfig(route), loaded.Instruments, clk)
	}

	loaded.Strategy.ID = "backtest"
	loaded.Strategy.Quantity = qty
	e := engine.New(
		clk,
		loaded.StateBuilder(start).TradingState(state.TradingDisabled).Build(),
		txs,
		loaded.NewStrategy(strategy.SequentialCID(name)),
		ops.NewRuntimeConfig(loaded.Risk),
	)

	summary := runner.NewSummarySink(e.TradingSummaryGenerator(decimal.Zero))
	run, err := runner.SyncRun(e, feed, summary)
	out := result{Name: name, Quantity: qty, Run: run, Summary: summary.Summary()}
	if err != nil {
		out.Err = err.Error()
	}
	return out
}

func parseQuantities(s string) ([]decimal.Decimal, error) {
	var out []decimal.Decimal
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		qty, err := decimal.NewFromString(part)
		if err != nil {
			return nil, err
		}
		if !qty.IsPositive() {
			return nil, fmt.Errorf("%w: quantity %s must be > 0", exception.ErrInvalidArgument, qty)
		}
		out = append(out, qty)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no quantity", exception.ErrInvalidArgument)
	}
	return out, nil
}

func initProgressBar(max int) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
