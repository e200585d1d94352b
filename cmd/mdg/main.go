package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"toucan/internal/engine"
	"toucan/internal/mdg"
	"toucan/internal/ops"
	"toucan/internal/recorder"
	"toucan/internal/schema"
	"toucan/pkg/exception"
)

func main() {
	journalDir := flag.String("journal-dir", "testdata/market", "Journal directory for market data")
	configPath := flag.String("config", "", "Path to JSON config")
	ticks := flag.Int("ticks", 1000, "Number of ticks to generate")
	step := flag.Duration("step", time.Second, "Event time between ticks")
	start := flag.String("start", "2024-01-01T00:00:00Z", "Event time of the first tick (RFC3339)")
	seed := flag.Int64("seed", 1, "Random walk seed")
	stepBps := flag.Int64("step-bps", 20, "Max price move per tick in basis points")
	basePrice := flag.String("base-price", "100", "Starting price")
	tick := flag.String("tick", "0.01", "Price tick")
	spreadBps := flag.Int64("spread-bps", 10, "Bid/ask spread in basis points")
	source := flag.Uint("source", 1, "Journal source id")
	kind := flag.String("kind", "trade", "Market data kind: trade|l1")
	flag.Parse()

	if *ticks <= 0 {
		log.Fatalf("ticks must be > 0")
	}
	if *configPath == "" {
		log.Fatalf("config is required")
	}
	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	mdKind, err := parseKind(*kind)
	if err != nil {
		log.Fatalf("invalid kind: %v", err)
	}
	ts, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		log.Fatalf("invalid start: %v", err)
	}
	base, err := decimal.NewFromString(*basePrice)
	if err != nil {
		log.Fatalf("invalid base price: %v", err)
	}
	tickSize, err := decimal.NewFromString(*tick)
	if err != nil {
		log.Fatalf("invalid tick: %v", err)
	}

	generator, err := mdg.NewGenerator(loaded.Instruments, mdg.Config{
		Kind:       mdKind,
		BasePrice:  base,
		Tick:       tickSize,
		SpreadBps:  *spreadBps,
		MaxStepBps: *stepBps,
		Seed:       *seed,
	})
	if err != nil {
		log.Fatalf("generator init failed: %v", err)
	}

	ctx := context.Background()
	writer, err := recorder.NewWriter(recorder.DefaultConfig(*journalDir))
	if err != nil {
		log.Fatalf("journal init failed: %v", err)
	}
	if err := writer.Start(ctx); err != nil {
		log.Fatalf("journal start failed: %v", err)
	}
	journal := recorder.NewJournal(writer, uint16(*source))

	for i := 0; i < *ticks; i++ {
		event := generator.Next(ts.UTC())
		if err := journal.RecordEvent(ctx, uint64(i), ts, engine.MarketEvent(schema.MarketItem(event))); err != nil {
			log.Fatalf("record tick %d failed: %v", i, err)
		}
		ts = ts.Add(*step)
	}
	if err := writer.Close(); err != nil {
		log.Fatalf("journal close failed: %v", err)
	}
	log.Printf("generated %d ticks into %s", *ticks, *journalDir)
}

func parseKind(kind string) (schema.MarketDataKind, error) {
	switch kind {
	case "trade":
		return schema.MarketDataTrade, nil
	case "l1":
		return schema.MarketDataOrderBookL1, nil
	default:
		return schema.MarketDataUnknown, fmt.Errorf("%w: unsupported kind %q", exception.ErrInvalidArgument, kind)
	}
}
