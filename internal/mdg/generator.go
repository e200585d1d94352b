package mdg

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"toucan/internal/schema"
)

var ErrNoInstruments = errors.New("mdg: no instruments")

// Config tunes the synthetic price walk. Prices move by at most MaxStepBps basis points
// per tick and never fall below one Tick.
type Config struct {
	Kind       schema.MarketDataKind `json:"kind"`
	BasePrice  decimal.Decimal       `json:"basePrice"`
	Tick       decimal.Decimal       `json:"tick"`
	Amount     decimal.Decimal       `json:"amount"`
	SpreadBps  int64                 `json:"spreadBps"`
	MaxStepBps int64                 `json:"maxStepBps"`
	Seed       int64                 `json:"seed"`
}

// Generator creates synthetic market events, one instrument per tick in round robin.
type Generator struct {
	cfg         Config
	instruments []schema.Instrument
	prices      []decimal.Decimal
	rnd         *rand.Rand
	index       int
	trades      uint64
}

var bps = decimal.NewFromInt(10000)

// NewGenerator creates a generator for instruments. The same seed yields the same events.
func NewGenerator(instruments []schema.Instrument, cfg Config) (*Generator, error) {
	if len(instruments) == 0 {
		return nil, ErrNoInstruments
	}
	if cfg.Kind == schema.MarketDataUnknown {
		cfg.Kind = schema.MarketDataTrade
	}
	if !cfg.Tick.IsPositive() {
		cfg.Tick = decimal.RequireFromString("0.01")
	}
	if !cfg.BasePrice.IsPositive() {
		cfg.BasePrice = decimal.NewFromInt(100)
	}
	if !cfg.Amount.IsPositive() {
		cfg.Amount = decimal.NewFromInt(1)
	}
	if cfg.SpreadBps < 0 || cfg.MaxStepBps < 0 {
		return nil, fmt.Errorf("mdg: spread and step must be >= 0")
	}

	prices := make([]decimal.Decimal, len(instruments))
	for i := range prices {
		prices[i] = cfg.BasePrice
	}
	return &Generator{
		cfg:         cfg,
		instruments: instruments,
		prices:      prices,
		rnd:         rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Next creates the next market event stamped with now.
func (g *Generator) Next(now time.Time) schema.MarketEvent {
	i := g.index
	g.index = (g.index + 1) % len(g.instruments)
	inst := g.instruments[i]
	price := g.step(i)

	event := schema.MarketEvent{
		TimeExchange: now,
		TimeReceived: now,
		Exchange:     inst.Exchange,
		Instrument:   inst.Key,
		Kind:         g.cfg.Kind,
	}
	switch g.cfg.Kind {
	case schema.MarketDataOrderBookL1:
		half := price.Mul(decimal.NewFromInt(g.cfg.SpreadBps)).Div(bps).Div(decimal.NewFromInt(2))
		event.OrderBookL1 = &schema.OrderBookL1{
			LastUpdate: now,
			BestBid:    &schema.Level{Price: g.round(price.Sub(half)), Amount: g.cfg.Amount},
			BestAsk:    &schema.Level{Price: g.round(price.Add(half)), Amount: g.cfg.Amount},
		}
	default:
		g.trades++
		side := schema.SideBuy
		if g.rnd.Intn(2) == 0 {
			side = schema.SideSell
		}
		event.Trade = &schema.PublicTrade{
			ID:     fmt.Sprintf("mdg-%d", g.trades),
			Price:  price,
			Amount: g.cfg.Amount,
			Side:   side,
		}
	}
	return event
}

// Prices returns the current price of every instrument.
func (g *Generator) Prices() map[schema.InstrumentKey]decimal.Decimal {
	out := make(map[schema.InstrumentKey]decimal.Decimal, len(g.instruments))
	for i, inst := range g.instruments {
		out[inst.Key] = g.prices[i]
	}
	return out
}

func (g *Generator) step(i int) decimal.Decimal {
	if g.cfg.MaxStepBps > 0 {
		move := g.rnd.Int63n(2*g.cfg.MaxStepBps+1) - g.cfg.MaxStepBps
		next := g.prices[i].Add(g.prices[i].Mul(decimal.NewFromInt(move)).Div(bps))
		g.prices[i] = decimal.Max(g.round(next), g.cfg.Tick)
	}
	return g.prices[i]
}

func (g *Generator) round(price decimal.Decimal) decimal.Decimal {
	return price.Div(g.cfg.Tick).Round(0).Mul(g.cfg.Tick)
}
