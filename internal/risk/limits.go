package risk

import (
	"fmt"

	"github.com/shopspring/decimal"

	"toucan/internal/schema"
	"toucan/internal/state"
)

var bps = decimal.NewFromInt(10000)

// Config defines static order limits. Zero values disable a limit.
type Config struct {
	Version              uint16          `json:"version"`
	KillSwitch           bool            `json:"killSwitch"`
	MaxOrderQuantity     decimal.Decimal `json:"maxOrderQuantity"`
	MaxOrderNotional     decimal.Decimal `json:"maxOrderNotional"`
	MaxPosition          decimal.Decimal `json:"maxPosition"`
	MaxPriceDeviationBps int64           `json:"maxPriceDeviationBps"`
}

// Limits refuses opens breaking any configured limit. Cancels are always approved.
type Limits struct {
	cfg Config
}

var _ RiskManager = (*Limits)(nil)

// NewLimits creates a risk manager with static limits.
func NewLimits(cfg Config) *Limits {
	return &Limits{cfg: cfg}
}

// Config returns the active limits.
func (l *Limits) Config() Config {
	return l.cfg
}

// Check evaluates every open against the limits. Approved opens of the same instrument
// accumulate into the position used by later opens of the batch.
func (l *Limits) Check(s *state.EngineState, cancels []schema.OrderRequestCancel, opens []schema.OrderRequestOpen) CheckResult {
	result := CheckResult{ApprovedCancels: cancels}
	pending := make(map[schema.InstrumentKey]decimal.Decimal)

	for _, open := range opens {
		position, reference := l.view(s, open.Key.Instrument)
		position = position.Add(pending[open.Key.Instrument])

		if reason, ok := l.evaluate(open, position, reference); !ok {
			result.RefusedOpens = append(result.RefusedOpens, Refused[schema.OrderRequestOpen]{Item: open, Reason: reason})
			continue
		}
		pending[open.Key.Instrument] = pending[open.Key.Instrument].Add(signed(open.State.Side, open.State.Quantity))
		result.ApprovedOpens = append(result.ApprovedOpens, open)
	}
	return result
}

// view returns the signed position and reference price of instrument.
func (l *Limits) view(s *state.EngineState, instrument schema.InstrumentKey) (decimal.Decimal, decimal.Decimal) {
	if s == nil {
		return decimal.Zero, decimal.Zero
	}
	inst, ok := s.Instruments.Instrument(instrument)
	if !ok {
		return decimal.Zero, decimal.Zero
	}
	position := decimal.Zero
	if p := inst.Position.Current; p != nil {
		position = signed(p.Side, p.QuantityAbs)
	}
	reference := decimal.Zero
	if price, ok := inst.Data.Price(); ok {
		reference = price
	}
	return position, reference
}

func (l *Limits) evaluate(open schema.OrderRequestOpen, position, reference decimal.Decimal) (string, bool) {
	req := open.State

	if l.cfg.KillSwitch {
		return "kill switch enabled", false
	}

	if req.Quantity.Sign() <= 0 {
		return fmt.Sprintf("non-positive quantity %s", req.Quantity), false
	}

	if l.cfg.MaxOrderQuantity.IsPositive() {
		if err := (CheckHigherThan{Limit: l.cfg.MaxOrderQuantity}).Check(req.Quantity); err != nil {
			return "max order quantity: " + err.Error(), false
		}
	}

	if l.cfg.MaxPriceDeviationBps > 0 && req.Kind == schema.OrderKindLimit && req.Price.IsPositive() && reference.IsPositive() {
		diff, err := AbsPercentDifference(req.Price, reference)
		if err == nil {
			limit := decimal.NewFromInt(l.cfg.MaxPriceDeviationBps).Div(bps)
			if err := (CheckHigherThan{Limit: limit}).Check(diff); err != nil {
				return "price deviation: " + err.Error(), false
			}
		}
	}

	price := req.Price
	if !price.IsPositive() {
		price = reference
	}
	if l.cfg.MaxOrderNotional.IsPositive() {
		notional := QuoteNotional(req.Quantity, price, decimal.NewFromInt(1)).Abs()
		if err := (CheckHigherThan{Limit: l.cfg.MaxOrderNotional}).Check(notional); err != nil {
			return "max order notional: " + err.Error(), false
		}
	}

	if l.cfg.MaxPosition.IsPositive() {
		next := position.Add(signed(req.Side, req.Quantity)).Abs()
		if err := (CheckHigherThan{Limit: l.cfg.MaxPosition}).Check(next); err != nil {
			return "max position: " + err.Error(), false
		}
	}

	return "", true
}

func signed(side schema.Side, quantity decimal.Decimal) decimal.Decimal {
	switch side {
	case schema.SideBuy:
		return quantity.Abs()
	case schema.SideSell:
		return quantity.Abs().Neg()
	default:
		return decimal.Zero
	}
}
