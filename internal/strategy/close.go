package strategy

import (
	"github.com/shopspring/decimal"

	"toucan/internal/schema"
	"toucan/internal/state"
)

// CloseOrder builds the IOC market order closing quantity of a position held on side.
func CloseOrder(key schema.OrderKey, side schema.Side, quantity, price decimal.Decimal) schema.OrderRequestOpen {
	return schema.OrderRequestOpen{
		Key: key,
		State: schema.RequestOpen{
			Side:        side.Opposite(),
			Kind:        schema.OrderKindMarket,
			TimeInForce: schema.ImmediateOrCancel(),
			Price:       price,
			Quantity:    quantity,
		},
	}
}

// ClosePositionsWithMarketOrders closes every open position matching filter at the current
// instrument price. Instruments without a price are skipped.
func ClosePositionsWithMarketOrders(s *state.EngineState, filter state.InstrumentFilter, strategy schema.StrategyID, cid CIDFunc) []schema.OrderRequestOpen {
	if cid == nil {
		cid = UUIDCID
	}
	var opens []schema.OrderRequestOpen
	for _, inst := range s.Instruments.Filtered(filter) {
		position := inst.Position.Current
		if position == nil || position.QuantityAbs.IsZero() {
			continue
		}
		price, ok := inst.Data.Price()
		if !ok {
			continue
		}
		key := schema.OrderKey{
			Exchange:   inst.Instrument.Exchange,
			Instrument: inst.Key,
			Strategy:   strategy,
			CID:        cid(inst.Key),
		}
		opens = append(opens, CloseOrder(key, position.Side, position.QuantityAbs, price))
	}
	return opens
}
