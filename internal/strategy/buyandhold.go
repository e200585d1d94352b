package strategy

import (
	"github.com/shopspring/decimal"

	"toucan/internal/schema"
	"toucan/internal/state"
)

// BuyAndHold opens a market buy of Quantity on every flat instrument that has a price
// and no active orders, then holds.
type BuyAndHold struct {
	ID       schema.StrategyID
	Quantity decimal.Decimal
	CID      CIDFunc
}

var _ Strategy = (*BuyAndHold)(nil)

// NewBuyAndHold creates a BuyAndHold strategy. A nil cid uses UUIDCID.
func NewBuyAndHold(id schema.StrategyID, quantity decimal.Decimal, cid CIDFunc) *BuyAndHold {
	if cid == nil {
		cid = UUIDCID
	}
	return &BuyAndHold{ID: id, Quantity: quantity, CID: cid}
}

func (b *BuyAndHold) GenerateAlgoOrders(s *state.EngineState) ([]schema.OrderRequestCancel, []schema.OrderRequestOpen) {
	var opens []schema.OrderRequestOpen
	for _, inst := range s.Instruments.Filtered(state.NoFilter()) {
		if inst.Position.Current != nil || inst.Orders.Len() != 0 {
			continue
		}
		price, ok := inst.Data.Price()
		if !ok {
			continue
		}
		opens = append(opens, schema.OrderRequestOpen{
			Key: schema.OrderKey{
				Exchange:   inst.Instrument.Exchange,
				Instrument: inst.Key,
				Strategy:   b.ID,
				CID:        b.CID(inst.Key),
			},
			State: schema.RequestOpen{
				Side:        schema.SideBuy,
				Kind:        schema.OrderKindMarket,
				TimeInForce: schema.ImmediateOrCancel(),
				Price:       price,
				Quantity:    b.Quantity,
			},
		})
	}
	return nil, opens
}

func (b *BuyAndHold) ClosePositionsRequests(s *state.EngineState, filter state.InstrumentFilter) ([]schema.OrderRequestCancel, []schema.OrderRequestOpen) {
	return nil, ClosePositionsWithMarketOrders(s, filter, b.ID, b.CID)
}

func (b *BuyAndHold) OnDisconnect(exchange schema.ExchangeID) any {
	return Disconnected{Strategy: b.ID, Exchange: exchange}
}

func (b *BuyAndHold) OnTradingDisabled() any {
	return TradingDisabled{Strategy: b.ID}
}
