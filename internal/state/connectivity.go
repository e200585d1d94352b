package state

import (
	terr "toucan/internal/errors"
	"toucan/internal/schema"
)

// Health is the status of one stream link.
type Health uint8

const (
	HealthUnknown Health = iota
	HealthHealthy
	HealthReconnecting
)

func (h Health) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// ConnectivityState holds the link health of one exchange.
type ConnectivityState struct {
	MarketData Health `json:"marketData"`
	Account    Health `json:"account"`
}

func (c ConnectivityState) healthy() bool {
	return c.MarketData == HealthHealthy && c.Account == HealthHealthy
}

// ConnectivityStates tracks every exchange link plus the derived global health.
type ConnectivityStates struct {
	Global    Health
	exchanges []schema.ExchangeID
	states    map[schema.ExchangeID]*ConnectivityState
}

// NewConnectivityStates starts every link of every exchange as Reconnecting.
func NewConnectivityStates(exchanges []schema.ExchangeID) *ConnectivityStates {
	c := &ConnectivityStates{
		Global: HealthReconnecting,
		states: make(map[schema.ExchangeID]*ConnectivityState, len(exchanges)),
	}
	for _, exchange := range exchanges {
		if _, ok := c.states[exchange]; ok {
			continue
		}
		c.exchanges = append(c.exchanges, exchange)
		c.states[exchange] = &ConnectivityState{
			MarketData: HealthReconnecting,
			Account:    HealthReconnecting,
		}
	}
	return c
}

// Exchanges returns tracked exchanges in insertion order.
func (c *ConnectivityStates) Exchanges() []schema.ExchangeID {
	return append([]schema.ExchangeID(nil), c.exchanges...)
}

// Connectivity returns the link health of exchange.
func (c *ConnectivityStates) Connectivity(exchange schema.ExchangeID) (ConnectivityState, bool) {
	s, ok := c.states[exchange]
	if !ok {
		return ConnectivityState{}, false
	}
	return *s, true
}

// UpdateFromAccountEvent marks the account link Healthy.
func (c *ConnectivityStates) UpdateFromAccountEvent(exchange schema.ExchangeID) error {
	s, err := c.lookup(exchange)
	if err != nil {
		return err
	}
	s.Account = HealthHealthy
	c.refreshGlobal()
	return nil
}

// UpdateFromAccountReconnecting marks the account link and global health Reconnecting.
func (c *ConnectivityStates) UpdateFromAccountReconnecting(exchange schema.ExchangeID) error {
	s, err := c.lookup(exchange)
	if err != nil {
		return err
	}
	s.Account = HealthReconnecting
	c.Global = HealthReconnecting
	return nil
}

// UpdateFromMarketEvent marks the market data link Healthy.
func (c *ConnectivityStates) UpdateFromMarketEvent(exchange schema.ExchangeID) error {
	s, err := c.lookup(exchange)
	if err != nil {
		return err
	}
	s.MarketData = HealthHealthy
	c.refreshGlobal()
	return nil
}

// UpdateFromMarketReconnecting marks the market data link and global health Reconnecting.
func (c *ConnectivityStates) UpdateFromMarketReconnecting(exchange schema.ExchangeID) error {
	s, err := c.lookup(exchange)
	if err != nil {
		return err
	}
	s.MarketData = HealthReconnecting
	c.Global = HealthReconnecting
	return nil
}

func (c *ConnectivityStates) lookup(exchange schema.ExchangeID) (*ConnectivityState, error) {
	s, ok := c.states[exchange]
	if !ok {
		return nil, terr.Invariant("connectivity does not track exchange: %s", exchange)
	}
	return s, nil
}

func (c *ConnectivityStates) refreshGlobal() {
	if c.Global == HealthHealthy {
		return
	}
	for _, exchange := range c.exchanges {
		if !c.states[exchange].healthy() {
			return
		}
	}
	c.Global = HealthHealthy
}
