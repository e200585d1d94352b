package ops

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/errors"

	"toucan/internal/og"
	"toucan/internal/risk"
	"toucan/internal/schema"
	"toucan/internal/state"
	"toucan/internal/strategy"
	"toucan/pkg/exception"
)

const (
	RouteMock = "mock"

	StrategyBuyAndHold = "buy_and_hold"
	StrategyDefault    = "default"

	defaultRouteCapacity = 1024
	defaultStrategyID    = "toucan"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Instruments  []schema.Instrument `json:"instruments"`
	Balances     []BalanceConfig     `json:"balances"`
	Risk         risk.Config         `json:"risk"`
	Routes       []RouteConfig       `json:"routes"`
	Mock         MockConfig          `json:"mock"`
	TradingState string              `json:"tradingState"`
	Strategy     StrategyConfig      `json:"strategy"`
}

// BalanceConfig is the initial balance of one asset.
type BalanceConfig struct {
	Asset schema.AssetKey `json:"asset"`
	Total decimal.Decimal `json:"total"`
	Free  decimal.Decimal `json:"free"`
}

// RouteConfig binds an exchange to an execution transport.
type RouteConfig struct {
	Exchange schema.ExchangeID `json:"exchange"`
	Kind     string            `json:"kind"`
	Capacity int               `json:"capacity"`
}

// MockConfig tunes the simulated exchange behind mock routes.
type MockConfig struct {
	FeesPercent decimal.Decimal `json:"feesPercent"`
}

// StrategyConfig selects and tunes the strategy.
type StrategyConfig struct {
	ID       schema.StrategyID `json:"id"`
	Kind     string            `json:"kind"`
	Quantity decimal.Decimal   `json:"quantity"`
}

// Route is a resolved execution route.
type Route struct {
	Exchange schema.ExchangeID
	Kind     string
	Capacity int
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Instruments  []schema.Instrument
	Balances     []schema.AssetBalance
	Risk         risk.Config
	Routes       []Route
	Mock         MockConfig
	TradingState state.TradingState
	Strategy     StrategyConfig
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse resolves a JSON config document.
func Parse(data []byte) (Loaded, error) {
	var cfg FileConfig
	if err := sonic.ConfigStd.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(err, "unmarshal config")
	}
	return cfg.Resolve()
}

// LoadRisk reads only the risk section of a config file, for reloads.
func LoadRisk(path string) (risk.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return risk.Config{}, errors.Wrapf(err, "read config %s", path)
	}
	var cfg FileConfig
	if err := sonic.ConfigStd.Unmarshal(data, &cfg); err != nil {
		return risk.Config{}, errors.Wrap(err, "unmarshal config")
	}
	if err := validateRisk(cfg.Risk); err != nil {
		return risk.Config{}, err
	}
	return cfg.Risk, nil
}

// Resolve validates cfg and fills defaults.
func (cfg FileConfig) Resolve() (Loaded, error) {
	instruments, exchanges, err := resolveInstruments(cfg.Instruments)
	if err != nil {
		return Loaded{}, err
	}
	balances, err := resolveBalances(cfg.Balances)
	if err != nil {
		return Loaded{}, err
	}
	if err := validateRisk(cfg.Risk); err != nil {
		return Loaded{}, err
	}
	routes, err := resolveRoutes(cfg.Routes, exchanges)
	if err != nil {
		return Loaded{}, err
	}
	if cfg.Mock.FeesPercent.IsNegative() {
		return Loaded{}, fmt.Errorf("%w: mock fees percent must be >= 0", exception.ErrConfigInvalid)
	}
	trading, err := resolveTradingState(cfg.TradingState)
	if err != nil {
		return Loaded{}, err
	}
	strat, err := resolveStrategy(cfg.Strategy)
	if err != nil {
		return Loaded{}, err
	}
	return Loaded{
		Instruments:  instruments,
		Balances:     balances,
		Risk:         cfg.Risk,
		Routes:       routes,
		Mock:         cfg.Mock,
		TradingState: trading,
		Strategy:     strat,
	}, nil
}

func resolveInstruments(cfg []schema.Instrument) ([]schema.Instrument, map[schema.ExchangeID]struct{}, error) {
	if len(cfg) == 0 {
		return nil, nil, fmt.Errorf("%w: no instruments", exception.ErrConfigInvalid)
	}
	seen := make(map[schema.InstrumentKey]struct{}, len(cfg))
	exchanges := make(map[schema.ExchangeID]struct{})
	for _, inst := range cfg {
		switch {
		case inst.Key == "":
			return nil, nil, fmt.Errorf("%w: instrument key is empty", exception.ErrConfigInvalid)
		case inst.Exchange == "":
			return nil, nil, fmt.Errorf("%w: instrument %s has no exchange", exception.ErrConfigInvalid, inst.Key)
		case inst.Base == "" || inst.Quote == "":
			return nil, nil, fmt.Errorf("%w: instrument %s needs base and quote", exception.ErrConfigInvalid, inst.Key)
		}
		if _, ok := seen[inst.Key]; ok {
			return nil, nil, fmt.Errorf("%w: %s", exception.ErrConfigDuplicateInstrument, inst.Key)
		}
		seen[inst.Key] = struct{}{}
		exchanges[inst.Exchange] = struct{}{}
	}
	return cfg, exchanges, nil
}

func resolveBalances(cfg []BalanceConfig) ([]schema.AssetBalance, error) {
	out := make([]schema.AssetBalance, 0, len(cfg))
	for _, b := range cfg {
		if b.Asset == "" {
			return nil, fmt.Errorf("%w: balance asset is empty", exception.ErrConfigInvalid)
		}
		if b.Total.IsNegative() || b.Free.IsNegative() || b.Free.GreaterThan(b.Total) {
			return nil, fmt.Errorf("%w: balance %s must satisfy 0 <= free <= total", exception.ErrConfigInvalid, b.Asset)
		}
		out = append(out, schema.AssetBalance{Asset: b.Asset, Balance: schema.NewBalance(b.Total, b.Free)})
	}
	return out, nil
}

func validateRisk(cfg risk.Config) error {
	switch {
	case cfg.MaxOrderQuantity.IsNegative():
		return fmt.Errorf("%w: risk maxOrderQuantity must be >= 0", exception.ErrConfigInvalid)
	case cfg.MaxOrderNotional.IsNegative():
		return fmt.Errorf("%w: risk maxOrderNotional must be >= 0", exception.ErrConfigInvalid)
	case cfg.MaxPosition.IsNegative():
		return fmt.Errorf("%w: risk maxPosition must be >= 0", exception.ErrConfigInvalid)
	case cfg.MaxPriceDeviationBps < 0:
		return fmt.Errorf("%w: risk maxPriceDeviationBps must be >= 0", exception.ErrConfigInvalid)
	}
	return nil
}

// resolveRoutes defaults every instrument exchange without a route to the mock exchange.
func resolveRoutes(cfg []RouteConfig, exchanges map[schema.ExchangeID]struct{}) ([]Route, error) {
	routed := make(map[schema.ExchangeID]struct{}, len(cfg))
	routes := make([]Route, 0, len(exchanges))
	for _, r := range cfg {
		if _, ok := exchanges[r.Exchange]; !ok {
			return nil, fmt.Errorf("%w: %s", exception.ErrConfigUnknownExchange, r.Exchange)
		}
		if r.Kind == "" {
			r.Kind = RouteMock
		}
		if r.Kind != RouteMock {
			return nil, fmt.Errorf("%w: %s for %s", exception.ErrConfigUnsupportedRoute, r.Kind, r.Exchange)
		}
		if r.Capacity <= 0 {
			r.Capacity = defaultRouteCapacity
		}
		routed[r.Exchange] = struct{}{}
		routes = append(routes, Route(r))
	}
	for exchange := range exchanges {
		if _, ok := routed[exchange]; !ok {
			routes = append(routes, Route{Exchange: exchange, Kind: RouteMock, Capacity: defaultRouteCapacity})
		}
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Exchange < routes[j].Exchange })
	return routes, nil
}

func resolveTradingState(s string) (state.TradingState, error) {
	switch s {
	case "", state.TradingDisabled.String():
		return state.TradingDisabled, nil
	case state.TradingEnabled.String():
		return state.TradingEnabled, nil
	default:
		return state.TradingUnknown, fmt.Errorf("%w: %q", exception.ErrConfigUnknownTradingState, s)
	}
}

func resolveStrategy(cfg StrategyConfig) (StrategyConfig, error) {
	if cfg.ID == "" {
		cfg.ID = defaultStrategyID
	}
	switch cfg.Kind {
	case "", StrategyBuyAndHold:
		cfg.Kind = StrategyBuyAndHold
		if cfg.Quantity.IsZero() {
			cfg.Quantity = decimal.NewFromInt(1)
		}
		if cfg.Quantity.IsNegative() {
			return StrategyConfig{}, fmt.Errorf("%w: strategy quantity must be > 0", exception.ErrConfigInvalid)
		}
	case StrategyDefault:
	default:
		return StrategyConfig{}, fmt.Errorf("%w: %s", exception.ErrConfigUnsupportedStrategy, cfg.Kind)
	}
	return cfg, nil
}

// StateBuilder starts an EngineState for the configured instruments, balances and
// trading state.
func (l Loaded) StateBuilder(start time.Time) *state.Builder {
	b := state.NewBuilder(l.Instruments, nil, nil).
		TimeEngineStart(start).
		TradingState(l.TradingState)
	for _, balance := range l.Balances {
		b.Balance(balance.Asset, balance.Balance)
	}
	return b
}

// NewStrategy builds the configured strategy. A nil cid uses uuid client order ids.
func (l Loaded) NewStrategy(cid strategy.CIDFunc) strategy.Strategy {
	if l.Strategy.Kind == StrategyDefault {
		d := strategy.NewDefault()
		if cid != nil {
			d.CID = cid
		}
		return d
	}
	return strategy.NewBuyAndHold(l.Strategy.ID, l.Strategy.Quantity, cid)
}

// MockConfig returns the simulated exchange settings of route, seeded with the
// configured balances.
func (l Loaded) MockConfig(route Route) og.MockConfig {
	return og.MockConfig{
		Exchange:    route.Exchange,
		FeesPercent: l.Mock.FeesPercent,
		Capacity:    route.Capacity,
		Balances:    l.Balances,
	}
}
