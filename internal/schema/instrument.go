package schema

// Instrument describes a tradable instrument on one exchange.
type Instrument struct {
	Key          InstrumentKey `json:"key"`
	Symbol       string        `json:"symbol"`
	Market       string        `json:"market"`
	Exchange     ExchangeID    `json:"exchange"`
	Underlying   string        `json:"underlying"`
	NameExchange string        `json:"nameExchange"`
	Base         AssetKey      `json:"base"`
	Quote        AssetKey      `json:"quote"`
}
