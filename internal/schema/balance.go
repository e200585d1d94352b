package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance is the total and free amount of one asset.
type Balance struct {
	Total decimal.Decimal `json:"total"`
	Free  decimal.Decimal `json:"free"`
}

// NewBalance builds a balance.
func NewBalance(total, free decimal.Decimal) Balance {
	return Balance{Total: total, Free: free}
}

// Used returns total - free.
func (b Balance) Used() decimal.Decimal {
	return b.Total.Sub(b.Free)
}

// Equal compares both amounts numerically.
func (b Balance) Equal(other Balance) bool {
	return b.Total.Equal(other.Total) && b.Free.Equal(other.Free)
}

// AssetBalance is an exchange reported balance of one asset.
type AssetBalance struct {
	Asset        AssetKey  `json:"asset"`
	Balance      Balance   `json:"balance"`
	TimeExchange time.Time `json:"timeExchange"`
}
