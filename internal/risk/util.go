package risk

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrZeroDenominator = errors.New("zero denominator")
	ErrHigherThanLimit = errors.New("input higher than limit")
)

// QuoteNotional returns quantity * price * contractSize.
func QuoteNotional(quantity, price, contractSize decimal.Decimal) decimal.Decimal {
	return quantity.Mul(price).Mul(contractSize)
}

// AbsPercentDifference returns |a-b| / b as a fraction.
func AbsPercentDifference(a, b decimal.Decimal) (decimal.Decimal, error) {
	if b.IsZero() {
		return decimal.Zero, ErrZeroDenominator
	}
	return a.Sub(b).Abs().Div(b), nil
}

// CheckHigherThan fails for inputs above Limit.
type CheckHigherThan struct {
	Limit decimal.Decimal `json:"limit"`
}

func (c CheckHigherThan) Check(input decimal.Decimal) error {
	if input.GreaterThan(c.Limit) {
		return fmt.Errorf("%w: input %s > limit %s", ErrHigherThanLimit, input, c.Limit)
	}
	return nil
}
