package exception

import "github.com/yanun0323/errors"

// Config errors
var (
	ErrConfigInvalid             = errors.New("config: invalid")
	ErrConfigUnknownExchange     = errors.New("config: unknown exchange")
	ErrConfigDuplicateInstrument = errors.New("config: duplicate instrument")
	ErrConfigUnsupportedRoute    = errors.New("config: unsupported route")
	ErrConfigUnsupportedStrategy = errors.New("config: unsupported strategy")
	ErrConfigUnknownTradingState = errors.New("config: unknown trading state")
)
