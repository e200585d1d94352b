package engine

import (
	terr "toucan/internal/errors"
	"toucan/internal/risk"
	"toucan/internal/schema"
)

// RequestError is a request that could not be sent.
type RequestError[T any] struct {
	Request T     `json:"request"`
	Err     error `json:"-"`
}

// SendRequestsOutput partitions requests into sent and failed.
type SendRequestsOutput[T any] struct {
	Sent   []T               `json:"sent"`
	Errors []RequestError[T] `json:"errors,omitempty"`
}

// IsEmpty reports whether nothing was sent or failed.
func (o SendRequestsOutput[T]) IsEmpty() bool {
	return len(o.Sent) == 0 && len(o.Errors) == 0
}

// UnrecoverableErrors returns the failures that must halt the engine.
func (o SendRequestsOutput[T]) UnrecoverableErrors() []error {
	var out []error
	for _, e := range o.Errors {
		if terr.IsUnrecoverable(e.Err) {
			out = append(out, e.Err)
		}
	}
	return out
}

type (
	SendCancelsOutput = SendRequestsOutput[schema.OrderRequestCancel]
	SendOpensOutput   = SendRequestsOutput[schema.OrderRequestOpen]
)

// ActionOutput is the result of an operator command.
type ActionOutput struct {
	Kind    CommandKind       `json:"kind"`
	Cancels SendCancelsOutput `json:"cancels"`
	Opens   SendOpensOutput   `json:"opens"`
}

// UnrecoverableErrors returns the failures that must halt the engine.
func (o ActionOutput) UnrecoverableErrors() []error {
	return append(o.Cancels.UnrecoverableErrors(), o.Opens.UnrecoverableErrors()...)
}

// GenerateAlgoOrdersOutput is the result of one strategy order generation.
type GenerateAlgoOrdersOutput struct {
	Cancels        SendCancelsOutput                         `json:"cancels"`
	Opens          SendOpensOutput                           `json:"opens"`
	RefusedCancels []risk.Refused[schema.OrderRequestCancel] `json:"refusedCancels,omitempty"`
	RefusedOpens   []risk.Refused[schema.OrderRequestOpen]   `json:"refusedOpens,omitempty"`
}

// IsEmpty reports whether the strategy generated nothing.
func (o GenerateAlgoOrdersOutput) IsEmpty() bool {
	return o.Cancels.IsEmpty() && o.Opens.IsEmpty() && len(o.RefusedCancels) == 0 && len(o.RefusedOpens) == 0
}

// UnrecoverableErrors returns the failures that must halt the engine.
func (o GenerateAlgoOrdersOutput) UnrecoverableErrors() []error {
	return append(o.Cancels.UnrecoverableErrors(), o.Opens.UnrecoverableErrors()...)
}

// OutputKind describes an audit output.
type OutputKind uint8

const (
	OutputUnknown OutputKind = iota
	OutputCommanded
	OutputOnTradingDisabled
	OutputAccountDisconnect
	OutputPositionExit
	OutputMarketDisconnect
	OutputAlgoOrders
)

func (k OutputKind) String() string {
	switch k {
	case OutputCommanded:
		return "commanded"
	case OutputOnTradingDisabled:
		return "on_trading_disabled"
	case OutputAccountDisconnect:
		return "account_disconnect"
	case OutputPositionExit:
		return "position_exit"
	case OutputMarketDisconnect:
		return "market_disconnect"
	case OutputAlgoOrders:
		return "algo_orders"
	default:
		return "unknown"
	}
}

// Output is one side effect recorded in an audit. Hook holds the strategy value for the
// OnTradingDisabled, AccountDisconnect and MarketDisconnect kinds.
type Output struct {
	Kind         OutputKind                `json:"kind"`
	Commanded    *ActionOutput             `json:"commanded,omitempty"`
	PositionExit *schema.PositionExited    `json:"positionExit,omitempty"`
	AlgoOrders   *GenerateAlgoOrdersOutput `json:"algoOrders,omitempty"`
	Hook         any                       `json:"hook,omitempty"`
}

func commandedOutput(out ActionOutput) Output {
	return Output{Kind: OutputCommanded, Commanded: &out}
}

func positionExitOutput(exited schema.PositionExited) Output {
	return Output{Kind: OutputPositionExit, PositionExit: &exited}
}

func algoOrdersOutput(out GenerateAlgoOrdersOutput) Output {
	return Output{Kind: OutputAlgoOrders, AlgoOrders: &out}
}

func hookOutput(kind OutputKind, value any) Output {
	return Output{Kind: kind, Hook: value}
}
