package risk

import (
	"toucan/internal/schema"
	"toucan/internal/state"
)

// RiskManager filters strategy generated orders. Check must be pure and total: every
// input request ends up either approved or refused.
type RiskManager interface {
	Check(s *state.EngineState, cancels []schema.OrderRequestCancel, opens []schema.OrderRequestOpen) CheckResult
}

// Refused is a request the risk manager rejected, with the reason.
type Refused[T any] struct {
	Item   T      `json:"item"`
	Reason string `json:"reason"`
}

// CheckResult partitions requests into approved and refused.
type CheckResult struct {
	ApprovedCancels []schema.OrderRequestCancel          `json:"approvedCancels"`
	ApprovedOpens   []schema.OrderRequestOpen            `json:"approvedOpens"`
	RefusedCancels  []Refused[schema.OrderRequestCancel] `json:"refusedCancels"`
	RefusedOpens    []Refused[schema.OrderRequestOpen]   `json:"refusedOpens"`
}

// Default approves every request.
type Default struct{}

var _ RiskManager = Default{}

func (Default) Check(_ *state.EngineState, cancels []schema.OrderRequestCancel, opens []schema.OrderRequestOpen) CheckResult {
	return CheckResult{
		ApprovedCancels: cancels,
		ApprovedOpens:   opens,
	}
}
