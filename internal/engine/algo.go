package engine

// generateAlgoOrders asks the strategy for orders, filters them through risk and sends
// the approved ones.
func (e *Engine) generateAlgoOrders() GenerateAlgoOrdersOutput {
	cancels, opens := e.strategy.GenerateAlgoOrders(e.state)
	if len(cancels) == 0 && len(opens) == 0 {
		return GenerateAlgoOrdersOutput{}
	}

	checked := e.risk.Check(e.state, cancels, opens)
	return GenerateAlgoOrdersOutput{
		Cancels:        e.SendCancelRequests(checked.ApprovedCancels),
		Opens:          e.SendOpenRequests(checked.ApprovedOpens),
		RefusedCancels: checked.RefusedCancels,
		RefusedOpens:   checked.RefusedOpens,
	}
}
