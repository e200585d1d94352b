package engine

import (
	"errors"
	"fmt"

	"github.com/yanun0323/logs"

	terr "toucan/internal/errors"
	"toucan/internal/og"
	"toucan/internal/schema"
	"toucan/internal/state"
)

var ErrUnknownInstrument = errors.New("unknown instrument")

// Action executes an operator command. Commands bypass risk.
func (e *Engine) Action(cmd Command) ActionOutput {
	out := ActionOutput{Kind: cmd.Kind}
	switch cmd.Kind {
	case CommandSendCancelRequests:
		out.Cancels = e.SendCancelRequests(cmd.Cancels)
	case CommandSendOpenRequests:
		out.Opens = e.SendOpenRequests(cmd.Opens)
	case CommandClosePositions:
		out.Cancels, out.Opens = e.ClosePositions(cmd.Filter)
	case CommandCancelOrders:
		out.Cancels = e.CancelOrders(cmd.Filter)
	default:
		logs.Errorf("ignore unknown command kind: %d", cmd.Kind)
	}
	return out
}

// ClosePositions sends the strategy's close requests for positions matching filter.
func (e *Engine) ClosePositions(filter state.InstrumentFilter) (SendCancelsOutput, SendOpensOutput) {
	cancels, opens := e.strategy.ClosePositionsRequests(e.state, filter)
	return e.SendCancelRequests(cancels), e.SendOpenRequests(opens)
}

// CancelOrders cancels every active order of matching instruments that is not already
// being cancelled.
func (e *Engine) CancelOrders(filter state.InstrumentFilter) SendCancelsOutput {
	var cancels []schema.OrderRequestCancel
	for _, inst := range e.state.Instruments.Filtered(filter) {
		for _, order := range inst.Orders.All() {
			if order.State.Status == schema.OrderStatusCancelInFlight {
				continue
			}
			cancels = append(cancels, schema.OrderRequestCancel{Key: order.Key, ID: order.State.ID})
		}
	}
	return e.SendCancelRequests(cancels)
}

// SendCancelRequests sends every cancel and records the sent ones as in-flight.
func (e *Engine) SendCancelRequests(requests []schema.OrderRequestCancel) SendCancelsOutput {
	var out SendCancelsOutput
	for _, req := range requests {
		if err := e.send(req.Key, og.CancelRequest(req)); err != nil {
			out.Errors = append(out.Errors, RequestError[schema.OrderRequestCancel]{Request: req, Err: err})
			continue
		}
		out.Sent = append(out.Sent, req)
	}
	e.invariant(e.state.RecordInFlightCancels(out.Sent))
	return out
}

// SendOpenRequests sends every open and records the sent ones as in-flight.
func (e *Engine) SendOpenRequests(requests []schema.OrderRequestOpen) SendOpensOutput {
	var out SendOpensOutput
	for _, req := range requests {
		if err := e.send(req.Key, og.OpenRequest(req)); err != nil {
			out.Errors = append(out.Errors, RequestError[schema.OrderRequestOpen]{Request: req, Err: err})
			continue
		}
		out.Sent = append(out.Sent, req)
	}
	e.invariant(e.state.RecordInFlightOpens(out.Sent))
	return out
}

// send routes req to the execution client of key.Exchange and classifies failures.
// A closed transport is unrecoverable, everything else only fails the request.
func (e *Engine) send(key schema.OrderKey, req og.Request) error {
	if _, ok := e.state.Instruments.Instrument(key.Instrument); !ok {
		return terr.Recoverable(fmt.Errorf("%w: %s", ErrUnknownInstrument, key.Instrument))
	}
	tx, err := e.txs.Find(key.Exchange)
	if err != nil {
		return terr.Recoverable(err)
	}
	if err := tx.Send(req); err != nil {
		if errors.Is(err, og.ErrTransportClosed) {
			logs.Errorf("send %s request, cid: %s, err: %+v", req.Kind, key.CID, err)
			return terr.Unrecoverable(err)
		}
		return terr.Recoverable(err)
	}
	return nil
}
