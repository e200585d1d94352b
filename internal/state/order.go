package state

import (
	"sort"

	"github.com/yanun0323/logs"

	"toucan/internal/schema"
)

// Orders tracks the active orders of one instrument keyed by client order id.
// Terminal orders are removed, never stored.
type Orders struct {
	byCID map[schema.ClientOrderID]*orderEntry
}

type orderEntry struct {
	order schema.Order
	// open is the last Open state seen, kept so a failed cancel can restore it.
	open *schema.OrderState
}

// NewOrders creates an empty order tracker.
func NewOrders() *Orders {
	return &Orders{byCID: make(map[schema.ClientOrderID]*orderEntry)}
}

// Len returns the number of active orders.
func (o *Orders) Len() int {
	return len(o.byCID)
}

// Get returns the order with client order id cid.
func (o *Orders) Get(cid schema.ClientOrderID) (schema.Order, bool) {
	e, ok := o.byCID[cid]
	if !ok {
		return schema.Order{}, false
	}
	return e.order, true
}

// All returns active orders sorted by client order id.
func (o *Orders) All() []schema.Order {
	out := make([]schema.Order, 0, len(o.byCID))
	for _, e := range o.byCID {
		out = append(out, e.order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.CID < out[j].Key.CID })
	return out
}

// RecordInFlightOpen stores an open request as OpenInFlight.
func (o *Orders) RecordInFlightOpen(req schema.OrderRequestOpen) {
	if e, ok := o.byCID[req.Key.CID]; ok {
		logs.Infof("ignore duplicate in-flight open, cid: %s, status: %s", req.Key.CID, e.order.State.Status)
		return
	}
	o.byCID[req.Key.CID] = &orderEntry{order: schema.OrderFromRequest(req)}
}

// RecordInFlightCancel moves an order to CancelInFlight.
func (o *Orders) RecordInFlightCancel(req schema.OrderRequestCancel) {
	e, ok := o.byCID[req.Key.CID]
	if !ok {
		logs.Infof("ignore in-flight cancel of untracked order, cid: %s", req.Key.CID)
		return
	}
	if e.order.State.Status == schema.OrderStatusCancelInFlight {
		logs.Infof("ignore duplicate in-flight cancel, cid: %s", req.Key.CID)
		return
	}
	if e.order.State.Status == schema.OrderStatusOpen {
		open := e.order.State
		e.open = &open
	}
	e.order.State.Status = schema.OrderStatusCancelInFlight
}

// UpdateFromOrderSnapshot reconciles an exchange order snapshot by client order id.
func (o *Orders) UpdateFromOrderSnapshot(order schema.Order) {
	cid := order.Key.CID
	switch order.State.Status {
	case schema.OrderStatusOpen:
		if order.State.FilledQuantity.GreaterThanOrEqual(order.Quantity) {
			delete(o.byCID, cid)
			return
		}
		open := order.State
		e, ok := o.byCID[cid]
		if !ok {
			o.byCID[cid] = &orderEntry{order: order, open: &open}
			return
		}
		// request parameters stay as sent, only the exchange state is taken
		e.open = &open
		if e.order.State.Status == schema.OrderStatusCancelInFlight {
			e.order.State = open
			e.order.State.Status = schema.OrderStatusCancelInFlight
			return
		}
		e.order.State = open

	case schema.OrderStatusOpenInFlight, schema.OrderStatusCancelInFlight:
		if _, ok := o.byCID[cid]; !ok {
			o.byCID[cid] = &orderEntry{order: order}
		}

	default:
		delete(o.byCID, cid)
	}
}

// UpdateFromCancelResponse applies an exchange cancel response.
func (o *Orders) UpdateFromCancelResponse(resp schema.OrderResponseCancel) {
	cid := resp.Key.CID
	if resp.Succeeded() {
		delete(o.byCID, cid)
		return
	}
	switch resp.Error {
	case schema.CancelErrorOrderNotFound, schema.CancelErrorOrderAlreadyFinished:
		delete(o.byCID, cid)
		return
	}

	e, ok := o.byCID[cid]
	if !ok {
		return
	}
	logs.Errorf("cancel failed, cid: %s, err: %s", cid, resp.Message)
	if e.open == nil {
		e.order.State.Status = schema.OrderStatusOpenInFlight
		return
	}
	e.order.State = *e.open
}
