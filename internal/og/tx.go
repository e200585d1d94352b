package og

import (
	"errors"
	"fmt"
	"slices"

	"toucan/internal/bus"
	"toucan/internal/schema"
)

var (
	ErrNoRoute         = errors.New("no execution route for exchange")
	ErrTransportFull   = errors.New("execution transport full")
	ErrTransportClosed = errors.New("execution transport closed")
)

// Tx sends requests to one execution client without blocking.
type Tx interface {
	Send(req Request) error
}

// QueueTx is a Tx backed by a bounded bus queue.
type QueueTx struct {
	queue *bus.Queue[Request]
}

var _ Tx = (*QueueTx)(nil)

// NewQueueTx wraps queue as a Tx.
func NewQueueTx(queue *bus.Queue[Request]) *QueueTx {
	return &QueueTx{queue: queue}
}

// Send publishes req, mapping queue errors to transport errors.
func (t *QueueTx) Send(req Request) error {
	err := t.queue.TryPublish(req)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bus.ErrQueueFull):
		return fmt.Errorf("%w: %s", ErrTransportFull, req.Kind)
	case errors.Is(err, bus.ErrQueueClosed):
		return fmt.Errorf("%w: %s", ErrTransportClosed, req.Kind)
	default:
		return err
	}
}

// Close closes the underlying queue.
func (t *QueueTx) Close() {
	t.queue.Close()
}

// TxMap routes requests to the Tx of their exchange.
type TxMap struct {
	exchanges []schema.ExchangeID
	txs       map[schema.ExchangeID]Tx
}

// NewTxMap creates an empty route table.
func NewTxMap() *TxMap {
	return &TxMap{txs: make(map[schema.ExchangeID]Tx)}
}

// Register routes exchange to tx, replacing any previous route.
func (m *TxMap) Register(exchange schema.ExchangeID, tx Tx) *TxMap {
	if _, ok := m.txs[exchange]; !ok {
		m.exchanges = append(m.exchanges, exchange)
	}
	m.txs[exchange] = tx
	return m
}

// Find returns the Tx of exchange or ErrNoRoute.
func (m *TxMap) Find(exchange schema.ExchangeID) (Tx, error) {
	tx, ok := m.txs[exchange]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRoute, exchange)
	}
	return tx, nil
}

// Exchanges returns routed exchanges in registration order.
func (m *TxMap) Exchanges() []schema.ExchangeID {
	return slices.Clone(m.exchanges)
}

// Broadcast sends req to every Tx and joins the errors.
func (m *TxMap) Broadcast(req Request) error {
	var errs []error
	for _, exchange := range m.exchanges {
		if err := m.txs[exchange].Send(req); err != nil {
			errs = append(errs, fmt.Errorf("exchange %s: %w", exchange, err))
		}
	}
	return errors.Join(errs...)
}
