package runner

import (
	"context"
	"errors"
	"sync/atomic"

	"toucan/internal/bus"
	"toucan/internal/engine"
	"toucan/internal/schema"
	"toucan/internal/state"
)

// Feed merges market, account and command streams into one totally ordered queue.
// Market data is dropped when the queue is full; every other source waits.
type Feed struct {
	queue  *bus.Queue[engine.Event]
	drops  atomic.Uint64
	onDrop func()
}

// NewFeed allocates a feed holding up to capacity pending events.
func NewFeed(capacity int) *Feed {
	return &Feed{queue: bus.NewQueue[engine.Event](capacity), onDrop: func() {}}
}

// OnDrop sets a callback run for every dropped market event.
func (f *Feed) OnDrop(fn func()) *Feed {
	if fn != nil {
		f.onDrop = fn
	}
	return f
}

// PublishMarket enqueues a market event without blocking. It reports false when the
// event was dropped.
func (f *Feed) PublishMarket(event schema.MarketStreamEvent) bool {
	err := f.queue.TryPublish(engine.MarketEvent(event))
	if errors.Is(err, bus.ErrQueueFull) {
		f.drops.Add(1)
		f.onDrop()
	}
	return err == nil
}

// PublishAccount enqueues an account event, waiting for capacity until ctx is done.
func (f *Feed) PublishAccount(ctx context.Context, event schema.AccountStreamEvent) error {
	return f.queue.Publish(ctx, engine.AccountEvent(event))
}

// PublishCommand enqueues an operator command.
func (f *Feed) PublishCommand(ctx context.Context, cmd engine.Command) error {
	return f.queue.Publish(ctx, engine.CommandEvent(cmd))
}

// PublishTradingState enqueues a trading state update.
func (f *Feed) PublishTradingState(ctx context.Context, s state.TradingState) error {
	return f.queue.Publish(ctx, engine.TradingStateEvent(s))
}

// Shutdown enqueues a shutdown event behind everything already queued.
func (f *Feed) Shutdown(ctx context.Context) error {
	return f.queue.Publish(ctx, engine.ShutdownEvent())
}

// C is the receive side for AsyncRun. It is closed by Close once drained.
func (f *Feed) C() <-chan engine.Event {
	return f.queue.C()
}

// Iterator adapts the feed to SyncRun; Next blocks until an event arrives or the feed
// is closed and drained.
func (f *Feed) Iterator() Iterator {
	return feedIterator{queue: f.queue}
}

// Close stops the feed from accepting events.
func (f *Feed) Close() {
	f.queue.Close()
}

// Drops returns the number of dropped market events.
func (f *Feed) Drops() uint64 {
	return f.drops.Load()
}

type feedIterator struct {
	queue *bus.Queue[engine.Event]
}

func (it feedIterator) Next() (engine.Event, bool) {
	event, err := it.queue.Recv(context.Background())
	if err != nil {
		return engine.Event{}, false
	}
	return event, true
}
