/*
Runner drives an engine from an event feed until it stops.

# Module
  - sync: pulls events from an Iterator
  - async: waits on a channel between events
  - feed: merged market, account and command queue
  - sink: audit consumers, journal, position store, metrics, summary

# Source
  - feed events

# Produce
  - audits to the sink
  - a run summary

# Sharded
  - one runner per engine
*/
package runner

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"toucan/internal/engine"
)

// StopReason tells why a run ended.
type StopReason uint8

const (
	StopUnknown StopReason = iota
	StopShutdown
	StopFeedEnded
	StopCanceled
	StopUnrecoverable
	StopSinkError
)

func (r StopReason) String() string {
	switch r {
	case StopShutdown:
		return "shutdown"
	case StopFeedEnded:
		return "feed_ended"
	case StopCanceled:
		return "canceled"
	case StopUnrecoverable:
		return "unrecoverable"
	case StopSinkError:
		return "sink_error"
	default:
		return "unknown"
	}
}

// Summary describes a finished run. LastSequence is only meaningful when Processed > 0.
type Summary struct {
	Reason       StopReason `json:"reason"`
	Processed    uint64     `json:"processed"`
	LastSequence uint64     `json:"lastSequence"`
}

// Iterator yields events until it returns false.
type Iterator interface {
	Next() (engine.Event, bool)
}

// SliceIterator iterates over a fixed set of events.
type SliceIterator struct {
	events []engine.Event
	pos    int
}

// NewSliceIterator iterates over events in order.
func NewSliceIterator(events []engine.Event) *SliceIterator {
	return &SliceIterator{events: events}
}

func (it *SliceIterator) Next() (engine.Event, bool) {
	if it.pos >= len(it.events) {
		return engine.Event{}, false
	}
	event := it.events[it.pos]
	it.pos++
	return event, true
}

// SyncRun processes events pulled from feed until a Shutdown audit, the end of the feed,
// an unrecoverable audit or a sink failure. Execution clients are shut down on exit.
func SyncRun(e *engine.Engine, feed Iterator, sink Sink) (Summary, error) {
	l := newLoop(e, sink)
	ctx := context.Background()
	for {
		event, ok := feed.Next()
		if !ok {
			return l.finish(StopFeedEnded, nil)
		}
		if reason, err := l.handle(ctx, event); reason != StopUnknown {
			return l.finish(reason, err)
		}
	}
}

// AsyncRun is SyncRun over a channel. It also stops when ctx is done; it only waits
// between events, never while one is processed.
func AsyncRun(ctx context.Context, e *engine.Engine, feed <-chan engine.Event, sink Sink) (Summary, error) {
	l := newLoop(e, sink)
	for {
		select {
		case <-ctx.Done():
			return l.finish(StopCanceled, nil)
		case event, ok := <-feed:
			if !ok {
				return l.finish(StopFeedEnded, nil)
			}
			if reason, err := l.handle(ctx, event); reason != StopUnknown {
				return l.finish(reason, err)
			}
		}
	}
}

type loop struct {
	engine   *engine.Engine
	sink     Sink
	observer LatencyObserver
	summary  Summary
}

func newLoop(e *engine.Engine, sink Sink) *loop {
	if sink == nil {
		sink = Discard{}
	}
	observer, _ := sink.(LatencyObserver)
	return &loop{engine: e, sink: sink, observer: observer}
}

// handle processes one event and returns a non-unknown reason when the run must stop.
func (l *loop) handle(ctx context.Context, event engine.Event) (StopReason, error) {
	start := time.Now()
	audit := l.engine.Process(event)
	elapsed := time.Since(start)

	if !audit.IsShutdown() {
		l.summary.Processed++
		l.summary.LastSequence = audit.Context.Sequence
		if l.observer != nil {
			l.observer.ObserveLatency(audit, elapsed)
		}
	}

	if err := l.sink.Handle(ctx, audit); err != nil {
		logs.Errorf("sink audit, sequence: %d, err: %+v", audit.Context.Sequence, err)
		return StopSinkError, err
	}

	switch {
	case audit.IsShutdown():
		return StopShutdown, nil
	case audit.HasUnrecoverable():
		logs.Errorf("unrecoverable audit, sequence: %d, errors: %v", audit.Context.Sequence, audit.Errors)
		return StopUnrecoverable, nil
	}
	return StopUnknown, nil
}

func (l *loop) finish(reason StopReason, err error) (Summary, error) {
	l.engine.Shutdown()
	l.summary.Reason = reason
	logs.Infof("engine stopped, reason: %s, processed: %d, last sequence: %d", reason, l.summary.Processed, l.summary.LastSequence)
	return l.summary, err
}
