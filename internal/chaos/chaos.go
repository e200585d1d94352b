/*
Chaos degrades a market data feed to test how strategies cope with a lossy exchange link.

# Module
  - drop: skip events
  - duplicate: yield an event twice
  - reorder: shuffle events inside a window
  - delay: push back the receive time

# Source
  - market events of a backtest feed

# Produce
  - the degraded market events

# Sharded
  - one per feed
*/
package chaos

import (
	"fmt"
	"math/rand"
	"time"

	"toucan/internal/engine"
	"toucan/internal/runner"
)

// Config controls chaos injection behavior.
type Config struct {
	Seed          int64         `json:"seed"`
	DropRate      float64       `json:"dropRate"`
	DuplicateRate float64       `json:"duplicateRate"`
	ReorderWindow int           `json:"reorderWindow"`
	MaxDelay      time.Duration `json:"maxDelay"`
}

// Enabled reports whether cfg changes the feed at all.
func (c Config) Enabled() bool {
	return c.DropRate > 0 || c.DuplicateRate > 0 || c.ReorderWindow > 1 || c.MaxDelay > 0
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	if c.DropRate < 0 || c.DropRate > 1 {
		return fmt.Errorf("dropRate must be between 0 and 1")
	}
	if c.DuplicateRate < 0 || c.DuplicateRate > 1 {
		return fmt.Errorf("duplicateRate must be between 0 and 1")
	}
	if c.ReorderWindow < 0 {
		return fmt.Errorf("reorderWindow must be >= 0")
	}
	if c.MaxDelay < 0 {
		return fmt.Errorf("maxDelay must be >= 0")
	}
	return nil
}

// Iterator applies chaos to the market events of an inner iterator. Other events pass
// through untouched and in order.
type Iterator struct {
	inner   runner.Iterator
	cfg     Config
	rng     *rand.Rand
	pending []engine.Event
	ready   []engine.Event
	done    bool
}

var _ runner.Iterator = (*Iterator)(nil)

// New wraps inner. A zero seed uses the current time.
func New(inner runner.Iterator, cfg Config) (*Iterator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReorderWindow == 0 {
		cfg.ReorderWindow = 1
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Iterator{
		inner: inner,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (it *Iterator) Next() (engine.Event, bool) {
	for len(it.ready) == 0 {
		if it.done {
			if len(it.pending) == 0 {
				return engine.Event{}, false
			}
			it.release()
			continue
		}
		event, ok := it.inner.Next()
		if !ok {
			it.done = true
			continue
		}
		if event.Kind != engine.EventKindMarket || event.Market == nil || event.Market.Item == nil {
			it.ready = append(it.ready, event)
			continue
		}
		it.process(event)
	}
	event := it.ready[0]
	it.ready = it.ready[1:]
	return event, true
}

func (it *Iterator) process(event engine.Event) {
	if it.shouldDrop() {
		return
	}
	it.pending = append(it.pending, it.applyDelay(event))
	if len(it.pending) >= it.cfg.ReorderWindow {
		it.release()
	}
}

// release moves one random pending event to the ready list.
func (it *Iterator) release() {
	idx := it.rng.Intn(len(it.pending))
	event := it.pending[idx]
	it.pending = append(it.pending[:idx], it.pending[idx+1:]...)
	it.ready = append(it.ready, it.applyDuplicate(event)...)
}

func (it *Iterator) shouldDrop() bool {
	return it.cfg.DropRate > 0 && it.rng.Float64() < it.cfg.DropRate
}

func (it *Iterator) applyDuplicate(event engine.Event) []engine.Event {
	out := []engine.Event{event}
	if it.cfg.DuplicateRate > 0 && it.rng.Float64() < it.cfg.DuplicateRate {
		out = append(out, event)
	}
	return out
}

func (it *Iterator) applyDelay(event engine.Event) engine.Event {
	if it.cfg.MaxDelay <= 0 {
		return event
	}
	delay := time.Duration(it.rng.Int63n(it.cfg.MaxDelay.Nanoseconds() + 1))
	if delay == 0 {
		return event
	}
	stream := *event.Market
	item := *stream.Item
	item.TimeReceived = item.TimeReceived.Add(delay)
	stream.Item = &item
	event.Market = &stream
	return event
}
