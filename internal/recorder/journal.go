package recorder

import (
	"context"
	"fmt"
	"slices"
	"time"

	"toucan/internal/engine"
	"toucan/internal/schema"
)

// Journal writes every processed engine event to the journal, stamped with its audit
// sequence and engine time.
type Journal struct {
	w      *Writer
	source uint16
	now    func() time.Time
}

// NewJournal records through w. source is stamped on every header.
func NewJournal(w *Writer, source uint16) *Journal {
	return &Journal{w: w, source: source, now: func() time.Time { return time.Now().UTC() }}
}

// Record appends the event of audit, waiting for queue capacity until ctx is done.
func (j *Journal) Record(ctx context.Context, audit engine.Audit) error {
	rec, err := j.record(audit.Context.Sequence, audit.Context.Time, audit.Event)
	if err != nil {
		return err
	}
	if len(audit.Outputs) != 0 {
		rec.Header.Flags |= schema.FlagHasOutput
	}
	if audit.HasUnrecoverable() {
		rec.Header.Flags |= schema.FlagHasErrors
	}
	return j.w.Append(ctx, rec)
}

// RecordEvent appends an event that was not processed by an engine, such as generated
// or captured market data.
func (j *Journal) RecordEvent(ctx context.Context, seq uint64, ts time.Time, event engine.Event) error {
	rec, err := j.record(seq, ts, event)
	if err != nil {
		return err
	}
	return j.w.Append(ctx, rec)
}

func (j *Journal) record(seq uint64, ts time.Time, event engine.Event) (Record, error) {
	payload, err := engine.EncodeEvent(event)
	if err != nil {
		return Record{}, fmt.Errorf("encode event, seq: %d: %w", seq, err)
	}
	header := schema.NewHeader(event.Kind.Type(), j.source, seq, ts.UnixNano(), j.now().UnixNano())
	return Record{Header: header, Payload: payload}, nil
}

// LoadEvents reads every journaled event. When kinds is not empty only events of those
// kinds are returned.
func LoadEvents(ctx context.Context, p *Playback, kinds ...engine.EventKind) ([]engine.Event, error) {
	var events []engine.Event
	err := p.Run(ctx, func(rec Record) error {
		event, err := decode(rec)
		if err != nil {
			return err
		}
		if len(kinds) == 0 || slices.Contains(kinds, event.Kind) {
			events = append(events, event)
		}
		return nil
	})
	return events, err
}

func decode(rec Record) (engine.Event, error) {
	event, err := engine.DecodeEvent(rec.Payload)
	if err != nil {
		return engine.Event{}, fmt.Errorf("decode event, seq: %d: %w", rec.Header.Seq, err)
	}
	if event.Kind.Type() != rec.Header.Type {
		return engine.Event{}, fmt.Errorf("%w: seq %d, header %s, payload %s", ErrUnexpectedEventType, rec.Header.Seq, rec.Header.Type, event.Kind)
	}
	return event, nil
}

// Replay feeds every journaled event through e in order and passes each audit to fn.
// e must start from the state the journal was recorded from, so the sequences match.
// It returns the number of events replayed.
func Replay(ctx context.Context, p *Playback, e *engine.Engine, fn func(engine.Audit) error) (int, error) {
	replayed := 0
	err := p.Run(ctx, func(rec Record) error {
		event, err := decode(rec)
		if err != nil {
			return err
		}

		audit := e.Process(event)
		if audit.Context.Sequence != rec.Header.Seq {
			return fmt.Errorf("%w: journal %d, engine %d", ErrSequenceMismatch, rec.Header.Seq, audit.Context.Sequence)
		}
		replayed++
		if fn == nil {
			return nil
		}
		return fn(audit)
	})
	return replayed, err
}
