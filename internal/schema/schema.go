package schema

// SchemaVersion is the current journal schema version.
const SchemaVersion uint16 = 1

// EventType defines the category of an engine event stored in the journal.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventShutdown
	EventCommand
	EventTradingState
	EventAccount
	EventMarket
)

func (t EventType) String() string {
	switch t {
	case EventShutdown:
		return "shutdown"
	case EventCommand:
		return "command"
	case EventTradingState:
		return "trading_state"
	case EventAccount:
		return "account"
	case EventMarket:
		return "market"
	default:
		return "unknown"
	}
}

// EventHeader is the common metadata attached to every journal record.
// Seq is the engine sequence assigned to the event, TsEvent the engine
// time at dispatch and TsRecv the wall time the record was written.
type EventHeader struct {
	Type    EventType
	Version uint16
	Source  uint16
	Flags   uint16
	Seq     uint64
	TsEvent int64
	TsRecv  int64
	TraceID uint64
}

// Header flags.
const (
	// FlagHasErrors marks a record whose audit carried unrecoverable errors.
	FlagHasErrors uint16 = 1 << iota
	// FlagHasOutput marks a record whose audit carried at least one output.
	FlagHasOutput
)

// NewHeader builds a header with the current schema version.
func NewHeader(eventType EventType, source uint16, seq uint64, tsEvent, tsRecv int64) EventHeader {
	return EventHeader{
		Type:    eventType,
		Version: SchemaVersion,
		Source:  source,
		Seq:     seq,
		TsEvent: tsEvent,
		TsRecv:  tsRecv,
	}
}
