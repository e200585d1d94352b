package engine

import (
	"github.com/bytedance/sonic"
)

// EncodeEvent serializes an event for the journal.
func EncodeEvent(event Event) ([]byte, error) {
	return sonic.ConfigStd.Marshal(event)
}

// DecodeEvent parses a journal event payload.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := sonic.ConfigStd.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}
