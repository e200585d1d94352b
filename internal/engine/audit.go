package engine

import (
	"time"

	terr "toucan/internal/errors"
)

// AuditKind describes an audit.
type AuditKind uint8

const (
	AuditUnknown AuditKind = iota
	AuditProcess
	AuditShutdown
)

func (k AuditKind) String() string {
	switch k {
	case AuditProcess:
		return "process"
	case AuditShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Context is the sequence and engine time of an audit.
type Context struct {
	Sequence uint64    `json:"sequence"`
	Time     time.Time `json:"time"`
}

// Audit records the processing of one event.
type Audit struct {
	Kind    AuditKind `json:"kind"`
	Context Context   `json:"context"`
	Event   Event     `json:"event"`
	Outputs []Output  `json:"outputs,omitempty"`
	Errors  []error   `json:"-"`
}

// IsShutdown reports whether the audit ends the run.
func (a Audit) IsShutdown() bool {
	return a.Kind == AuditShutdown
}

// HasUnrecoverable reports whether any recorded error must halt the engine.
func (a Audit) HasUnrecoverable() bool {
	for _, err := range a.Errors {
		if terr.IsUnrecoverable(err) {
			return true
		}
	}
	return false
}

// Meta is the engine start time and the next sequence to assign.
type Meta struct {
	TimeStart time.Time `json:"timeStart"`
	Sequence  uint64    `json:"sequence"`
}

// next returns the current sequence and advances it.
func (m *Meta) next() uint64 {
	seq := m.Sequence
	m.Sequence++
	return seq
}
