package og

import (
	"toucan/internal/schema"
)

// RequestKind describes an execution request.
type RequestKind uint8

const (
	RequestUnknown RequestKind = iota
	RequestShutdown
	RequestCancel
	RequestOpen
)

func (k RequestKind) String() string {
	switch k {
	case RequestShutdown:
		return "shutdown"
	case RequestCancel:
		return "cancel"
	case RequestOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Request is what the engine sends to an execution client.
type Request struct {
	Kind   RequestKind                `json:"kind"`
	Cancel *schema.OrderRequestCancel `json:"cancel,omitempty"`
	Open   *schema.OrderRequestOpen   `json:"open,omitempty"`
}

// ShutdownRequest asks the execution client to stop.
func ShutdownRequest() Request {
	return Request{Kind: RequestShutdown}
}

// CancelRequest wraps a cancel request.
func CancelRequest(req schema.OrderRequestCancel) Request {
	return Request{Kind: RequestCancel, Cancel: &req}
}

// OpenRequest wraps an open request.
func OpenRequest(req schema.OrderRequestOpen) Request {
	return Request{Kind: RequestOpen, Open: &req}
}
