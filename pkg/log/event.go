package log

import (
	"time"

	"github.com/easydarwin/easycms-go/pkg/protocol"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID uniquely identifies the session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Serial is the device serial (populated once a session registers).
	Serial string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Session/stream state
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the HTTP framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the envelope encoding layer (decoded JSON).
	LayerWire Layer = 1
	// LayerService is the session/handler layer.
	LayerService Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerService:
		return "SERVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (request/response/push).
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw HTTP frame at the transport layer.
type FrameEvent struct {
	// Size is the full frame size in bytes (header and body).
	Size int `cbor:"1,keyasint"`

	// Data is the frame payload, possibly truncated.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates Data was cut to the log size cap.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded protocol envelope.
type MessageEvent struct {
	// Kind is the message kind.
	Kind protocol.MessageKind `cbor:"1,keyasint"`

	// CSeq is the correlation sequence number as sent on the wire.
	CSeq string `cbor:"2,keyasint,omitempty"`

	// ErrorNum is the envelope result code (responses only).
	ErrorNum int `cbor:"3,keyasint,omitempty"`

	// ProcessingTime is how long the handler ran (responses only).
	ProcessingTime *time.Duration `cbor:"4,keyasint,omitempty"`
}

// StateEntity identifies what a state change applies to.
type StateEntity uint8

const (
	// StateEntityConnection tracks the TCP connection.
	StateEntityConnection StateEntity = 0
	// StateEntitySession tracks the session classification/lifecycle.
	StateEntitySession StateEntity = 1
	// StateEntityStream tracks a brokered media stream.
	StateEntityStream StateEntity = 2
)

// String returns the entity name.
func (e StateEntity) String() string {
	switch e {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	case StateEntityStream:
		return "STREAM"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures a session, connection, or stream transition.
type StateChangeEvent struct {
	// Entity is what changed state.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state name (may be empty on creation).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state name.
	NewState string `cbor:"3,keyasint"`

	// Reason gives optional context (e.g. "idle timeout", "evicted").
	Reason string `cbor:"4,keyasint,omitempty"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context gives optional handler/operation context.
	Context string `cbor:"3,keyasint,omitempty"`

	// Code is the envelope error number, when one applies.
	Code *int `cbor:"4,keyasint,omitempty"`
}
