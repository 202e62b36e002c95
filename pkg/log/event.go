package log

import (
	"time"
)

// Event is one protocol event captured at any layer of the engine.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the engine session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer endpoint (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Datagram    *DatagramEvent    `cbor:"7,keyasint,omitempty"`  // Transport layer
	Message     *MessageEvent     `cbor:"8,keyasint,omitempty"`  // Wire layer (decoded)
	Observation *ObservationEvent `cbor:"9,keyasint,omitempty"`  // Observation lifecycle
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"` // Errors at any layer
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

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the datagram layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the message codec layer (decoded messages).
	LayerWire Layer = 1
	// LayerObserve is the observation lifecycle layer.
	LayerObserve Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerObserve:
		return "OBSERVE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message.
	CategoryMessage Category = 0
	// CategoryLifecycle indicates an observation lifecycle transition.
	CategoryLifecycle Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryLifecycle:
		return "LIFECYCLE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// DatagramEvent captures raw datagram traffic at the transport layer.
type DatagramEvent struct {
	// Size is the datagram size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw bytes (may be truncated for large datagrams).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates whether Data was cut short.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded message at the wire layer.
type MessageEvent struct {
	// Type is the transport-level message type (CON/NON/ACK/RST).
	Type string `cbor:"1,keyasint"`

	// Code is the message code in dotted notation, e.g. "2.05".
	Code string `cbor:"2,keyasint"`

	// MessageID is the transport-level message identifier.
	MessageID uint16 `cbor:"3,keyasint"`

	// Token is the hex-encoded correlation token.
	Token string `cbor:"4,keyasint,omitempty"`

	// Observe is the Observe option value, if present.
	Observe *uint32 `cbor:"5,keyasint,omitempty"`

	// Path is the resource path for requests.
	Path string `cbor:"6,keyasint,omitempty"`

	// PayloadSize is the payload length in bytes.
	PayloadSize int `cbor:"7,keyasint,omitempty"`
}

// ObservationEvent captures a lifecycle transition in the observation
// registry.
type ObservationEvent struct {
	// Key is the observation key (endpoint/token).
	Key string `cbor:"1,keyasint"`

	// Transition names the lifecycle change, e.g. "registered",
	// "stopped", "stale-suppressed".
	Transition string `cbor:"2,keyasint"`

	// Sequence is the observe sequence number involved, if any.
	Sequence *uint32 `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	// Message is the error text.
	Message string `cbor:"1,keyasint"`

	// Context provides additional detail (e.g. the operation).
	Context string `cbor:"2,keyasint,omitempty"`
}
