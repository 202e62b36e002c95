package wire

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// MaxTokenLength is the maximum token length in bytes (RFC 7252 §3).
const MaxTokenLength = 8

// Token is the opaque correlation identifier matching a request to its
// responses and notifications. It is distinct from the transport-level
// message ID and may be empty.
type Token []byte

// Valid reports whether the token has a representable length.
func (t Token) Valid() bool {
	return len(t) <= MaxTokenLength
}

// Equal reports whether two tokens are byte-wise identical.
func (t Token) Equal(other Token) bool {
	return bytes.Equal(t, other)
}

// String returns the token as a hex string, or "<empty>" for a
// zero-length token.
func (t Token) String() string {
	if len(t) == 0 {
		return "<empty>"
	}
	return hex.EncodeToString(t)
}

// Option numbers used by this engine.
const (
	OptObserve       uint16 = 6
	OptURIPath       uint16 = 11
	OptContentFormat uint16 = 12
	OptURIQuery      uint16 = 15
	OptAccept        uint16 = 17
)

// Observe option values on requests.
const (
	// ObserveRegister starts an observation.
	ObserveRegister uint32 = 0

	// ObserveDeregister stops an observation.
	ObserveDeregister uint32 = 1
)

// Option is a single CoAP option instance. Options are kept sorted by
// number; repeatable options (e.g. Uri-Path) appear multiple times.
type Option struct {
	Number uint16
	Value  []byte
}

// Message is a decoded CoAP message.
type Message struct {
	Type      Type
	Code      Code
	MessageID uint16
	Token     Token
	Options   []Option
	Payload   []byte
}

// Validate checks structural constraints that hold for every message.
func (m *Message) Validate() error {
	if !m.Token.Valid() {
		return fmt.Errorf("token too long: %d bytes (max %d)", len(m.Token), MaxTokenLength)
	}
	if m.Code == CodeEmpty && (len(m.Token) > 0 || len(m.Options) > 0 || len(m.Payload) > 0) {
		return fmt.Errorf("empty message must not carry token, options or payload")
	}
	return nil
}

// AddOption appends an option, keeping the option list sorted by number.
func (m *Message) AddOption(number uint16, value []byte) {
	opt := Option{Number: number, Value: value}
	for i, existing := range m.Options {
		if existing.Number > number {
			m.Options = append(m.Options[:i], append([]Option{opt}, m.Options[i:]...)...)
			return
		}
	}
	m.Options = append(m.Options, opt)
}

// option returns the first option with the given number.
func (m *Message) option(number uint16) ([]byte, bool) {
	for _, opt := range m.Options {
		if opt.Number == number {
			return opt.Value, true
		}
		if opt.Number > number {
			break
		}
	}
	return nil, false
}

// removeOption removes all options with the given number.
func (m *Message) removeOption(number uint16) {
	kept := m.Options[:0]
	for _, opt := range m.Options {
		if opt.Number != number {
			kept = append(kept, opt)
		}
	}
	m.Options = kept
}

// Observe returns the value of the Observe option, if present. On
// requests the value selects registration or deregistration; on
// responses it is the 24-bit notification sequence number.
func (m *Message) Observe() (uint32, bool) {
	value, ok := m.option(OptObserve)
	if !ok {
		return 0, false
	}
	return decodeUint(value), true
}

// SetObserve sets the Observe option, replacing any existing value.
// Values are truncated to 24 bits per RFC 7641.
func (m *Message) SetObserve(value uint32) {
	m.removeOption(OptObserve)
	m.AddOption(OptObserve, encodeUint(value&0xFFFFFF))
}

// IsNotification reports whether the message is a response carrying an
// Observe sequence number, i.e. pushed resource state.
func (m *Message) IsNotification() bool {
	if !m.Code.IsResponse() {
		return false
	}
	_, ok := m.option(OptObserve)
	return ok
}

// Path returns the resource path assembled from Uri-Path options.
func (m *Message) Path() string {
	var buf bytes.Buffer
	for _, opt := range m.Options {
		if opt.Number == OptURIPath {
			buf.WriteByte('/')
			buf.Write(opt.Value)
		}
	}
	if buf.Len() == 0 {
		return "/"
	}
	return buf.String()
}

// SetPath replaces the Uri-Path options with the segments of path.
func (m *Message) SetPath(path string) {
	m.removeOption(OptURIPath)
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				m.AddOption(OptURIPath, []byte(path[start:i]))
			}
			start = i + 1
		}
	}
}

// ContentFormat returns the Content-Format option value, if present.
func (m *Message) ContentFormat() (uint32, bool) {
	value, ok := m.option(OptContentFormat)
	if !ok {
		return 0, false
	}
	return decodeUint(value), true
}

// SetContentFormat sets the Content-Format option.
func (m *Message) SetContentFormat(format uint32) {
	m.removeOption(OptContentFormat)
	m.AddOption(OptContentFormat, encodeUint(format))
}

// String returns a compact human-readable summary for logging.
func (m *Message) String() string {
	return fmt.Sprintf("%s %s mid=%d token=%s", m.Type, m.Code, m.MessageID, m.Token)
}

// NewRequest creates a request message with the given type, code and token.
func NewRequest(msgType Type, code Code, messageID uint16, token Token) *Message {
	return &Message{
		Type:      msgType,
		Code:      code,
		MessageID: messageID,
		Token:     token,
	}
}

// NewReset creates an empty reset message for the given message ID.
func NewReset(messageID uint16) *Message {
	return &Message{
		Type:      TypeReset,
		Code:      CodeEmpty,
		MessageID: messageID,
	}
}

// NewAck creates an empty acknowledgement for the given message ID.
func NewAck(messageID uint16) *Message {
	return &Message{
		Type:      TypeAcknowledgement,
		Code:      CodeEmpty,
		MessageID: messageID,
	}
}

// decodeUint decodes a variable-length unsigned option value.
// A zero-length value decodes to 0 per RFC 7252 §3.2.
func decodeUint(value []byte) uint32 {
	var v uint32
	for _, b := range value {
		v = v<<8 | uint32(b)
	}
	return v
}

// encodeUint encodes an unsigned value using the minimal number of
// bytes. Zero encodes to a zero-length value.
func encodeUint(v uint32) []byte {
	switch {
	case v == 0:
		return nil
	case v < 1<<8:
		return []byte{byte(v)}
	case v < 1<<16:
		return []byte{byte(v >> 8), byte(v)}
	case v < 1<<24:
		return []byte{byte(v >> 16), byte(v >> 8), byte(v)}
	default:
		return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
	}
}
