package wire

import "fmt"

// Type represents the transport-level message type.
type Type uint8

const (
	// TypeConfirmable requires an acknowledgement from the peer.
	TypeConfirmable Type = 0

	// TypeNonConfirmable is sent without reliability guarantees.
	TypeNonConfirmable Type = 1

	// TypeAcknowledgement confirms receipt of a confirmable message.
	TypeAcknowledgement Type = 2

	// TypeReset indicates the peer could not process a message or no
	// longer recognizes the exchange it belongs to.
	TypeReset Type = 3
)

// String returns the message type name.
func (t Type) String() string {
	switch t {
	case TypeConfirmable:
		return "CON"
	case TypeNonConfirmable:
		return "NON"
	case TypeAcknowledgement:
		return "ACK"
	case TypeReset:
		return "RST"
	default:
		return "UNKNOWN"
	}
}

// Code is a CoAP message code: a 3-bit class and a 5-bit detail,
// conventionally written "c.dd" (e.g. 2.05 Content).
type Code uint8

// Request codes (class 0).
const (
	CodeEmpty  Code = 0x00 // 0.00, used by ACK/RST with no piggybacked response
	CodeGET    Code = 0x01 // 0.01
	CodePOST   Code = 0x02 // 0.02
	CodePUT    Code = 0x03 // 0.03
	CodeDELETE Code = 0x04 // 0.04
)

// Response codes (classes 2, 4 and 5).
const (
	CodeCreated Code = 0x41 // 2.01
	CodeDeleted Code = 0x42 // 2.02
	CodeValid   Code = 0x43 // 2.03
	CodeChanged Code = 0x44 // 2.04
	CodeContent Code = 0x45 // 2.05

	CodeBadRequest       Code = 0x80 // 4.00
	CodeUnauthorized     Code = 0x81 // 4.01
	CodeBadOption        Code = 0x82 // 4.02
	CodeForbidden        Code = 0x83 // 4.03
	CodeNotFound         Code = 0x84 // 4.04
	CodeMethodNotAllowed Code = 0x85 // 4.05
	CodeNotAcceptable    Code = 0x86 // 4.06

	CodeInternalServerError Code = 0xA0 // 5.00
	CodeNotImplemented      Code = 0xA1 // 5.01
	CodeBadGateway          Code = 0xA2 // 5.02
	CodeServiceUnavailable  Code = 0xA3 // 5.03
	CodeGatewayTimeout      Code = 0xA4 // 5.04
)

// Class returns the 3-bit code class (0 for requests, 2 for success
// responses, 4 and 5 for error responses).
func (c Code) Class() uint8 {
	return uint8(c) >> 5
}

// Detail returns the 5-bit code detail.
func (c Code) Detail() uint8 {
	return uint8(c) & 0x1F
}

// IsEmpty reports whether this is the empty code 0.00.
func (c Code) IsEmpty() bool {
	return c == CodeEmpty
}

// IsRequest reports whether the code is a (non-empty) request code.
func (c Code) IsRequest() bool {
	return c.Class() == 0 && c != CodeEmpty
}

// IsResponse reports whether the code is a response code.
func (c Code) IsResponse() bool {
	class := c.Class()
	return class >= 2 && class <= 5
}

// IsSuccess reports whether the code is a 2.xx success response.
func (c Code) IsSuccess() bool {
	return c.Class() == 2
}

// IsError reports whether the code is a 4.xx or 5.xx error response.
func (c Code) IsError() bool {
	class := c.Class()
	return class == 4 || class == 5
}

// String returns the code in dotted "c.dd" notation.
func (c Code) String() string {
	return fmt.Sprintf("%d.%02d", c.Class(), c.Detail())
}
