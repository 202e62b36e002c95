package wire

import (
	"errors"
	"fmt"
)

// Version is the protocol version encoded in every message header.
const Version = 1

// Codec errors.
var (
	ErrDatagramTooShort = errors.New("datagram too short")
	ErrBadVersion       = errors.New("unsupported protocol version")
	ErrBadTokenLength   = errors.New("invalid token length")
	ErrBadOption        = errors.New("malformed option")
	ErrEmptyPayload     = errors.New("payload marker present but payload empty")
)

// Payload marker separating options from payload.
const payloadMarker = 0xFF

// Encode serializes a message into its datagram form:
//
//	0                   1                   2                   3
//	|Ver|Typ|  TKL  |     Code      |          Message ID           |
//	|  Token (0-8 bytes) | Options (delta-encoded) | 0xFF | Payload |
func Encode(m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	buf := make([]byte, 0, 4+len(m.Token)+len(m.Payload)+8*len(m.Options))
	buf = append(buf,
		byte(Version<<6)|byte(m.Type)<<4|byte(len(m.Token)),
		byte(m.Code),
		byte(m.MessageID>>8),
		byte(m.MessageID),
	)
	buf = append(buf, m.Token...)

	var prev uint16
	for _, opt := range m.Options {
		if opt.Number < prev {
			return nil, fmt.Errorf("%w: options out of order (%d after %d)", ErrBadOption, opt.Number, prev)
		}
		buf = appendOption(buf, opt.Number-prev, opt.Value)
		prev = opt.Number
	}

	if len(m.Payload) > 0 {
		buf = append(buf, payloadMarker)
		buf = append(buf, m.Payload...)
	}
	return buf, nil
}

// Decode parses a datagram into a message.
func Decode(data []byte) (*Message, error) {
	if len(data) < 4 {
		return nil, ErrDatagramTooShort
	}
	if version := data[0] >> 6; version != Version {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, version)
	}

	tkl := int(data[0] & 0x0F)
	if tkl > MaxTokenLength {
		return nil, fmt.Errorf("%w: %d", ErrBadTokenLength, tkl)
	}
	if len(data) < 4+tkl {
		return nil, ErrDatagramTooShort
	}

	m := &Message{
		Type:      Type(data[0] >> 4 & 0x03),
		Code:      Code(data[1]),
		MessageID: uint16(data[2])<<8 | uint16(data[3]),
	}
	if tkl > 0 {
		m.Token = append(Token(nil), data[4:4+tkl]...)
	}

	pos := 4 + tkl
	var number uint16
	for pos < len(data) {
		if data[pos] == payloadMarker {
			pos++
			if pos == len(data) {
				return nil, ErrEmptyPayload
			}
			m.Payload = append([]byte(nil), data[pos:]...)
			return m, nil
		}

		delta, length, next, err := parseOptionHeader(data, pos)
		if err != nil {
			return nil, err
		}
		if next+length > len(data) {
			return nil, fmt.Errorf("%w: value extends past datagram end", ErrBadOption)
		}
		number += delta
		m.Options = append(m.Options, Option{
			Number: number,
			Value:  append([]byte(nil), data[next:next+length]...),
		})
		pos = next + length
	}
	return m, nil
}

// appendOption writes one delta-encoded option. Deltas and lengths of
// 13 and above use the extended encoding from RFC 7252 §3.1.
func appendOption(buf []byte, delta uint16, value []byte) []byte {
	deltaNibble, deltaExt := splitOptionField(uint16(delta))
	lenNibble, lenExt := splitOptionField(uint16(len(value)))

	buf = append(buf, deltaNibble<<4|lenNibble)
	buf = append(buf, deltaExt...)
	buf = append(buf, lenExt...)
	return append(buf, value...)
}

// splitOptionField returns the 4-bit nibble and extension bytes for an
// option delta or length field.
func splitOptionField(v uint16) (byte, []byte) {
	switch {
	case v < 13:
		return byte(v), nil
	case v < 269:
		return 13, []byte{byte(v - 13)}
	default:
		ext := v - 269
		return 14, []byte{byte(ext >> 8), byte(ext)}
	}
}

// parseOptionHeader reads the delta/length byte (plus extensions) at pos
// and returns the decoded delta, value length and the offset of the
// option value.
func parseOptionHeader(data []byte, pos int) (delta uint16, length int, next int, err error) {
	header := data[pos]
	next = pos + 1

	delta, next, err = parseOptionField(data, header>>4, next)
	if err != nil {
		return 0, 0, 0, err
	}
	lengthField, next, err := parseOptionField(data, header&0x0F, next)
	if err != nil {
		return 0, 0, 0, err
	}
	return delta, int(lengthField), next, nil
}

// parseOptionField resolves a 4-bit delta or length nibble, consuming
// extension bytes as needed. Nibble 15 is reserved (it marks the payload
// in the delta position, which is handled before this is called).
func parseOptionField(data []byte, nibble byte, pos int) (uint16, int, error) {
	switch nibble {
	case 13:
		if pos >= len(data) {
			return 0, 0, fmt.Errorf("%w: missing 1-byte extension", ErrBadOption)
		}
		return uint16(data[pos]) + 13, pos + 1, nil
	case 14:
		if pos+1 >= len(data) {
			return 0, 0, fmt.Errorf("%w: missing 2-byte extension", ErrBadOption)
		}
		return (uint16(data[pos])<<8 | uint16(data[pos+1])) + 269, pos + 2, nil
	case 15:
		return 0, 0, fmt.Errorf("%w: reserved field value 15", ErrBadOption)
	default:
		return uint16(nibble), pos, nil
	}
}
