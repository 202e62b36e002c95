package wire

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ContentFormatCBOR is the registered content-format for CBOR payloads.
const ContentFormatCBOR uint32 = 60

// encMode is the CBOR encoder mode for message payloads.
// Configured for deterministic encoding.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for message payloads.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient decoding for forward compatibility with unknown fields.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// MarshalPayload encodes a value to CBOR bytes for use as a message payload.
func MarshalPayload(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// UnmarshalPayload decodes a CBOR message payload into a value.
func UnmarshalPayload(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewPayloadEncoder creates a CBOR encoder that writes to w.
func NewPayloadEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewPayloadDecoder creates a CBOR decoder that reads from r.
func NewPayloadDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}
