// Package wire defines the CoAP message model and binary codec.
//
// CoAP (RFC 7252) messages are compact binary datagrams with a fixed
// 4-byte header, an optional token of up to 8 bytes, delta-encoded
// options and an optional payload separated by a 0xFF marker.
//
// # Message Types
//
// There are four transport-level message types:
//   - Confirmable (CON): requires an acknowledgement
//   - Non-confirmable (NON): fire and forget
//   - Acknowledgement (ACK): confirms a CON message
//   - Reset (RST): rejects a message or tears down an observation
//
// # Observe Option
//
// The Observe option (number 6, RFC 7641) turns a GET request into a
// subscription. On requests its value selects registration (0) or
// deregistration (1); on responses it carries the 24-bit notification
// sequence number used for freshness ordering.
//
// # Payloads
//
// The wire format itself is bespoke binary, but payloads commonly use
// CBOR (content-format 60). MarshalPayload and UnmarshalPayload provide
// encoder/decoder modes configured for deterministic output.
package wire
