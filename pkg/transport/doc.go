// Package transport provides the UDP datagram transport for the engine.
//
// CoAP runs over unreliable, unordered datagrams; this package only
// moves bytes to and from remote endpoints. Reliability (retransmission,
// deduplication) lives in the reliability package, message semantics in
// the wire package.
//
// A single Conn serves exchanges with any number of remote endpoints,
// the usual arrangement for a client or gateway maintaining many
// concurrent observations.
package transport
