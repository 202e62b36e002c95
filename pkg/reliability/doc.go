// Package reliability implements the confirmable-message layer of the
// engine: retransmission timing for outbound CON messages, duplicate
// detection for inbound messages and reset synthesis.
//
// # Retransmission
//
// Confirmable messages are retransmitted with exponentially growing
// timeouts. The initial timeout is drawn uniformly from
// [AckTimeout, AckTimeout*AckRandomFactor) and doubles on every
// retransmission, up to MaxRetransmit attempts (RFC 7252 §4.2).
//
// # Duplicate Detection
//
// The transport may duplicate datagrams. Inbound messages are
// remembered by (endpoint, message ID) for ExchangeLifetime; a repeat
// within that window is reported as a duplicate so it can be
// re-acknowledged without being redelivered upstream.
//
// # Resets
//
// When the peer rejects a confirmable message with RST, the tracker
// surfaces the token of the affected exchange so the engine can
// synthesize the teardown signal consumed by the observation layer.
package reliability
