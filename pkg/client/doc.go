// Package client provides the high-level CoAP client engine.
//
// The Client owns the datagram transport, allocates tokens and message
// IDs, retransmits confirmable messages via the reliability layer and
// routes responses to waiting callers or notification callbacks. The
// observation lifecycle handler from the observe package is composed
// into the message path at two points: every outbound item passes
// through Handler.Outbound before transmission, every inbound item
// through Handler.Inbound before dispatch. Stale notifications are the
// only traffic the engine withholds from its callers.
//
// Cancellation of an observation is signal-based: Cancel injects a
// CancelSignal into the outbound path, where it is consumed after
// tearing down local state. Deregister additionally informs the peer
// with an Observe=1 request.
package client
