package transport

import (
	"net/netip"
	"time"
)

// Conn is a datagram connection serving multiple remote endpoints.
// Implemented by UDPConn.
type Conn interface {
	// Send transmits one datagram to the given endpoint.
	Send(data []byte, endpoint netip.AddrPort) error

	// Receive blocks until a datagram arrives or the timeout elapses.
	// A zero timeout blocks indefinitely.
	Receive(timeout time.Duration) (data []byte, endpoint netip.AddrPort, err error)

	// LocalAddr returns the local endpoint.
	LocalAddr() netip.AddrPort

	// Close closes the connection. A blocked Receive returns with an
	// error.
	Close() error
}

// Compile-time interface satisfaction check.
var _ Conn = (*UDPConn)(nil)
