package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"time"
)

// DefaultPort is the registered CoAP UDP port.
const DefaultPort = 5683

// MaxDatagramSize is the receive buffer size. CoAP recommends payloads
// that fit a 1152-byte message, but peers may send up to the UDP limit.
const MaxDatagramSize = 65507

// Transport errors.
var (
	ErrClosed          = errors.New("connection closed")
	ErrReceiveTimeout  = errors.New("receive timed out")
	ErrInvalidEndpoint = errors.New("invalid endpoint")
)

// UDPConn is a datagram connection bound to a local UDP port.
// It is safe for concurrent Send calls; Receive must be called from a
// single reader goroutine.
type UDPConn struct {
	conn *net.UDPConn
}

// Listen binds a datagram connection to the given local address, e.g.
// ":0" for an ephemeral client port or ":5683" for the CoAP port.
func Listen(address string) (*UDPConn, error) {
	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", address, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %q: %w", address, err)
	}
	return &UDPConn{conn: conn}, nil
}

// Send transmits one datagram to the given endpoint.
func (c *UDPConn) Send(data []byte, endpoint netip.AddrPort) error {
	if !endpoint.IsValid() {
		return ErrInvalidEndpoint
	}
	if _, err := c.conn.WriteToUDPAddrPort(data, endpoint); err != nil {
		return fmt.Errorf("send to %s failed: %w", endpoint, err)
	}
	return nil
}

// Receive blocks until a datagram arrives or the timeout elapses.
func (c *UDPConn) Receive(timeout time.Duration) ([]byte, netip.AddrPort, error) {
	if timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, netip.AddrPort{}, err
		}
	} else {
		if err := c.conn.SetReadDeadline(time.Time{}); err != nil {
			return nil, netip.AddrPort{}, err
		}
	}

	buf := make([]byte, MaxDatagramSize)
	n, endpoint, err := c.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return nil, netip.AddrPort{}, ErrReceiveTimeout
		}
		if errors.Is(err, net.ErrClosed) {
			return nil, netip.AddrPort{}, ErrClosed
		}
		return nil, netip.AddrPort{}, err
	}
	return buf[:n], netip.AddrPortFrom(endpoint.Addr().Unmap(), endpoint.Port()), nil
}

// LocalAddr returns the local endpoint.
func (c *UDPConn) LocalAddr() netip.AddrPort {
	addr, ok := c.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.AddrPort{}
	}
	return addr.AddrPort()
}

// Close closes the connection.
func (c *UDPConn) Close() error {
	return c.conn.Close()
}

// ResolveEndpoint parses "host:port" into an endpoint, applying the
// default CoAP port when none is given and resolving hostnames.
func ResolveEndpoint(address string) (netip.AddrPort, error) {
	if _, _, err := net.SplitHostPort(address); err != nil {
		address = net.JoinHostPort(address, fmt.Sprint(DefaultPort))
	}
	if ap, err := netip.ParseAddrPort(address); err == nil {
		return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
	}

	addr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("%w: %s", ErrInvalidEndpoint, address)
	}
	ap := addr.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port()), nil
}
