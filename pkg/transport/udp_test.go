package transport

import (
	"bytes"
	"errors"
	"net/netip"
	"testing"
	"time"
)

func TestSendReceiveLoopback(t *testing.T) {
	a, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer a.Close()

	b, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer b.Close()

	payload := []byte{0x40, 0x01, 0x12, 0x34}
	if err := a.Send(payload, b.LocalAddr()); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	data, from, err := b.Receive(2 * time.Second)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("received %x, want %x", data, payload)
	}
	if from != a.LocalAddr() {
		t.Errorf("source = %s, want %s", from, a.LocalAddr())
	}
}

func TestReceiveTimeout(t *testing.T) {
	c, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer c.Close()

	_, _, err = c.Receive(20 * time.Millisecond)
	if !errors.Is(err, ErrReceiveTimeout) {
		t.Errorf("Receive error = %v, want ErrReceiveTimeout", err)
	}
}

func TestReceiveAfterClose(t *testing.T) {
	c, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	c.Close()

	_, _, err = c.Receive(time.Second)
	if !errors.Is(err, ErrClosed) {
		t.Errorf("Receive error = %v, want ErrClosed", err)
	}
}

func TestSendInvalidEndpoint(t *testing.T) {
	c, err := Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer c.Close()

	if err := c.Send([]byte{0x00}, netip.AddrPort{}); err == nil {
		t.Error("Send to zero endpoint succeeded")
	}
}

func TestResolveEndpoint(t *testing.T) {
	ep, err := ResolveEndpoint("192.0.2.1:7000")
	if err != nil {
		t.Fatalf("ResolveEndpoint failed: %v", err)
	}
	if ep.Port() != 7000 {
		t.Errorf("port = %d, want 7000", ep.Port())
	}

	ep, err = ResolveEndpoint("192.0.2.1")
	if err != nil {
		t.Fatalf("ResolveEndpoint without port failed: %v", err)
	}
	if ep.Port() != DefaultPort {
		t.Errorf("default port = %d, want %d", ep.Port(), DefaultPort)
	}

	if _, err := ResolveEndpoint("not a host:port:extra"); err == nil {
		t.Error("ResolveEndpoint accepted a malformed address")
	}
}
