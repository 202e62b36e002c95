package client

import (
	"context"
	"errors"
	"net/netip"
	"testing"
	"time"

	"github.com/coapkit/coap-go/pkg/transport"
	"github.com/coapkit/coap-go/pkg/wire"
)

var server = netip.AddrPortFrom(netip.MustParseAddr("192.0.2.10"), 5683)

// packet is one in-memory datagram.
type packet struct {
	data     []byte
	endpoint netip.AddrPort
}

// fakeConn is an in-memory transport.Conn for tests. Datagrams sent by
// the client appear on out; the test injects peer traffic via in.
type fakeConn struct {
	in     chan packet
	out    chan packet
	closed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan packet, 16),
		out:    make(chan packet, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) Send(data []byte, endpoint netip.AddrPort) error {
	select {
	case <-f.closed:
		return transport.ErrClosed
	default:
	}
	f.out <- packet{data: append([]byte(nil), data...), endpoint: endpoint}
	return nil
}

func (f *fakeConn) Receive(timeout time.Duration) ([]byte, netip.AddrPort, error) {
	select {
	case p := <-f.in:
		return p.data, p.endpoint, nil
	case <-f.closed:
		return nil, netip.AddrPort{}, transport.ErrClosed
	}
}

func (f *fakeConn) LocalAddr() netip.AddrPort {
	return netip.AddrPortFrom(netip.MustParseAddr("127.0.0.1"), 40000)
}

func (f *fakeConn) Close() error {
	close(f.closed)
	return nil
}

var _ transport.Conn = (*fakeConn)(nil)

// inject delivers a peer message to the client.
func (f *fakeConn) inject(t *testing.T, msg *wire.Message) {
	t.Helper()
	data, err := wire.Encode(msg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	f.in <- packet{data: data, endpoint: server}
}

// expectSent reads the next datagram the client sent.
func (f *fakeConn) expectSent(t *testing.T) *wire.Message {
	t.Helper()
	select {
	case p := <-f.out:
		msg, err := wire.Decode(p.data)
		if err != nil {
			t.Fatalf("client sent undecodable datagram: %v", err)
		}
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("client sent nothing")
		return nil
	}
}

func newTestClient(t *testing.T) (*Client, *fakeConn) {
	t.Helper()
	conn := newFakeConn()
	c := NewWithConn(conn, DefaultConfig())
	t.Cleanup(func() { c.Close() })
	return c, conn
}

// piggyback builds the ACK response for a request.
func piggyback(req *wire.Message, code wire.Code) *wire.Message {
	return &wire.Message{
		Type:      wire.TypeAcknowledgement,
		Code:      code,
		MessageID: req.MessageID,
		Token:     req.Token,
	}
}

// notification builds a NON notification for an observed token.
func notification(token wire.Token, mid uint16, seq uint32, payload string) *wire.Message {
	m := &wire.Message{
		Type:      wire.TypeNonConfirmable,
		Code:      wire.CodeContent,
		MessageID: mid,
		Token:     token,
		Payload:   []byte(payload),
	}
	m.SetObserve(seq)
	return m
}

func TestObserveLifecycle(t *testing.T) {
	c, conn := newTestClient(t)

	received := make(chan *wire.Message, 8)
	type result struct {
		token wire.Token
		resp  *wire.Message
		err   error
	}
	done := make(chan result, 1)
	go func() {
		token, resp, err := c.Observe(context.Background(), server, "/sensors/temp",
			func(m *wire.Message) { received <- m })
		done <- result{token, resp, err}
	}()

	// The engine sends a CON GET with Observe=0.
	req := conn.expectSent(t)
	if req.Code != wire.CodeGET {
		t.Fatalf("sent code %s, want GET", req.Code)
	}
	if seq, ok := req.Observe(); !ok || seq != wire.ObserveRegister {
		t.Fatalf("sent Observe = (%d, %v), want registration", seq, ok)
	}

	// Initial piggybacked notification with seq 2.
	initial := piggyback(req, wire.CodeContent)
	initial.SetObserve(2)
	conn.inject(t, initial)

	res := <-done
	if res.err != nil {
		t.Fatalf("Observe failed: %v", res.err)
	}
	if len(c.Observations()) != 1 {
		t.Fatalf("Observations() = %d entries, want 1", len(c.Observations()))
	}

	// A newer notification reaches the handler.
	conn.inject(t, notification(res.token, 1001, 5, "21.5"))
	select {
	case m := <-received:
		if seq, _ := m.Observe(); seq != 5 {
			t.Errorf("handler got seq %d, want 5", seq)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never reached handler")
	}

	// A stale notification is withheld.
	conn.inject(t, notification(res.token, 1002, 3, "old"))
	// A newer one arrives afterwards and must still get through.
	conn.inject(t, notification(res.token, 1003, 6, "21.7"))
	select {
	case m := <-received:
		if seq, _ := m.Observe(); seq != 6 {
			t.Errorf("handler got seq %d, want 6 (stale 3 suppressed)", seq)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("follow-up notification never reached handler")
	}
}

func TestObserveErrorResponseEndsObservation(t *testing.T) {
	c, conn := newTestClient(t)

	received := make(chan *wire.Message, 8)
	done := make(chan error, 1)
	go func() {
		_, resp, err := c.Observe(context.Background(), server, "/missing",
			func(m *wire.Message) { received <- m })
		if err == nil && (resp == nil || !resp.Code.IsError()) {
			err = errors.New("expected error response")
		}
		done <- err
	}()

	req := conn.expectSent(t)
	conn.inject(t, piggyback(req, wire.CodeNotFound))

	if err := <-done; err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if n := len(c.Observations()); n != 0 {
		t.Errorf("Observations() = %d after error response, want 0", n)
	}
}

func TestGetPeerReset(t *testing.T) {
	c, conn := newTestClient(t)

	done := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), server, "/whoami")
		done <- err
	}()

	req := conn.expectSent(t)
	conn.inject(t, wire.NewReset(req.MessageID))

	if err := <-done; !errors.Is(err, ErrPeerReset) {
		t.Errorf("Get error = %v, want ErrPeerReset", err)
	}
}

func TestPeerResetTearsDownObservation(t *testing.T) {
	c, conn := newTestClient(t)

	received := make(chan *wire.Message, 8)
	done := make(chan wire.Token, 1)
	go func() {
		token, _, err := c.Observe(context.Background(), server, "/sensors/temp",
			func(m *wire.Message) { received <- m })
		if err != nil {
			t.Errorf("Observe failed: %v", err)
		}
		done <- token
	}()

	req := conn.expectSent(t)
	initial := piggyback(req, wire.CodeContent)
	initial.SetObserve(1)
	conn.inject(t, initial)
	<-done

	// The peer later resets one of our confirmable messages carrying
	// this observation's token (e.g. a deregister retransmission); here
	// we simulate by rejecting a fresh CON GET reusing the token.
	go func() {
		dreq := wire.NewRequest(wire.TypeConfirmable, wire.CodeGET, 9999, req.Token)
		dreq.SetPath("/sensors/temp")
		_, _ = c.request(context.Background(), server, dreq)
	}()
	sent := conn.expectSent(t)
	conn.inject(t, wire.NewReset(sent.MessageID))

	deadline := time.After(2 * time.Second)
	for len(c.Observations()) != 0 {
		select {
		case <-deadline:
			t.Fatal("observation survived peer reset")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestCancelIsLocal(t *testing.T) {
	c, conn := newTestClient(t)

	received := make(chan *wire.Message, 8)
	done := make(chan wire.Token, 1)
	go func() {
		token, _, err := c.Observe(context.Background(), server, "/state",
			func(m *wire.Message) { received <- m })
		if err != nil {
			t.Errorf("Observe failed: %v", err)
		}
		done <- token
	}()

	req := conn.expectSent(t)
	initial := piggyback(req, wire.CodeContent)
	initial.SetObserve(1)
	conn.inject(t, initial)
	token := <-done

	if err := c.Cancel(server, token); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if n := len(c.Observations()); n != 0 {
		t.Errorf("Observations() = %d after Cancel, want 0", n)
	}

	// Nothing goes on the wire and the handler is detached.
	select {
	case p := <-conn.out:
		t.Errorf("Cancel sent a datagram: %x", p.data)
	case <-time.After(50 * time.Millisecond):
	}

	if err := c.Cancel(server, token); !errors.Is(err, ErrNotObserved) {
		t.Errorf("second Cancel = %v, want ErrNotObserved", err)
	}
}

func TestConfirmableNotificationIsAcked(t *testing.T) {
	c, conn := newTestClient(t)

	received := make(chan *wire.Message, 8)
	done := make(chan wire.Token, 1)
	go func() {
		token, _, err := c.Observe(context.Background(), server, "/alarm",
			func(m *wire.Message) { received <- m })
		if err != nil {
			t.Errorf("Observe failed: %v", err)
		}
		done <- token
	}()

	req := conn.expectSent(t)
	initial := piggyback(req, wire.CodeContent)
	initial.SetObserve(1)
	conn.inject(t, initial)
	token := <-done

	// Important notifications arrive as CON and must be acknowledged.
	con := notification(token, 2000, 2, "fire")
	con.Type = wire.TypeConfirmable
	conn.inject(t, con)

	ack := conn.expectSent(t)
	if ack.Type != wire.TypeAcknowledgement || !ack.Code.IsEmpty() || ack.MessageID != 2000 {
		t.Errorf("expected empty ACK for mid 2000, got %s", ack)
	}
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("CON notification never reached handler")
	}

	// A duplicated CON is re-acknowledged but not redelivered.
	conn.inject(t, con)
	ack = conn.expectSent(t)
	if ack.MessageID != 2000 {
		t.Errorf("duplicate not re-acknowledged, got %s", ack)
	}
	select {
	case m := <-received:
		t.Errorf("duplicate CON redelivered: %s", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRetransmissionUntilAck(t *testing.T) {
	conn := newFakeConn()
	cfg := DefaultConfig()
	cfg.Backoff.AckTimeout = 20 * time.Millisecond
	cfg.Backoff.AckRandomFactor = 1.0
	cfg.Backoff.MaxRetransmit = 2
	c := NewWithConn(conn, cfg)
	defer c.Close()

	done := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), server, "/x")
		done <- err
	}()

	first := conn.expectSent(t)
	second := conn.expectSent(t) // retransmission after 20ms
	if first.MessageID != second.MessageID {
		t.Fatalf("retransmission changed message ID: %d -> %d", first.MessageID, second.MessageID)
	}

	conn.inject(t, piggyback(first, wire.CodeContent))
	if err := <-done; err != nil {
		t.Fatalf("Get failed despite response: %v", err)
	}
}

func TestRetransmissionExhaustion(t *testing.T) {
	conn := newFakeConn()
	cfg := DefaultConfig()
	cfg.Backoff.AckTimeout = 5 * time.Millisecond
	cfg.Backoff.AckRandomFactor = 1.0
	cfg.Backoff.MaxRetransmit = 1
	c := NewWithConn(conn, cfg)
	defer c.Close()

	_, err := c.Get(context.Background(), server, "/gone")
	if !errors.Is(err, ErrRetransmitExhausted) {
		t.Errorf("Get error = %v, want ErrRetransmitExhausted", err)
	}
}

func TestRequestAfterClose(t *testing.T) {
	conn := newFakeConn()
	c := NewWithConn(conn, DefaultConfig())
	c.Close()

	if _, err := c.Get(context.Background(), server, "/x"); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Get after Close = %v, want ErrClientClosed", err)
	}
}
