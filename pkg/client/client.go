package client

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	coaplog "github.com/coapkit/coap-go/pkg/log"
	"github.com/coapkit/coap-go/pkg/observe"
	"github.com/coapkit/coap-go/pkg/reliability"
	"github.com/coapkit/coap-go/pkg/transport"
	"github.com/coapkit/coap-go/pkg/wire"
)

// Client errors.
var (
	ErrClientClosed        = errors.New("client is closed")
	ErrPeerReset           = errors.New("peer rejected the exchange with a reset")
	ErrRetransmitExhausted = errors.New("retransmission budget exhausted")
	ErrNotObserved         = errors.New("no such observation")
)

// DefaultRequestTimeout bounds a request when the caller's context has
// no deadline of its own.
const DefaultRequestTimeout = 30 * time.Second

// Config configures a Client.
type Config struct {
	// ListenAddress is the local bind address. Default ":0".
	ListenAddress string

	// RequestTimeout bounds requests without a context deadline.
	RequestTimeout time.Duration

	// Logger receives engine logs. Nil disables logging.
	Logger *slog.Logger

	// EventLogger receives protocol events. Nil disables event capture.
	EventLogger coaplog.Logger

	// Backoff overrides the confirmable retransmission parameters.
	Backoff reliability.BackoffConfig
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddress:  ":0",
		RequestTimeout: DefaultRequestTimeout,
	}
}

// Handler receives notifications for one observation.
type Handler func(*wire.Message)

// Client is a CoAP client engine serving concurrent exchanges and
// observations against any number of remote endpoints.
type Client struct {
	conn    transport.Conn
	obs     *observe.Handler
	tracker *reliability.Tracker

	logger  *slog.Logger
	events  coaplog.Logger
	session string
	timeout time.Duration
	backoff reliability.BackoffConfig

	nextMessageID atomic.Uint32

	// pending routes the first response of an exchange to its waiting
	// caller, keyed by token.
	pendingMu sync.Mutex
	pending   map[string]chan *wire.Message

	// acks signals acknowledgement of outstanding confirmable messages
	// to their retransmission loops.
	ackMu sync.Mutex
	acks  map[ackKey]chan struct{}

	// notify holds per-observation notification handlers.
	notifyMu sync.RWMutex
	notify   map[observe.Key]Handler

	closeOnce sync.Once
	closed    chan struct{}
	readDone  chan struct{}
}

type ackKey struct {
	endpoint  netip.AddrPort
	messageID uint16
}

// New creates a client bound per cfg and starts its receive loop.
func New(cfg Config) (*Client, error) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":0"
	}
	conn, err := transport.Listen(cfg.ListenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to open transport: %w", err)
	}
	return NewWithConn(conn, cfg), nil
}

// NewWithConn creates a client over an existing connection. The client
// takes ownership of conn and closes it on Close.
func NewWithConn(conn transport.Conn, cfg Config) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	events := cfg.EventLogger
	if events == nil {
		events = coaplog.NoopLogger{}
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	c := &Client{
		conn:     conn,
		obs:      observe.NewHandler(observe.NewRegistry(), logger),
		tracker:  reliability.NewTracker(),
		logger:   logger,
		events:   events,
		session:  uuid.New().String(),
		timeout:  timeout,
		backoff:  cfg.Backoff,
		pending:  make(map[string]chan *wire.Message),
		acks:     make(map[ackKey]chan struct{}),
		notify:   make(map[observe.Key]Handler),
		closed:   make(chan struct{}),
		readDone: make(chan struct{}),
	}
	c.nextMessageID.Store(uint32(randUint16()))

	go c.readLoop()
	return c
}

// SessionID returns the unique identifier of this client session.
func (c *Client) SessionID() string {
	return c.session
}

// Observations returns the keys of all active observations.
func (c *Client) Observations() []observe.Key {
	return c.obs.Registry().Keys()
}

// Close shuts the engine down: the transport is closed, the receive
// loop drained and all waiting callers released.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
		<-c.readDone
		c.tracker.Stop()

		c.pendingMu.Lock()
		for token, ch := range c.pending {
			close(ch)
			delete(c.pending, token)
		}
		c.pendingMu.Unlock()

		c.obs.Registry().Clear()
	})
	return err
}

// isClosed reports whether Close has begun.
func (c *Client) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Get performs a GET request and returns the response.
func (c *Client) Get(ctx context.Context, endpoint netip.AddrPort, path string) (*wire.Message, error) {
	req := wire.NewRequest(wire.TypeConfirmable, wire.CodeGET, c.nextMID(), c.newToken())
	req.SetPath(path)
	return c.request(ctx, endpoint, req)
}

// Observe registers an observation of path on the given endpoint. The
// handler receives every accepted notification after the returned
// initial response; stale and duplicate notifications are filtered out.
// The returned token identifies the observation for Cancel/Deregister.
func (c *Client) Observe(ctx context.Context, endpoint netip.AddrPort, path string, handler Handler) (wire.Token, *wire.Message, error) {
	token := c.newToken()
	key := observe.NewKey(endpoint, token)

	c.notifyMu.Lock()
	c.notify[key] = handler
	c.notifyMu.Unlock()

	req := wire.NewRequest(wire.TypeConfirmable, wire.CodeGET, c.nextMID(), token)
	req.SetObserve(wire.ObserveRegister)
	req.SetPath(path)

	resp, err := c.request(ctx, endpoint, req)
	if err != nil {
		c.removeHandler(key)
		// Roll the registration back; the signal is consumed locally.
		c.obs.Outbound(endpoint, &observe.CancelSignal{Endpoint: endpoint, Token: token})
		return nil, nil, err
	}
	if resp.Code.IsError() {
		// The lifecycle handler has already dropped the observation.
		c.removeHandler(key)
		return nil, resp, nil
	}
	return token, resp, nil
}

// Cancel tears down an observation locally without informing the peer.
// The next notification from the peer will be rejected by the
// reliability layer. Returns ErrNotObserved for unknown observations.
func (c *Client) Cancel(endpoint netip.AddrPort, token wire.Token) error {
	key := observe.NewKey(endpoint, token)
	if !c.obs.Registry().Contains(key) {
		return ErrNotObserved
	}
	c.removeHandler(key)
	c.obs.Outbound(endpoint, &observe.CancelSignal{Endpoint: endpoint, Token: token})
	return nil
}

// Deregister cancels an observation and informs the peer with an
// Observe=1 request reusing the observation's token. The peer's
// confirmation response is returned.
func (c *Client) Deregister(ctx context.Context, endpoint netip.AddrPort, path string, token wire.Token) (*wire.Message, error) {
	key := observe.NewKey(endpoint, token)
	if !c.obs.Registry().Contains(key) {
		return nil, ErrNotObserved
	}
	c.removeHandler(key)

	req := wire.NewRequest(wire.TypeConfirmable, wire.CodeGET, c.nextMID(), token)
	req.SetObserve(wire.ObserveDeregister)
	req.SetPath(path)
	return c.request(ctx, endpoint, req)
}

// request sends a request through the outbound interception point and
// waits for the correlated response.
func (c *Client) request(ctx context.Context, endpoint netip.AddrPort, req *wire.Message) (*wire.Message, error) {
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	respCh := make(chan *wire.Message, 1)
	c.pendingMu.Lock()
	c.pending[string(req.Token)] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, string(req.Token))
		c.pendingMu.Unlock()
	}()

	if err := c.send(ctx, endpoint, req); err != nil {
		return nil, err
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return nil, ErrPeerReset
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.closed:
		return nil, ErrClientClosed
	}
}

// send passes a message through the outbound interception point and
// transmits it, driving retransmission for confirmable messages.
func (c *Client) send(ctx context.Context, endpoint netip.AddrPort, msg *wire.Message) error {
	if c.obs.Outbound(endpoint, msg) != observe.VerdictForward {
		return nil
	}

	data, err := wire.Encode(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	c.logMessage(coaplog.DirectionOut, endpoint, msg)

	if msg.Type != wire.TypeConfirmable {
		return c.conn.Send(data, endpoint)
	}
	return c.sendConfirmable(ctx, endpoint, msg, data)
}

// sendConfirmable transmits a CON message and retransmits it on the
// backoff schedule until acknowledged, rejected or exhausted.
func (c *Client) sendConfirmable(ctx context.Context, endpoint netip.AddrPort, msg *wire.Message, data []byte) error {
	backoff := reliability.NewBackoffWithConfig(c.backoff)
	c.tracker.Track(endpoint, msg.MessageID, msg.Token, backoff)

	key := ackKey{endpoint, msg.MessageID}
	ackCh := make(chan struct{})
	c.ackMu.Lock()
	c.acks[key] = ackCh
	c.ackMu.Unlock()
	defer func() {
		c.ackMu.Lock()
		delete(c.acks, key)
		c.ackMu.Unlock()
	}()

	for {
		if err := c.conn.Send(data, endpoint); err != nil {
			c.tracker.TimeOut(endpoint, msg.MessageID)
			return err
		}

		timer := time.NewTimer(backoff.Next())
		select {
		case <-ackCh:
			timer.Stop()
			return nil
		case <-ctx.Done():
			timer.Stop()
			c.tracker.TimeOut(endpoint, msg.MessageID)
			return ctx.Err()
		case <-c.closed:
			timer.Stop()
			return ErrClientClosed
		case <-timer.C:
			if backoff.Exhausted() {
				c.tracker.TimeOut(endpoint, msg.MessageID)
				return ErrRetransmitExhausted
			}
			c.logger.Debug("retransmitting confirmable message",
				slog.String("endpoint", endpoint.String()),
				slog.Int("attempt", backoff.Attempts()))
		}
	}
}

// signalAck releases the retransmission loop for (endpoint, messageID).
func (c *Client) signalAck(endpoint netip.AddrPort, messageID uint16) {
	c.ackMu.Lock()
	defer c.ackMu.Unlock()
	if ch, ok := c.acks[ackKey{endpoint, messageID}]; ok {
		close(ch)
		delete(c.acks, ackKey{endpoint, messageID})
	}
}

// nextMID returns the next transport-level message ID.
func (c *Client) nextMID() uint16 {
	return uint16(c.nextMessageID.Add(1))
}

// newToken allocates a fresh random 8-byte token.
func (c *Client) newToken() wire.Token {
	token := make(wire.Token, wire.MaxTokenLength)
	if _, err := rand.Read(token); err != nil {
		panic(fmt.Sprintf("failed to read random token: %v", err))
	}
	return token
}

func (c *Client) removeHandler(key observe.Key) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	delete(c.notify, key)
}

// randUint16 seeds the message ID counter.
func randUint16() uint16 {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("failed to seed message ID: %v", err))
	}
	return uint16(b[0])<<8 | uint16(b[1])
}

// logMessage emits a wire-layer protocol event.
func (c *Client) logMessage(direction coaplog.Direction, endpoint netip.AddrPort, msg *wire.Message) {
	event := coaplog.Event{
		Timestamp:  time.Now(),
		SessionID:  c.session,
		Direction:  direction,
		Layer:      coaplog.LayerWire,
		Category:   coaplog.CategoryMessage,
		RemoteAddr: endpoint.String(),
		Message: &coaplog.MessageEvent{
			Type:        msg.Type.String(),
			Code:        msg.Code.String(),
			MessageID:   msg.MessageID,
			PayloadSize: len(msg.Payload),
		},
	}
	if len(msg.Token) > 0 {
		event.Message.Token = msg.Token.String()
	}
	if seq, ok := msg.Observe(); ok {
		observeValue := seq
		event.Message.Observe = &observeValue
	}
	c.events.Log(event)
}
