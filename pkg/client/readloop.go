package client

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"

	coaplog "github.com/coapkit/coap-go/pkg/log"
	"github.com/coapkit/coap-go/pkg/observe"
	"github.com/coapkit/coap-go/pkg/transport"
	"github.com/coapkit/coap-go/pkg/wire"
)

// readLoop receives datagrams until the transport closes.
func (c *Client) readLoop() {
	defer close(c.readDone)

	for {
		data, endpoint, err := c.conn.Receive(0)
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || c.isClosed() {
				return
			}
			c.logger.Warn("receive failed", slog.String("error", err.Error()))
			continue
		}

		msg, err := wire.Decode(data)
		if err != nil {
			c.logger.Warn("dropping undecodable datagram",
				slog.String("endpoint", endpoint.String()),
				slog.String("error", err.Error()))
			continue
		}
		c.logMessage(coaplog.DirectionIn, endpoint, msg)
		c.handleInbound(endpoint, msg)
	}
}

// handleInbound applies reliability bookkeeping, drives the inbound
// interception point and dispatches what survives.
func (c *Client) handleInbound(endpoint netip.AddrPort, msg *wire.Message) {
	switch msg.Type {
	case wire.TypeAcknowledgement:
		c.tracker.Acknowledge(endpoint, msg.MessageID)
		c.signalAck(endpoint, msg.MessageID)
		if msg.Code.IsEmpty() {
			return
		}
		// Piggybacked response: continue to dispatch.

	case wire.TypeReset:
		token, ok := c.tracker.Reject(endpoint, msg.MessageID)
		c.signalAck(endpoint, msg.MessageID)
		if !ok {
			c.logger.Debug("reset for unknown exchange",
				slog.String("endpoint", endpoint.String()),
				slog.Uint64("mid", uint64(msg.MessageID)))
			return
		}
		c.dispatchReset(endpoint, token)
		return

	case wire.TypeConfirmable:
		duplicate := c.tracker.MarkReceived(endpoint, msg.MessageID)
		// CON messages are acknowledged even when duplicated; the ACK
		// itself passes the outbound interception point like all traffic.
		if err := c.send(context.Background(), endpoint, wire.NewAck(msg.MessageID)); err != nil {
			c.logger.Warn("failed to acknowledge",
				slog.String("endpoint", endpoint.String()),
				slog.String("error", err.Error()))
		}
		if duplicate {
			return
		}

	case wire.TypeNonConfirmable:
		if c.tracker.MarkReceived(endpoint, msg.MessageID) {
			return
		}
	}

	if c.obs.Inbound(endpoint, msg) == observe.VerdictDrop {
		return
	}
	c.dispatch(endpoint, msg)
}

// dispatch routes a forwarded message to its waiting caller or
// notification handler.
func (c *Client) dispatch(endpoint netip.AddrPort, msg *wire.Message) {
	if !msg.Code.IsResponse() {
		// Requests and other traffic have no consumer in a pure client.
		c.logger.Debug("ignoring non-response traffic",
			slog.String("endpoint", endpoint.String()),
			slog.String("message", msg.String()))
		return
	}

	token := string(msg.Token)
	c.pendingMu.Lock()
	ch, waiting := c.pending[token]
	if waiting {
		delete(c.pending, token)
	}
	c.pendingMu.Unlock()
	if waiting {
		ch <- msg
		return
	}

	key := observe.NewKey(endpoint, msg.Token)
	c.notifyMu.RLock()
	handler, observed := c.notify[key]
	c.notifyMu.RUnlock()
	if observed {
		// A terminal response ends the observation; the lifecycle
		// handler has already removed it from the registry.
		if !msg.IsNotification() || msg.Code.IsError() {
			c.removeHandler(key)
		}
		handler(msg)
		return
	}

	c.logger.Debug("unmatched response",
		slog.String("endpoint", endpoint.String()),
		slog.String("message", msg.String()))
}

// dispatchReset synthesizes the teardown signal for a rejected exchange
// and releases whoever was involved with its token.
func (c *Client) dispatchReset(endpoint netip.AddrPort, token wire.Token) {
	signal := &observe.ResetSignal{Endpoint: endpoint, Token: token}
	c.obs.Inbound(endpoint, signal)

	key := observe.NewKey(endpoint, token)
	c.removeHandler(key)

	// A waiting caller learns about the rejection via channel closure.
	c.pendingMu.Lock()
	if ch, ok := c.pending[string(token)]; ok {
		close(ch)
		delete(c.pending, string(token))
	}
	c.pendingMu.Unlock()
}
