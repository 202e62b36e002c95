package observe

import (
	"fmt"
	"log/slog"
	"net/netip"
	"time"

	"github.com/coapkit/coap-go/pkg/wire"
)

// Verdict tells the caller what to do with an intercepted item.
type Verdict uint8

const (
	// VerdictForward passes the item along unchanged.
	VerdictForward Verdict = iota

	// VerdictConsume means the item was handled locally and must not be
	// forwarded. The sender is not left waiting.
	VerdictConsume

	// VerdictDrop withholds the item from upstream delivery. Only stale
	// notifications are dropped.
	VerdictDrop
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictForward:
		return "FORWARD"
	case VerdictConsume:
		return "CONSUME"
	case VerdictDrop:
		return "DROP"
	default:
		return "UNKNOWN"
	}
}

// CancelSignal is an application-originated, non-network request to
// tear down an observation. It travels the outbound path and is
// consumed by the Handler, never forwarded to the network.
type CancelSignal struct {
	Endpoint netip.AddrPort
	Token    wire.Token
}

// ResetSignal indicates the peer sent a reset for an exchange, meaning
// it no longer recognizes the observation. Synthesized by the
// reliability layer from RST datagrams and delivered on the inbound
// path.
type ResetSignal struct {
	Endpoint netip.AddrPort
	Token    wire.Token
}

// Handler drives observation lifecycle transitions as traffic passes
// through its two interception points. It performs no I/O, owns no
// timers and never blocks beyond registry lock acquisition; registry
// locks are never held across a log call or a forward decision.
type Handler struct {
	registry *Registry
	logger   *slog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewHandler creates a lifecycle handler over the given registry.
// A nil logger disables logging.
func NewHandler(registry *Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
}

// Registry returns the handler's observation registry.
func (h *Handler) Registry() *Registry {
	return h.registry
}

// Outbound intercepts an item before it leaves toward the network.
// The closed set of outbound variants is *wire.Message and
// *CancelSignal; anything else is logged and treated as handled so the
// sender is never left waiting.
//
// Bookkeeping never blocks outbound traffic: messages are always
// forwarded, whatever the registry outcome.
func (h *Handler) Outbound(endpoint netip.AddrPort, item any) Verdict {
	switch m := item.(type) {
	case *wire.Message:
		if m.Code.IsRequest() {
			h.handleOutboundRequest(endpoint, m)
		}
		return VerdictForward

	case *CancelSignal:
		h.handleCancel(m)
		return VerdictConsume

	default:
		h.logger.Warn("unrecognized outbound item",
			slog.String("endpoint", endpoint.String()),
			slog.String("type", fmt.Sprintf("%T", item)))
		return VerdictConsume
	}
}

// Inbound intercepts an item after it arrives from the network. The
// closed set of inbound variants is *wire.Message and *ResetSignal;
// anything else is forwarded unchanged.
func (h *Handler) Inbound(endpoint netip.AddrPort, item any) Verdict {
	switch m := item.(type) {
	case *wire.Message:
		if m.Code.IsResponse() {
			return h.handleInboundResponse(endpoint, m)
		}
		return VerdictForward

	case *ResetSignal:
		h.handleReset(m)
		return VerdictForward

	default:
		return VerdictForward
	}
}

// handleOutboundRequest registers or unregisters an observation when
// the request carries an Observe option.
func (h *Handler) handleOutboundRequest(endpoint netip.AddrPort, m *wire.Message) {
	value, ok := m.Observe()
	if !ok {
		return
	}

	key := NewKey(endpoint, m.Token)
	if value == wire.ObserveRegister {
		if h.registry.Register(key) {
			h.logger.Info("observation registered", slog.String("key", key.String()))
		} else {
			h.logger.Error("observation conflict, keeping existing entry",
				slog.String("key", key.String()))
		}
		return
	}

	// Any non-zero value deregisters.
	if _, removed := h.registry.Unregister(key); removed {
		h.logger.Info("observation stopped by outbound request",
			slog.String("key", key.String()))
	} else {
		h.logger.Error("no observation found to stop",
			slog.String("key", key.String()))
	}
}

// handleCancel tears down an observation on an application-originated
// cancellation.
func (h *Handler) handleCancel(signal *CancelSignal) {
	key := NewKey(signal.Endpoint, signal.Token)
	if _, removed := h.registry.Unregister(key); removed {
		h.logger.Info("observation cancelled", slog.String("key", key.String()))
	} else {
		h.logger.Error("cancellation for unknown observation",
			slog.String("key", key.String()))
	}
}

// handleReset tears down a matching observation on a peer reset. The
// signal is forwarded upstream regardless of registry state.
func (h *Handler) handleReset(signal *ResetSignal) {
	key := NewKey(signal.Endpoint, signal.Token)
	if h.registry.Contains(key) {
		if _, removed := h.registry.Unregister(key); removed {
			h.logger.Info("observation stopped by peer reset",
				slog.String("key", key.String()))
		}
	}
}

// handleInboundResponse applies the lifecycle transition for a response
// and decides whether it reaches upstream. A response counts as an
// accepted notification only if it carries an Observe sequence number
// and is not an error; everything else that matches an active key tears
// the observation down.
func (h *Handler) handleInboundResponse(endpoint netip.AddrPort, m *wire.Message) Verdict {
	key := NewKey(endpoint, m.Token)

	if !m.IsNotification() || m.Code.IsError() {
		if h.registry.Contains(key) {
			if _, removed := h.registry.Unregister(key); removed {
				h.logger.Info("observation stopped by response",
					slog.String("key", key.String()),
					slog.String("code", m.Code.String()))
			}
		}
		return VerdictForward
	}

	current, exists := h.registry.Age(key)
	if !exists {
		// Fail open: the application may still want the data.
		h.logger.Warn("notification without matching observation",
			slog.String("key", key.String()))
		return VerdictForward
	}

	sequence, _ := m.Observe()
	candidate := StatusAge{Sequence: sequence, Arrival: h.now()}
	if !IsNewer(current, candidate) {
		h.logger.Debug("stale notification suppressed",
			slog.String("key", key.String()),
			slog.Uint64("current_seq", uint64(current.Sequence)),
			slog.Uint64("candidate_seq", uint64(candidate.Sequence)))
		return VerdictDrop
	}

	h.registry.Update(key, candidate)
	return VerdictForward
}
