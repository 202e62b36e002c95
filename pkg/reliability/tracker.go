package reliability

import (
	"net/netip"
	"sync"
	"time"

	"github.com/coapkit/coap-go/pkg/wire"
)

// ExchangeState is the lifecycle state of a tracked confirmable exchange.
type ExchangeState uint8

const (
	// StateAwaitingAck - sent, no acknowledgement yet.
	StateAwaitingAck ExchangeState = iota

	// StateAcknowledged - peer acknowledged the message.
	StateAcknowledged

	// StateRejected - peer answered with a reset.
	StateRejected

	// StateTimedOut - the retransmission budget was exhausted.
	StateTimedOut
)

// String returns the state name.
func (s ExchangeState) String() string {
	switch s {
	case StateAwaitingAck:
		return "AWAITING_ACK"
	case StateAcknowledged:
		return "ACKNOWLEDGED"
	case StateRejected:
		return "REJECTED"
	case StateTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// exchangeKey identifies an exchange by peer and message ID.
type exchangeKey struct {
	endpoint  netip.AddrPort
	messageID uint16
}

// Exchange is one tracked outbound confirmable message.
type Exchange struct {
	Endpoint  netip.AddrPort
	MessageID uint16
	Token     wire.Token
	State     ExchangeState
	SentAt    time.Time

	// Backoff drives this exchange's retransmission schedule.
	Backoff *Backoff
}

// Tracker maintains outbound exchange state and inbound duplicate
// detection. It owns no timers itself beyond the cleanup loop; the
// engine drives retransmission using each exchange's Backoff.
type Tracker struct {
	mu sync.RWMutex

	outgoing map[exchangeKey]*Exchange

	// received remembers inbound message IDs for duplicate detection.
	received map[exchangeKey]time.Time
	window   time.Duration

	stop chan struct{}
	done chan struct{}
}

// NewTracker creates a tracker whose duplicate-detection window is
// ExchangeLifetime. The cleanup loop runs until Stop is called.
func NewTracker() *Tracker {
	return NewTrackerWithWindow(ExchangeLifetime)
}

// NewTrackerWithWindow creates a tracker with a custom window.
func NewTrackerWithWindow(window time.Duration) *Tracker {
	t := &Tracker{
		outgoing: make(map[exchangeKey]*Exchange),
		received: make(map[exchangeKey]time.Time),
		window:   window,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.cleanupLoop()
	return t
}

// Stop terminates the cleanup loop.
func (t *Tracker) Stop() {
	close(t.stop)
	<-t.done
}

// Track starts tracking an outbound confirmable message.
func (t *Tracker) Track(endpoint netip.AddrPort, messageID uint16, token wire.Token, backoff *Backoff) *Exchange {
	ex := &Exchange{
		Endpoint:  endpoint,
		MessageID: messageID,
		Token:     token,
		State:     StateAwaitingAck,
		SentAt:    time.Now(),
		Backoff:   backoff,
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.outgoing[exchangeKey{endpoint, messageID}] = ex
	return ex
}

// Acknowledge marks the exchange for (endpoint, messageID) as
// acknowledged and removes it, returning its token.
func (t *Tracker) Acknowledge(endpoint netip.AddrPort, messageID uint16) (wire.Token, bool) {
	return t.finish(endpoint, messageID, StateAcknowledged)
}

// Reject marks the exchange as rejected by a peer reset and removes it,
// returning its token so the caller can synthesize a teardown signal.
func (t *Tracker) Reject(endpoint netip.AddrPort, messageID uint16) (wire.Token, bool) {
	return t.finish(endpoint, messageID, StateRejected)
}

// TimeOut marks the exchange as timed out and removes it.
func (t *Tracker) TimeOut(endpoint netip.AddrPort, messageID uint16) (wire.Token, bool) {
	return t.finish(endpoint, messageID, StateTimedOut)
}

func (t *Tracker) finish(endpoint netip.AddrPort, messageID uint16, state ExchangeState) (wire.Token, bool) {
	key := exchangeKey{endpoint, messageID}

	t.mu.Lock()
	defer t.mu.Unlock()
	ex, exists := t.outgoing[key]
	if !exists {
		return nil, false
	}
	ex.State = state
	delete(t.outgoing, key)
	return ex.Token, true
}

// Pending returns the number of exchanges awaiting acknowledgement.
func (t *Tracker) Pending() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.outgoing)
}

// MarkReceived remembers an inbound message for duplicate detection and
// reports whether it was already known within the window.
func (t *Tracker) MarkReceived(endpoint netip.AddrPort, messageID uint16) (duplicate bool) {
	key := exchangeKey{endpoint, messageID}
	now := time.Now()

	t.mu.Lock()
	defer t.mu.Unlock()
	if seen, exists := t.received[key]; exists && now.Sub(seen) < t.window {
		return true
	}
	t.received[key] = now
	return false
}

// cleanupLoop evicts expired duplicate-detection entries.
func (t *Tracker) cleanupLoop() {
	defer close(t.done)

	interval := t.window / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case now := <-ticker.C:
			t.mu.Lock()
			for key, seen := range t.received {
				if now.Sub(seen) >= t.window {
					delete(t.received, key)
				}
			}
			t.mu.Unlock()
		}
	}
}
