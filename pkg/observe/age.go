package observe

import (
	"fmt"
	"time"
)

// Sequence number constants from RFC 7641 §3.4.
const (
	// MaxSequence is the largest observe sequence number. The option
	// value is a rolling 24-bit counter.
	MaxSequence uint32 = 1<<24 - 1

	// sequenceWindow is half the sequence space. A candidate within a
	// forward window of this size is considered newer.
	sequenceWindow uint32 = 1 << 23

	// FreshnessHorizon is the age after which sequence comparison is
	// abandoned and any notification is accepted as newer. Covers clock
	// skew and multiple counter wraps between notifications.
	FreshnessHorizon = 128 * time.Second
)

// StatusAge records the freshness of the most recently accepted
// notification for one observation: its observe sequence number and the
// local monotonic arrival time.
type StatusAge struct {
	// Sequence is the 24-bit rolling counter from the Observe option.
	Sequence uint32

	// Arrival is the local receipt time.
	Arrival time.Time
}

// String returns a compact representation for logging.
func (a StatusAge) String() string {
	return fmt.Sprintf("seq=%d arrival=%s", a.Sequence, a.Arrival.Format(time.RFC3339Nano))
}

// IsNewer reports whether candidate supersedes current. A candidate is
// newer if its sequence number is ahead of current within half the
// 24-bit sequence space (accounting for rollover past 2^24-1), or if
// current is older than FreshnessHorizon, in which case the sequence
// comparison is no longer meaningful and the candidate wins regardless.
//
// Equal sequence numbers inside the horizon are duplicates, never newer.
func IsNewer(current, candidate StatusAge) bool {
	if candidate.Arrival.Sub(current.Arrival) > FreshnessHorizon {
		return true
	}

	cur := current.Sequence & MaxSequence
	cand := candidate.Sequence & MaxSequence
	switch {
	case cand > cur:
		return cand-cur < sequenceWindow
	case cand < cur:
		return cur-cand > sequenceWindow
	default:
		return false
	}
}
