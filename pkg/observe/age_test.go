package observe

import (
	"testing"
	"time"
)

func TestIsNewerIrreflexive(t *testing.T) {
	now := time.Now()
	for _, seq := range []uint32{0, 1, 1 << 22, MaxSequence} {
		age := StatusAge{Sequence: seq, Arrival: now}
		if IsNewer(age, age) {
			t.Errorf("IsNewer(x, x) = true for seq=%d", seq)
		}
	}
}

func TestIsNewerForward(t *testing.T) {
	now := time.Now()
	current := StatusAge{Sequence: 5, Arrival: now}
	candidate := StatusAge{Sequence: 6, Arrival: now}

	if !IsNewer(current, candidate) {
		t.Error("seq 6 should supersede seq 5")
	}
	if IsNewer(candidate, current) {
		t.Error("seq 5 must not supersede seq 6")
	}
}

func TestIsNewerRollover(t *testing.T) {
	now := time.Now()

	// Wrapped forward past 2^24-1 back toward 0.
	current := StatusAge{Sequence: 16777214, Arrival: now}
	candidate := StatusAge{Sequence: 1, Arrival: now}
	if !IsNewer(current, candidate) {
		t.Error("seq 1 should supersede seq 16777214 (rollover)")
	}
	if IsNewer(candidate, current) {
		t.Error("seq 16777214 must not supersede seq 1")
	}
}

func TestIsNewerWindowBoundary(t *testing.T) {
	now := time.Now()

	// Exactly half the sequence space ahead is ambiguous, not newer.
	current := StatusAge{Sequence: 0, Arrival: now}
	candidate := StatusAge{Sequence: sequenceWindow, Arrival: now}
	if IsNewer(current, candidate) {
		t.Error("candidate exactly 2^23 ahead must not be newer")
	}

	candidate.Sequence = sequenceWindow - 1
	if !IsNewer(current, candidate) {
		t.Error("candidate 2^23-1 ahead should be newer")
	}
}

func TestIsNewerFreshnessFallback(t *testing.T) {
	stale := time.Now().Add(-FreshnessHorizon - time.Second)

	// Sequence comparison says older, but the tracked state has aged out.
	current := StatusAge{Sequence: 100, Arrival: stale}
	candidate := StatusAge{Sequence: 3, Arrival: time.Now()}
	if !IsNewer(current, candidate) {
		t.Error("candidate should win once tracked state exceeds the freshness horizon")
	}

	// Inside the horizon the sequence comparison stands.
	current.Arrival = time.Now().Add(-time.Second)
	if IsNewer(current, candidate) {
		t.Error("older sequence inside the horizon must not be newer")
	}
}

func TestIsNewerZeroArrivalAlwaysSuperseded(t *testing.T) {
	// A freshly registered observation has a zero status age; the first
	// notification must always be accepted, whatever its sequence number.
	for _, seq := range []uint32{0, 1, MaxSequence} {
		candidate := StatusAge{Sequence: seq, Arrival: time.Now()}
		if !IsNewer(StatusAge{}, candidate) {
			t.Errorf("first notification with seq=%d rejected", seq)
		}
	}
}
