package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func captureEvents(t *testing.T, path string, events ...Event) {
	t.Helper()

	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		fl.Log(e)
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestFileLoggerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.cbor")

	captureEvents(t, path,
		Event{Timestamp: time.Now(), SessionID: "s1", Direction: DirectionOut, Layer: LayerWire, Category: CategoryMessage},
		Event{Timestamp: time.Now(), SessionID: "s1", Direction: DirectionIn, Layer: LayerObserve, Category: CategoryLifecycle,
			Observation: &ObservationEvent{Key: "192.0.2.1:5683/01", Transition: "registered"}},
	)

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()

	var events []Event
	for {
		event, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		events = append(events, event)
	}

	if len(events) != 2 {
		t.Fatalf("read %d events, want 2", len(events))
	}
	if events[1].Observation == nil || events[1].Observation.Transition != "registered" {
		t.Errorf("second event = %+v, want observation transition", events[1])
	}
}

func TestFilteredReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.cbor")

	captureEvents(t, path,
		Event{Timestamp: time.Now(), SessionID: "s1", Direction: DirectionIn, Layer: LayerWire, Category: CategoryMessage},
		Event{Timestamp: time.Now(), SessionID: "s1", Direction: DirectionOut, Layer: LayerWire, Category: CategoryMessage},
		Event{Timestamp: time.Now(), SessionID: "s1", Direction: DirectionIn, Layer: LayerTransport, Category: CategoryMessage},
	)

	in := DirectionIn
	wireLayer := LayerWire
	r, err := NewFilteredReader(path, Filter{Direction: &in, Layer: &wireLayer})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer r.Close()

	count := 0
	for {
		if _, err := r.Next(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		count++
	}
	if count != 1 {
		t.Errorf("filter matched %d events, want 1", count)
	}
}

func TestFileLoggerCloseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.cbor")
	fl, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	if err := fl.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := fl.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// Logging after close must not panic.
	fl.Log(Event{Timestamp: time.Now()})
}
