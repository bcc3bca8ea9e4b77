package log

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestFileLoggerWriteAndReadBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cborlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	logger.Log(Event{
		Timestamp: time.Now(),
		SessionID: "a",
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityConnection,
			NewState: "CONNECTED",
		},
	})
	logger.Log(Event{
		Timestamp: time.Now(),
		SessionID: "a",
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityConnection,
			OldState: "CONNECTED",
			NewState: "DISCONNECTED",
			Reason:   "idle timeout",
		},
	})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	events, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[1].StateChange == nil || events[1].StateChange.Reason != "idle timeout" {
		t.Errorf("events[1].StateChange = %+v", events[1].StateChange)
	}
}

func TestFileLoggerCloseIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cborlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() error = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	// Logging after close is a no-op
	logger.Log(Event{SessionID: "ignored"})
}

func TestFileLoggerConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.cborlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				logger.Log(Event{Timestamp: time.Now(), SessionID: "c", Category: CategoryMessage})
			}
		}()
	}
	wg.Wait()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	events, err := ReadEvents(path)
	if err != nil {
		t.Fatalf("ReadEvents() error = %v", err)
	}
	if len(events) != 200 {
		t.Errorf("len(events) = %d, want 200", len(events))
	}
}

func TestMultiLoggerFansOut(t *testing.T) {
	var a, b recorder
	ml := NewMultiLogger(&a, &b)
	ml.Log(Event{SessionID: "x"})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Errorf("fan-out counts = %d, %d; want 1, 1", len(a.events), len(b.events))
	}
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Log(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}
