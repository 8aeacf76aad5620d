package monitor

import (
	"testing"
	"time"
)

func TestLedger_MarkAndContains(t *testing.T) {
	l := NewLedger()
	expiry := time.Now().Add(time.Hour)

	if l.Contains("a") {
		t.Error("empty ledger should contain nothing")
	}

	l.Mark("a", expiry)
	if !l.Contains("a") {
		t.Error("marked identity missing")
	}

	// Re-marking is a no-op
	l.Mark("a", expiry)
	if l.Len() != 1 {
		t.Errorf("duplicate mark grew ledger to %d", l.Len())
	}
}

func TestLedger_SweepEvictsExpired(t *testing.T) {
	l := NewLedger()
	now := time.Now()

	l.Mark("expired-1", now.Add(-2*time.Hour))
	l.Mark("expired-2", now.Add(-time.Minute))
	l.Mark("active", now.Add(time.Hour))

	if evicted := l.Sweep(now); evicted != 2 {
		t.Errorf("expected 2 evictions, got %d", evicted)
	}
	if l.Contains("expired-1") || l.Contains("expired-2") {
		t.Error("expired identities survived sweep")
	}
	if !l.Contains("active") {
		t.Error("active identity evicted")
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 entry after sweep, got %d", l.Len())
	}
}

func TestLedger_ZeroExpiryGetsGraceWindow(t *testing.T) {
	l := NewLedger()
	l.Mark("no-expiry", time.Time{})

	if evicted := l.Sweep(time.Now()); evicted != 0 {
		t.Errorf("zero-expiry entry evicted immediately: %d", evicted)
	}
	if evicted := l.Sweep(time.Now().Add(25 * time.Hour)); evicted != 1 {
		t.Errorf("zero-expiry entry should age out after grace window, evicted %d", evicted)
	}
}

func TestLedger_SweepOrder(t *testing.T) {
	l := NewLedger()
	now := time.Now()

	// Insert out of expiry order; the heap must still evict correctly
	l.Mark("c", now.Add(3*time.Minute))
	l.Mark("a", now.Add(1*time.Minute))
	l.Mark("b", now.Add(2*time.Minute))

	if evicted := l.Sweep(now.Add(90 * time.Second)); evicted != 1 {
		t.Errorf("expected only the earliest entry evicted, got %d", evicted)
	}
	if l.Contains("a") || !l.Contains("b") || !l.Contains("c") {
		t.Error("wrong entry evicted")
	}
}
