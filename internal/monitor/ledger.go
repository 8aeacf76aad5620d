package monitor

import (
	"container/heap"
	"time"
)

// Ledger tracks event identities already delivered, enforcing at-most-once
// notification per event. Entries carry the source event's expiry time and
// are swept once it passes, so the ledger stays bounded by the number of
// concurrently active fissures.
type Ledger struct {
	seen    map[string]struct{}
	expires expiryHeap
}

type expiryEntry struct {
	identity string
	expiry   time.Time
}

type expiryHeap []expiryEntry

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].expiry.Before(h[j].expiry) }
func (h expiryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x interface{}) { *h = append(*h, x.(expiryEntry)) }
func (h *expiryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}

func NewLedger() *Ledger {
	return &Ledger{seen: make(map[string]struct{})}
}

// Mark records an identity as notified. Identities with a zero expiry are
// given a grace window so they still age out eventually.
func (l *Ledger) Mark(identity string, expiry time.Time) {
	if _, ok := l.seen[identity]; ok {
		return
	}
	if expiry.IsZero() {
		expiry = time.Now().Add(24 * time.Hour)
	}
	l.seen[identity] = struct{}{}
	heap.Push(&l.expires, expiryEntry{identity: identity, expiry: expiry})
}

// Contains reports whether the identity was already notified.
func (l *Ledger) Contains(identity string) bool {
	_, ok := l.seen[identity]
	return ok
}

// Sweep evicts every entry whose expiry passed and returns the count.
func (l *Ledger) Sweep(now time.Time) int {
	evicted := 0
	for l.expires.Len() > 0 && l.expires[0].expiry.Before(now) {
		entry := heap.Pop(&l.expires).(expiryEntry)
		delete(l.seen, entry.identity)
		evicted++
	}
	return evicted
}

// Len reports the number of tracked identities.
func (l *Ledger) Len() int {
	return len(l.seen)
}
