package stats

import (
	"sync"

	"github.com/velemoonkon/dnssentry/pkg/record"
)

// Window is a bounded batch holding the most recent records of a live feed.
// Snapshots are recomputed from scratch; nothing is tracked incrementally.
type Window struct {
	mu      sync.RWMutex
	entries []*record.Record
	size    int
	head    int
	count   int
}

// NewWindow creates a window keeping at most capacity records
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{
		entries: make([]*record.Record, capacity),
		size:    capacity,
	}
}

// Add appends a record, evicting the oldest when full
func (w *Window) Add(r *record.Record) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.entries[w.head] = r
	w.head = (w.head + 1) % w.size
	if w.count < w.size {
		w.count++
	}
}

// Records returns the held records, oldest first
func (w *Window) Records() []*record.Record {
	w.mu.RLock()
	defer w.mu.RUnlock()

	result := make([]*record.Record, w.count)
	start := 0
	if w.count == w.size {
		start = w.head // head points to oldest when full
	}
	for i := 0; i < w.count; i++ {
		result[i] = w.entries[(start+i)%w.size]
	}
	return result
}

// Len returns the number of records held
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.count
}

// Snapshot aggregates the records currently held
func (w *Window) Snapshot() FeatureStats {
	return Aggregate(w.Records())
}
