package debug

import (
	"encoding/json"
	"sync"
	"time"
)

// Ring is a bounded, process-local buffer of recent raw webhook payloads.
// Diagnostics only; nothing in the pipeline reads it back.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	full    bool
}

type Entry struct {
	ReceivedAt time.Time       `json:"receivedAt"`
	Payload    json.RawMessage `json:"payload"`
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = 1
	}
	return &Ring{entries: make([]Entry, size)}
}

func (r *Ring) Add(payload []byte) {
	// Copy: the HTTP handler reuses its buffer after returning.
	stored := make([]byte, len(payload))
	copy(stored, payload)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.next] = Entry{ReceivedAt: time.Now(), Payload: stored}
	r.next = (r.next + 1) % len(r.entries)
	if r.next == 0 {
		r.full = true
	}
}

// Snapshot returns the buffered entries, oldest first.
func (r *Ring) Snapshot() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Entry
	if r.full {
		out = append(out, r.entries[r.next:]...)
	}
	out = append(out, r.entries[:r.next]...)

	// Drop zero slots from a buffer that never wrapped.
	result := make([]Entry, 0, len(out))
	for _, e := range out {
		if !e.ReceivedAt.IsZero() {
			result = append(result, e)
		}
	}
	return result
}
