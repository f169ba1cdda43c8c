package gateway

import "sync"

// replayEntry is one broadcast envelope kept for gap backfill.
type replayEntry struct {
	Seq  int64
	Data []byte
}

// ReplayBuffer keeps the most recent envelopes of one channel so a client
// that detects a channel_seq gap can fetch what it missed. Safe for
// concurrent use.
type ReplayBuffer struct {
	mu    sync.RWMutex
	ring  []replayEntry
	head  int // oldest entry
	count int
}

// NewReplayBuffer creates a buffer holding up to capacity envelopes.
func NewReplayBuffer(capacity int) *ReplayBuffer {
	if capacity <= 0 {
		capacity = defaultReplayDepth
	}
	return &ReplayBuffer{ring: make([]replayEntry, capacity)}
}

// Push stores an envelope, evicting the oldest when full. data must not be
// modified afterwards.
func (rb *ReplayBuffer) Push(seq int64, data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.count < len(rb.ring) {
		rb.ring[(rb.head+rb.count)%len(rb.ring)] = replayEntry{Seq: seq, Data: data}
		rb.count++
		return
	}
	rb.ring[rb.head] = replayEntry{Seq: seq, Data: data}
	rb.head = (rb.head + 1) % len(rb.ring)
}

// Range returns the entries with fromSeq <= seq <= toSeq, oldest first.
func (rb *ReplayBuffer) Range(fromSeq, toSeq int64) []replayEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var out []replayEntry
	for i := 0; i < rb.count; i++ {
		e := rb.ring[(rb.head+i)%len(rb.ring)]
		if e.Seq >= fromSeq && e.Seq <= toSeq {
			out = append(out, e)
		}
	}
	return out
}

// Len returns the number of buffered envelopes.
func (rb *ReplayBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}
