// internal/waveform/ring.go
package waveform

import "sync"

// RingSize is the sample ring capacity in sample-sets.
const RingSize = 3120

// Ring is the circular sample buffer filled by the sampling collaborator.
// filled is set the first time the write index wraps and stays set.
// produced counts every set ever pushed.
type Ring struct {
	mu       sync.Mutex
	buf      []SampleSet
	next     int
	filled   bool
	produced uint64
}

func NewRing() *Ring {
	return &Ring{buf: make([]SampleSet, RingSize)}
}

// Push stores one sample-set at the write index.
func (r *Ring) Push(s SampleSet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf[r.next] = s
	r.produced++
	r.next++
	if r.next == RingSize {
		r.next = 0
		r.filled = true
	}
}

// Cursor returns the write index and the filled flag.
func (r *Ring) Cursor() (next int, filled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.next, r.filled
}

// Produced is the number of sets pushed since the ring was made.
func (r *Ring) Produced() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.produced
}

// Position maps index i to its production number: the set pushed n-th
// has position n-1. The write index itself is the oldest slot, a full
// ring behind. Negative positions are history from before the first push.
func (r *Ring) Position(i int) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	back := ((r.next-i)%RingSize + RingSize) % RingSize
	if back == 0 {
		back = RingSize
	}
	return int64(r.produced) - int64(back)
}

// At returns the set at index i, taken modulo RingSize.
func (r *Ring) At(i int) SampleSet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf[((i%RingSize)+RingSize)%RingSize]
}

// Back returns the index n sets behind the write index.
func (r *Ring) Back(n int) int {
	next, _ := r.Cursor()
	return ((next-n)%RingSize + RingSize) % RingSize
}
