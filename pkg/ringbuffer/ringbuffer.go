// Package ringbuffer is a FIFO byte buffer for a single producer and a
// single consumer. Unlike a fixed-capacity ring, Write never fails for
// lack of space — it grows the backing slice — because the sink's
// buffer_track operation must accept an entire decoded track in one
// call with no prior bound on its size. Read/consume bookkeeping still
// matches a classic ring buffer's read/write cursor pair; only the
// backing store is unbounded.
package ringbuffer

import (
	"sync"

	"github.com/pisarenko-net/cdpsa/pkg/types"
)

// ErrInsufficientData re-exports types.ErrInsufficientData so callers never
// need to import pkg/types directly just to compare errors.
var ErrInsufficientData = types.ErrInsufficientData

// RingBuffer is a FIFO byte buffer guarded by a mutex. Write is always
// append; Read copies out and advances the read cursor. The backing
// slice is compacted once its consumed prefix grows large relative to
// the live data, so long playback sessions don't grow memory without
// bound even though any single Write always succeeds.
type RingBuffer struct {
	mu       sync.Mutex
	buf      []byte
	readPos  int
}

// New creates an empty buffer. size is used only as the initial
// capacity hint; the buffer grows past it on demand.
func New(size uint64) *RingBuffer {
	return &RingBuffer{buf: make([]byte, 0, size)}
}

// Write appends data to the buffer. It never fails for lack of space.
func (rb *RingBuffer) Write(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	rb.mu.Lock()
	rb.buf = append(rb.buf, data...)
	rb.mu.Unlock()
	return len(data), nil
}

// Read copies up to len(data) unread bytes into data and advances the
// read cursor. Returns ErrInsufficientData if nothing is available.
func (rb *RingBuffer) Read(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, nil
	}
	rb.mu.Lock()
	defer rb.mu.Unlock()

	available := len(rb.buf) - rb.readPos
	if available <= 0 {
		return 0, ErrInsufficientData
	}

	n := copy(data, rb.buf[rb.readPos:])
	rb.readPos += n
	rb.compactLocked()
	return n, nil
}

// AvailableRead returns the number of unread bytes.
func (rb *RingBuffer) AvailableRead() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return uint64(len(rb.buf) - rb.readPos)
}

// AvailableWrite reports an upper bound suitable for status display. The
// buffer has no hard capacity, so this returns the unused tail capacity
// of the backing slice, not a true limit.
func (rb *RingBuffer) AvailableWrite() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return uint64(cap(rb.buf) - len(rb.buf))
}

// Size returns the current length of unread-plus-read data retained.
func (rb *RingBuffer) Size() uint64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return uint64(len(rb.buf))
}

// Reset drops all buffered data.
func (rb *RingBuffer) Reset() {
	rb.mu.Lock()
	rb.buf = rb.buf[:0]
	rb.readPos = 0
	rb.mu.Unlock()
}

// compactLocked drops the consumed prefix once it dominates the buffer,
// bounding memory growth across a long playback session. Caller must
// hold rb.mu.
func (rb *RingBuffer) compactLocked() {
	if rb.readPos == 0 {
		return
	}
	if rb.readPos < 64*1024 && rb.readPos < len(rb.buf)/2 {
		return
	}
	remaining := len(rb.buf) - rb.readPos
	copy(rb.buf, rb.buf[rb.readPos:])
	rb.buf = rb.buf[:remaining]
	rb.readPos = 0
}
