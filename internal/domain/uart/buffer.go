package uart

import "sync"

// DefaultBufferSize is the per-session I/O buffer capacity.
const DefaultBufferSize = 4096

// IOBuffer is the fixed-capacity byte region shared between a session and its
// client. Its capacity never changes after construction.
type IOBuffer struct {
	mu       sync.RWMutex
	data     []byte
	capacity int
	released bool
}

// NewIOBuffer allocates a zeroed buffer of the given capacity.
func NewIOBuffer(capacity int) *IOBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &IOBuffer{
		data:     make([]byte, capacity),
		capacity: capacity,
	}
}

// Cap returns the buffer capacity.
func (b *IOBuffer) Cap() int {
	return b.capacity
}

// Load copies p into the buffer starting at offset 0 and returns the number
// of bytes copied. Input beyond the capacity is dropped.
func (b *IOBuffer) Load(p []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return 0
	}
	return copy(b.data, p)
}

// Bytes returns a copy of the first min(n, Cap()) bytes.
func (b *IOBuffer) Bytes(n int) []byte {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.released || n <= 0 {
		return []byte{}
	}
	if n > len(b.data) {
		n = len(b.data)
	}
	out := make([]byte, n)
	copy(out, b.data[:n])
	return out
}

// fill hands the backing slice to fn under the write lock.
func (b *IOBuffer) fill(fn func(buf []byte)) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return
	}
	fn(b.data)
}

func (b *IOBuffer) release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.released = true
	b.data = nil
}
