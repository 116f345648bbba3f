package serial

import "sync"

// ring is a bounded byte FIFO. When full, writes overwrite the oldest bytes.
type ring struct {
	mu   sync.Mutex
	data []byte
	head int
	n    int
}

func newRing(size int) *ring {
	if size <= 0 {
		size = 1
	}
	return &ring{data: make([]byte, size)}
}

// Write appends p and returns how many old bytes were overwritten.
func (r *ring) Write(p []byte) (dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := len(r.data)
	for _, c := range p {
		tail := (r.head + r.n) % size
		r.data[tail] = c
		if r.n == size {
			r.head = (r.head + 1) % size
			dropped++
		} else {
			r.n++
		}
	}
	return dropped
}

// ReadByte pops the oldest byte.
func (r *ring) ReadByte() (byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.n == 0 {
		return 0, false
	}
	c := r.data[r.head]
	r.head = (r.head + 1) % len(r.data)
	r.n--
	return c, true
}

// Len returns the number of buffered bytes.
func (r *ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// Reset discards all buffered bytes.
func (r *ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head, r.n = 0, 0
}
