package audio

import (
	"sync"
)

// RingBuffer keeps the most recent audio while the transcription stream is
// connecting. When full, new writes overwrite the oldest bytes.
type RingBuffer struct {
	buffer  []byte
	size    int
	start   int // index of the oldest byte
	length  int
	dropped int64
	mu      sync.Mutex
}

// NewRingBuffer creates a new ring buffer with the specified size
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Write appends data, discarding the oldest bytes if needed. It always
// accepts all of data.
func (rb *RingBuffer) Write(data []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(data)
	if n >= rb.size {
		// Only the tail fits.
		rb.dropped += int64(rb.length + n - rb.size)
		copy(rb.buffer, data[n-rb.size:])
		rb.start = 0
		rb.length = rb.size
		return n
	}

	if overflow := rb.length + n - rb.size; overflow > 0 {
		rb.start = (rb.start + overflow) % rb.size
		rb.length -= overflow
		rb.dropped += int64(overflow)
	}

	end := (rb.start + rb.length) % rb.size
	first := copy(rb.buffer[end:], data)
	copy(rb.buffer, data[first:])
	rb.length += n

	return n
}

// Read copies up to len(p) of the oldest bytes into p and removes them.
func (rb *RingBuffer) Read(p []byte) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := min(len(p), rb.length)
	first := copy(p[:n], rb.buffer[rb.start:min(rb.start+n, rb.size)])
	copy(p[first:n], rb.buffer)
	rb.start = (rb.start + n) % rb.size
	rb.length -= n

	return n
}

// Drain returns and removes everything buffered.
func (rb *RingBuffer) Drain() []byte {
	rb.mu.Lock()
	n := rb.length
	rb.mu.Unlock()

	out := make([]byte, n)
	read := rb.Read(out)
	return out[:read]
}

// Available returns the number of bytes available to read
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.length
}

// Dropped returns how many bytes were overwritten before being read.
func (rb *RingBuffer) Dropped() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.dropped
}

// Clear clears the buffer
func (rb *RingBuffer) Clear() {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.start = 0
	rb.length = 0
}

// IsEmpty returns true if the buffer is empty
func (rb *RingBuffer) IsEmpty() bool {
	return rb.Available() == 0
}

// IsFull returns true if the next write will overwrite data
func (rb *RingBuffer) IsFull() bool {
	return rb.Available() == rb.size
}
