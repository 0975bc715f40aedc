package buffer

import (
	"errors"
	"io"
	"sync"
)

// MinCapacity is the smallest capacity a growing Ring allocates.
const MinCapacity = 1024

// ErrInvalidSeek indicates a seek before already consumed data or past the
// end of the unread data.
var ErrInvalidSeek = errors.New("buffer: invalid seek position")

// Ring is a growable circular byte buffer with independent read and write
// cursors. Ring is safe for one producer and one consumer goroutine.
type Ring struct {
	mu        sync.Mutex
	buf       []byte
	readPos   int
	writePos  int
	available int
	consumed  int64
}

// NewRing creates a Ring with the given initial capacity. A capacity of zero
// defers allocation to the first write.
func NewRing(capacity int) *Ring {
	if capacity < 0 {
		capacity = 0
	}
	return &Ring{buf: make([]byte, capacity)}
}

// Cap returns the current capacity in bytes.
func (r *Ring) Cap() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// Available returns the number of unread bytes.
func (r *Ring) Available() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

// Write appends data, growing the buffer when it cannot hold the unread bytes
// plus data. Write always accepts all of data.
func (r *Ring) Write(data []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(data) == 0 {
		return 0, nil
	}

	if len(r.buf) < r.available+len(data) {
		r.grow(r.available + len(data))
	}

	n := copy(r.buf[r.writePos:], data)
	if n < len(data) {
		copy(r.buf, data[n:])
	}
	r.writePos = (r.writePos + len(data)) % len(r.buf)
	r.available += len(data)

	return len(data), nil
}

// grow reallocates to the smallest doubling of the capacity (at least
// MinCapacity) that holds need bytes, copying unread data to the front.
func (r *Ring) grow(need int) {
	size := len(r.buf)
	if size < MinCapacity {
		size = MinCapacity
	}
	for size < need {
		size *= 2
	}

	grown := make([]byte, size)
	unread := r.peek(r.available)
	copy(grown, unread)

	r.buf = grown
	r.readPos = 0
	r.writePos = r.available % size
}

// peek copies up to n unread bytes without consuming them. Callers hold mu.
func (r *Ring) peek(n int) []byte {
	out := make([]byte, n)
	if n == 0 {
		return out
	}
	first := copy(out, r.buf[r.readPos:min(r.readPos+n, len(r.buf))])
	if first < n {
		copy(out[first:], r.buf[:n-first])
	}
	return out
}

// Next consumes and returns up to n unread bytes. A negative n returns all
// available bytes. Next never blocks and may return an empty slice.
func (r *Ring) Next(n int) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n < 0 || n > r.available {
		n = r.available
	}

	out := r.peek(n)
	r.advance(n)
	return out
}

// ReadAll consumes and returns every unread byte.
func (r *Ring) ReadAll() []byte {
	return r.Next(-1)
}

// Read implements io.Reader. It returns io.EOF only when p is non-empty and
// nothing is available.
func (r *Ring) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data := r.Next(len(p))
	if len(data) == 0 {
		return 0, io.EOF
	}
	return copy(p, data), nil
}

// Discard drops up to n of the oldest unread bytes and reports how many were dropped.
func (r *Ring) Discard(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n < 0 || n > r.available {
		n = r.available
	}
	r.advance(n)
	return n
}

// TrimTo drops the oldest unread bytes so that at most keep bytes remain,
// reporting how many were dropped.
func (r *Ring) TrimTo(keep int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	if r.available <= keep {
		return 0
	}
	dropped := r.available - keep
	r.advance(dropped)
	return dropped
}

// advance moves the read cursor forward n bytes. Callers hold mu.
func (r *Ring) advance(n int) {
	if n == 0 {
		return
	}
	r.readPos = (r.readPos + n) % len(r.buf)
	r.available -= n
	r.consumed += int64(n)
}

// Tell returns the logical read position: the number of bytes consumed since
// the Ring was created or last Reset.
func (r *Ring) Tell() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.consumed
}

// Seek moves the logical read position forward within the unread data,
// implementing io.Seeker. Consumed bytes are gone, so seeking backwards fails.
// Seeking relative to io.SeekEnd with a negative offset keeps only the newest
// -offset bytes.
func (r *Ring) Seek(offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = r.consumed + offset
	case io.SeekEnd:
		target = r.consumed + int64(r.available) + offset
	default:
		return r.consumed, ErrInvalidSeek
	}

	if target < r.consumed || target > r.consumed+int64(r.available) {
		return r.consumed, ErrInvalidSeek
	}

	r.advance(int(target - r.consumed))
	return r.consumed, nil
}

// Reset drops all data and rewinds the logical position, keeping capacity.
func (r *Ring) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.readPos = 0
	r.writePos = 0
	r.available = 0
	r.consumed = 0
}
