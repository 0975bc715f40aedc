package buffer

import (
	"errors"
	"fmt"
)

// ErrOverflow indicates more data arrived than a SizedAssembler declared.
var ErrOverflow = errors.New("buffer: payload exceeds declared length")

// MessageAssembler rebuilds messages sent as a run of fixed-size chunks. A chunk
// shorter than the chunk size, including an empty one, completes the message.
type MessageAssembler struct {
	chunkSize int
	ring      *Ring
}

// NewMessageAssembler creates an assembler for chunks of chunkSize bytes.
func NewMessageAssembler(chunkSize int) *MessageAssembler {
	return &MessageAssembler{chunkSize: chunkSize, ring: NewRing(0)}
}

// Add appends a chunk and returns the complete message once the terminating
// chunk arrives.
func (m *MessageAssembler) Add(chunk []byte) ([]byte, bool) {
	_, _ = m.ring.Write(chunk)
	if len(chunk) >= m.chunkSize {
		return nil, false
	}
	return m.ring.ReadAll(), true
}

// Pending returns the number of bytes held for an unfinished message.
func (m *MessageAssembler) Pending() int {
	return m.ring.Available()
}

// Split cuts a message into chunks accepted by a MessageAssembler on the other
// side. When the message length is a multiple of chunkSize an empty chunk is
// appended so the receiver sees a terminator.
func Split(message []byte, chunkSize int) [][]byte {
	var chunks [][]byte
	for start := 0; start < len(message); start += chunkSize {
		end := min(start+chunkSize, len(message))
		chunks = append(chunks, message[start:end])
	}
	if len(message)%chunkSize == 0 {
		chunks = append(chunks, []byte{})
	}
	return chunks
}

// SizedAssembler accumulates a payload of a declared total length.
type SizedAssembler struct {
	total uint64
	ring  *Ring
}

// NewSizedAssembler creates an assembler expecting exactly total bytes.
func NewSizedAssembler(total uint64) *SizedAssembler {
	return &SizedAssembler{total: total, ring: NewRing(0)}
}

// Add appends data and reports whether the declared length has been reached.
// Data beyond the declared length is rejected with ErrOverflow.
func (s *SizedAssembler) Add(data []byte) (bool, error) {
	if uint64(s.ring.Available())+uint64(len(data)) > s.total {
		return false, fmt.Errorf("%w: have %d, adding %d, declared %d",
			ErrOverflow, s.ring.Available(), len(data), s.total)
	}
	_, _ = s.ring.Write(data)
	return s.Complete(), nil
}

// Received returns the number of bytes accumulated so far.
func (s *SizedAssembler) Received() uint64 {
	return uint64(s.ring.Available())
}

// Complete reports whether the declared length has been reached.
func (s *SizedAssembler) Complete() bool {
	return uint64(s.ring.Available()) >= s.total
}

// Payload returns the whole payload once complete, and nil before that.
func (s *SizedAssembler) Payload() []byte {
	if !s.Complete() {
		return nil
	}
	return s.ring.ReadAll()
}

// Discard drops everything accumulated so far.
func (s *SizedAssembler) Discard() {
	s.ring.Reset()
}
