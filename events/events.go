package events

import "sync"

// NoticeKind classifies a user-visible notice.
type NoticeKind string

const (
	NoticeIncomingCall      NoticeKind = "incoming_call"
	NoticeCallEnded         NoticeKind = "call_ended"
	NoticeCallFailed        NoticeKind = "call_failed"
	NoticeDisconnected      NoticeKind = "disconnected"
	NoticeReconnected       NoticeKind = "reconnected"
	NoticeDeviceUnavailable NoticeKind = "device_unavailable"
	NoticeFileReceived      NoticeKind = "file_received"
	NoticeFileFailed        NoticeKind = "file_failed"
	NoticeFileSent          NoticeKind = "file_sent"
	NoticeScreenshareStart  NoticeKind = "screenshare_started"
	NoticeScreenshareEnd    NoticeKind = "screenshare_ended"
)

// Notice is a one-shot user notification.
type Notice struct {
	Kind     NoticeKind `json:"kind"`
	Nickname string     `json:"nickname,omitempty"`
	Detail   string     `json:"detail,omitempty"`
}

// Sink receives everything the core reports outward. Implementations must be
// safe for concurrent use and must not block for long.
type Sink interface {
	OnMessage(nickname string, payload []byte)
	OnStatusChange(state string)
	OnNotice(notice Notice)
}

// Nop discards every event.
type Nop struct{}

func (Nop) OnMessage(string, []byte) {}
func (Nop) OnStatusChange(string)    {}
func (Nop) OnNotice(Notice)          {}

// Multi fans events out to several sinks in order.
type Multi struct {
	mu    sync.RWMutex
	sinks []Sink
}

// NewMulti creates a fan-out over sinks. Nil sinks are skipped.
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		m.Add(s)
	}
	return m
}

// Add registers another sink.
func (m *Multi) Add(s Sink) {
	if s == nil {
		return
	}
	m.mu.Lock()
	m.sinks = append(m.sinks, s)
	m.mu.Unlock()
}

func (m *Multi) snapshot() []Sink {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Sink(nil), m.sinks...)
}

func (m *Multi) OnMessage(nickname string, payload []byte) {
	for _, s := range m.snapshot() {
		s.OnMessage(nickname, payload)
	}
}

func (m *Multi) OnStatusChange(state string) {
	for _, s := range m.snapshot() {
		s.OnStatusChange(state)
	}
}

func (m *Multi) OnNotice(notice Notice) {
	for _, s := range m.snapshot() {
		s.OnNotice(notice)
	}
}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}
