package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recorder struct {
	mu       sync.Mutex
	messages []string
	states   []string
	notices  []Notice
}

func (r *recorder) OnMessage(nickname string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, nickname+": "+string(payload))
}

func (r *recorder) OnStatusChange(state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recorder) OnNotice(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := NewMulti(a, nil, b)

	m.OnMessage("alice", []byte("hi"))
	m.OnStatusChange("connected")
	m.OnNotice(Notice{Kind: NoticeReconnected, Nickname: "alice"})

	for _, r := range []*recorder{a, b} {
		assert.Equal(t, []string{"alice: hi"}, r.messages)
		assert.Equal(t, []string{"connected"}, r.states)
		assert.Equal(t, []Notice{{Kind: NoticeReconnected, Nickname: "alice"}}, r.notices)
	}
}

func TestOrNop(t *testing.T) {
	assert.IsType(t, Nop{}, OrNop(nil))
	r := &recorder{}
	assert.Same(t, r, OrNop(r))

	assert.NotPanics(t, func() {
		s := OrNop(nil)
		s.OnMessage("x", nil)
		s.OnStatusChange("ready")
		s.OnNotice(Notice{})
	})
}
