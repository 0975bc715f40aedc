package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chanderlud/audio-chat/events"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

func dialEvents(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(waitFor)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHubStreamsEvents(t *testing.T) {
	s, _, hub := newTestServer(t)
	conn := dialEvents(t, s)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, waitFor, tick)

	hub.OnStatusChange("connected")
	hub.OnMessage("bob", []byte("hello"))
	hub.OnNotice(events.Notice{Kind: events.NoticeIncomingCall, Nickname: "bob"})

	assert.Equal(t, Event{Type: EventStatus, State: "connected"}, readEvent(t, conn))
	assert.Equal(t, Event{Type: EventMessage, Nickname: "bob", Message: "hello"}, readEvent(t, conn))

	ev := readEvent(t, conn)
	assert.Equal(t, EventNotice, ev.Type)
	require.NotNil(t, ev.Notice)
	assert.Equal(t, events.NoticeIncomingCall, ev.Notice.Kind)
}

func TestHubForgetsClosedClients(t *testing.T) {
	s, _, hub := newTestServer(t)
	conn := dialEvents(t, s)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, waitFor, tick)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, waitFor, tick)
	hub.OnStatusChange("ready")
}

func TestHubAcceptTimesOut(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.False(t, hub.Accept(ctx, "bob"))
	assert.Empty(t, hub.Pending())
	assert.ErrorIs(t, hub.Answer("bob", true), ErrNoPendingCall)
}

func TestHubDecline(t *testing.T) {
	hub := NewHub()
	result := make(chan bool, 1)
	go func() { result <- hub.Accept(context.Background(), "bob") }()
	require.Eventually(t, func() bool { return len(hub.Pending()) == 1 }, waitFor, tick)

	require.NoError(t, hub.Answer("bob", false))
	assert.False(t, <-result)
}
