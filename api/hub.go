package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/chanderlud/audio-chat/events"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ErrNoPendingCall indicates an answer for a call nobody is waiting on.
var ErrNoPendingCall = errors.New("no pending call from this contact")

const (
	// clientQueue bounds the events buffered for one slow websocket client.
	clientQueue = 64

	writeTimeout = 5 * time.Second
)

// Event is one websocket message.
type Event struct {
	Type     string         `json:"type"`
	Nickname string         `json:"nickname,omitempty"`
	Message  string         `json:"message,omitempty"`
	State    string         `json:"state,omitempty"`
	Notice   *events.Notice `json:"notice,omitempty"`
}

const (
	EventMessage = "message"
	EventStatus  = "status"
	EventNotice  = "notice"
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans events out to websocket clients and holds incoming-call prompts
// until they are answered. It implements events.Sink and control.Acceptor.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	pending map[string]chan bool
}

// NewHub creates a hub with no clients.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*wsClient]struct{}),
		pending: make(map[string]chan bool),
	}
}

func (h *Hub) OnMessage(nickname string, payload []byte) {
	h.broadcast(Event{Type: EventMessage, Nickname: nickname, Message: string(payload)})
}

func (h *Hub) OnStatusChange(state string) {
	h.broadcast(Event{Type: EventStatus, State: state})
}

func (h *Hub) OnNotice(notice events.Notice) {
	h.broadcast(Event{Type: EventNotice, Nickname: notice.Nickname, Notice: &notice})
}

// broadcast queues ev for every client, dropping it for clients whose
// queue is full.
func (h *Hub) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			logrus.WithFields(logrus.Fields{
				"function": "Hub.broadcast",
				"remote":   c.conn.RemoteAddr().String(),
				"type":     ev.Type,
			}).Warn("Dropping event for slow client")
		}
	}
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Accept waits for an answer to the incoming call from nickname. It returns
// false when ctx ends first.
func (h *Hub) Accept(ctx context.Context, nickname string) bool {
	answer := make(chan bool, 1)

	h.mu.Lock()
	h.pending[nickname] = answer
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		if h.pending[nickname] == answer {
			delete(h.pending, nickname)
		}
		h.mu.Unlock()
	}()

	select {
	case accepted := <-answer:
		return accepted
	case <-ctx.Done():
		logrus.WithFields(logrus.Fields{
			"function": "Hub.Accept",
			"nickname": nickname,
		}).Info("Incoming call prompt expired")
		return false
	}
}

// Answer resolves the pending prompt for nickname.
func (h *Hub) Answer(nickname string, accept bool) error {
	h.mu.Lock()
	answer, ok := h.pending[nickname]
	delete(h.pending, nickname)
	h.mu.Unlock()

	if !ok {
		return ErrNoPendingCall
	}
	answer <- accept
	return nil
}

// Pending lists contacts whose calls await an answer.
func (h *Hub) Pending() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, 0, len(h.pending))
	for name := range h.pending {
		names = append(names, name)
	}
	return names
}

// ServeWS upgrades the request and streams events until the client leaves.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Hub.ServeWS",
			"error":    err.Error(),
		}).Debug("Websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientQueue)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Hub.ServeWS",
		"remote":   conn.RemoteAddr().String(),
	}).Debug("Event client connected")

	done := make(chan struct{})
	go h.writeLoop(c, done)

	// Reads only detect the close; clients send nothing.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(done)
	conn.Close()
}

func (h *Hub) writeLoop(c *wsClient, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}
