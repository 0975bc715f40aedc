package contact

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef"

type mockTimeProvider struct {
	fixedTime time.Time
}

func (m *mockTimeProvider) Now() time.Time {
	return m.fixedTime
}

func newTestContact(t *testing.T, nickname, host string, port uint16) *Contact {
	t.Helper()
	c, err := New(nickname, host, port, testSecret)
	require.NoError(t, err)
	return c
}

// switchDialer succeeds or fails depending on its current setting.
type switchDialer struct {
	mu     sync.Mutex
	up     bool
	dialed int
}

func (d *switchDialer) set(up bool) {
	d.mu.Lock()
	d.up = up
	d.mu.Unlock()
}

func (d *switchDialer) dial(ctx context.Context, network, addr string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dialed++
	if !d.up {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	server.Close()
	return client, nil
}
