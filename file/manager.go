package file

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Manager tracks the transfers of the current call.
type Manager struct {
	mu        sync.RWMutex
	transfers map[uuid.UUID]*Transfer
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{transfers: make(map[uuid.UUID]*Transfer)}
}

// Track registers t.
func (m *Manager) Track(t *Transfer) {
	m.mu.Lock()
	m.transfers[t.ID] = t
	m.mu.Unlock()
}

// Get returns a tracked transfer.
func (m *Manager) Get(id uuid.UUID) (*Transfer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.transfers[id]
	return t, ok
}

// All returns every tracked transfer ordered by id.
func (m *Manager) All() []*Transfer {
	m.mu.RLock()
	all := make([]*Transfer, 0, len(m.transfers))
	for _, t := range m.transfers {
		all = append(all, t)
	}
	m.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	return all
}

// Active returns unfinished transfers ordered by id.
func (m *Manager) Active() []*Transfer {
	m.mu.RLock()
	var active []*Transfer
	for _, t := range m.transfers {
		if s := t.State(); s == StatePending || s == StateRunning {
			active = append(active, t)
		}
	}
	m.mu.RUnlock()

	sort.Slice(active, func(i, j int) bool { return active[i].ID.String() < active[j].ID.String() })
	return active
}

// Prune forgets finished transfers.
func (m *Manager) Prune() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.transfers {
		if s := t.State(); s != StatePending && s != StateRunning {
			delete(m.transfers, id)
		}
	}
}

// CheckTimeouts fails every stalled transfer.
func (m *Manager) CheckTimeouts() int {
	stalled := 0
	for _, t := range m.Active() {
		if t.CheckTimeout() != nil {
			stalled++
		}
	}
	return stalled
}

// CancelAll cancels every unfinished transfer, as when the call ends.
func (m *Manager) CancelAll() {
	active := m.Active()
	for _, t := range active {
		_ = t.Cancel()
	}
	m.Prune()

	if len(active) > 0 {
		logrus.WithFields(logrus.Fields{
			"function":  "Manager.CancelAll",
			"cancelled": len(active),
		}).Info("Cancelled active file transfers")
	}
}
