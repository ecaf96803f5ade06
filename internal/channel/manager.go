package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Manager owns the mapping from account id to live session handle. Sessions
// register on connect and deregister on disconnect; nothing else in the
// system holds a session reference across events. Inbound events flow
// through Dispatch to the registered Handler.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]Session
	handler  Handler
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]Session)}
}

// SetHandler sets the consumer for inbound session events.
func (m *Manager) SetHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// Dispatch hands an inbound session event to the registered handler. Events
// arriving before a handler is set are dropped with a log.
func (m *Manager) Dispatch(ctx context.Context, ev Event) {
	m.mu.RLock()
	h := m.handler
	m.mu.RUnlock()
	if h == nil {
		slog.Warn("no inbound handler registered, dropping event",
			"account", ev.AccountID, "type", ev.Type)
		return
	}
	h(ctx, ev)
}

// Register adds a session for its account. Replacing a live session for the
// same account is allowed (reconnect).
func (m *Manager) Register(s Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID()]; ok {
		slog.Info("replacing channel session", "account", s.ID())
	}
	m.sessions[s.ID()] = s
	slog.Info("channel session registered", "account", s.ID())
}

// Deregister removes the session for an account.
func (m *Manager) Deregister(accountID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[accountID]; !ok {
		return
	}
	delete(m.sessions, accountID)
	slog.Info("channel session deregistered", "account", accountID)
}

// Get returns the live session for an account.
func (m *Manager) Get(accountID string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[accountID]
	if !ok {
		return nil, fmt.Errorf("no session for account %s", accountID)
	}
	return s, nil
}

// Accounts returns the ids of all registered sessions.
func (m *Manager) Accounts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}
