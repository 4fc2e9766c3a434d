package session

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node runs
// without Redis. The mutex makes ConsumeHandshake a compare-and-clear.
type MemoryStore struct {
	mu         sync.Mutex
	handshakes map[string]memoryHandshake
	sessions   map[string]Authenticated
}

type memoryHandshake struct {
	hs        Handshake
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		handshakes: make(map[string]memoryHandshake),
		sessions:   make(map[string]Authenticated),
	}
}

func (m *MemoryStore) StartLogin(_ context.Context, sid string, hs Handshake) error {
	if sid == "" || hs.State == "" || hs.Nonce == "" {
		return fmt.Errorf("session: start login requires sid, state and nonce")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.handshakes[sid] = memoryHandshake{hs: hs, expiresAt: time.Now().Add(handshakeTTL)}
	return nil
}

func (m *MemoryStore) ConsumeHandshake(_ context.Context, sid string, state string) (Handshake, error) {
	m.mu.Lock()
	stored, ok := m.handshakes[sid]
	delete(m.handshakes, sid)
	m.mu.Unlock()

	if !ok || time.Now().After(stored.expiresAt) {
		return Handshake{}, ErrNoPendingHandshake
	}
	if stored.hs.State != state {
		return Handshake{}, ErrStateMismatch
	}
	return stored.hs, nil
}

func (m *MemoryStore) Establish(_ context.Context, sid string, a Authenticated) error {
	if sid == "" || a.UserID == "" || a.ExternalSubject == "" {
		return fmt.Errorf("session: establish requires sid, user id and subject")
	}
	if !a.ExpiresAt.After(time.Now()) {
		return fmt.Errorf("session: expires_at must be in the future")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sid] = a
	return nil
}

func (m *MemoryStore) Get(_ context.Context, sid string) (*Authenticated, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.sessions[sid]
	if !ok {
		return nil, nil
	}
	if time.Now().After(a.ExpiresAt) {
		delete(m.sessions, sid)
		return nil, nil
	}
	return &a, nil
}

func (m *MemoryStore) Clear(_ context.Context, sid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handshakes, sid)
	delete(m.sessions, sid)
	return nil
}
