package storage

import (
	"context"
	"sync"

	"clustersync/pkg/payload"
)

// MemoryStore keeps category state in process memory. Used by tests and by
// workers that have no reason to persist their mirror across restarts.
type MemoryStore struct {
	mu          sync.RWMutex
	flows       *payload.Payload
	credentials map[string]any
	settings    map[string]any
	sessions    map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		flows:       payload.Empty(),
		credentials: map[string]any{},
		settings:    map[string]any{},
		sessions:    map[string]any{},
	}
}

func (m *MemoryStore) Flows(ctx context.Context) (*payload.Payload, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flows, nil
}

func (m *MemoryStore) SaveFlows(ctx context.Context, p *payload.Payload) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows = p
	return nil
}

func (m *MemoryStore) Credentials(ctx context.Context) (map[string]any, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.credentials, nil
}

func (m *MemoryStore) SaveCredentials(ctx context.Context, creds map[string]any) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials = creds
	return nil
}

func (m *MemoryStore) Settings(ctx context.Context) (map[string]any, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings, nil
}

func (m *MemoryStore) SaveSettings(ctx context.Context, settings map[string]any) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
	return nil
}

func (m *MemoryStore) Sessions(ctx context.Context) (map[string]any, error) {
	_ = ctx
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions, nil
}

func (m *MemoryStore) SaveSessions(ctx context.Context, sessions map[string]any) error {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = sessions
	return nil
}

func (m *MemoryStore) Close() error { return nil }
