// Package store persists the client's local state: preferences and build history.
// Values live behind the KV interface so callers can be tested against MemoryKV.
package store

import "sync"

// Keys persisted by builddeck.
const (
	KeyUseDefaultTunnel = "build_use_default_tunnel"
	KeyAPIBase          = "agent_api_base"
	KeySelectedAgent    = "build_selected_agent"
	KeyHistory          = "build_history"
)

// KV is a string key/value store with a load/save contract.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryKV is a KV held in memory. The zero value is ready to use.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// Ensure MemoryKV implements KV.
var _ KV = (*MemoryKV)(nil)

// NewMemoryKV creates a MemoryKV seeded with the given values.
func NewMemoryKV(seed map[string]string) *MemoryKV {
	m := &MemoryKV{data: make(map[string]string, len(seed))}
	for k, v := range seed {
		m.data[k] = v
	}
	return m
}

func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = make(map[string]string)
	}
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
