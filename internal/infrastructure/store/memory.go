// Package store holds the persistent descriptor and family backends.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/doeshing/riskgate/internal/ports"
)

// MemoryStore keeps everything in process. Used by tests and the "memory"
// driver; contents are lost on exit.
type MemoryStore struct {
	mu          sync.RWMutex
	descriptors map[string]ports.StoredDescriptor
	families    map[string]ports.StoredFamily
}

// NewMemory returns an empty in-process store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		descriptors: map[string]ports.StoredDescriptor{},
		families:    map[string]ports.StoredFamily{},
	}
}

func (m *MemoryStore) Put(_ context.Context, d ports.StoredDescriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.descriptors[d.Command] = copyDescriptor(d)
	return nil
}

func (m *MemoryStore) Get(_ context.Context, command string) (ports.StoredDescriptor, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.descriptors[command]
	if !ok {
		return ports.StoredDescriptor{}, false, nil
	}
	return copyDescriptor(d), true, nil
}

func (m *MemoryStore) List(_ context.Context) ([]ports.StoredDescriptor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ports.StoredDescriptor, 0, len(m.descriptors))
	for _, d := range m.descriptors {
		out = append(out, copyDescriptor(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out, nil
}

func (m *MemoryStore) Delete(_ context.Context, command string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.descriptors, command)
	return nil
}

func (m *MemoryStore) PutFamily(_ context.Context, f ports.StoredFamily) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.families[f.Family] = copyFamily(f)
	return nil
}

func (m *MemoryStore) GetFamily(_ context.Context, family string) (ports.StoredFamily, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.families[family]
	if !ok {
		return ports.StoredFamily{}, false, nil
	}
	return copyFamily(f), true, nil
}

func (m *MemoryStore) ListFamilies(_ context.Context) ([]ports.StoredFamily, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ports.StoredFamily, 0, len(m.families))
	for _, f := range m.families {
		out = append(out, copyFamily(f))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Family < out[j].Family })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func copyDescriptor(d ports.StoredDescriptor) ports.StoredDescriptor {
	d.Record = append([]byte(nil), d.Record...)
	if d.Audit != nil {
		d.Audit = append([]byte(nil), d.Audit...)
	}
	return d
}

func copyFamily(f ports.StoredFamily) ports.StoredFamily {
	f.Parent = append([]byte(nil), f.Parent...)
	f.Members = append([]string(nil), f.Members...)
	deltas := make([][]byte, len(f.Deltas))
	for i, d := range f.Deltas {
		deltas[i] = append([]byte(nil), d...)
	}
	f.Deltas = deltas
	return f
}

var _ ports.Store = (*MemoryStore)(nil)
