package details

import (
	"context"
	"sync"

	"github.com/jacentio/syllabus/store"
)

// MemoryBackend keeps Details in a map.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[string]Details
}

// NewMemoryBackend creates an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{records: make(map[string]Details)}
}

func (b *MemoryBackend) Get(_ context.Context, ownerID string) (*Details, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	d, ok := b.records[ownerID]
	if !ok {
		return nil, ErrNotFound
	}
	d.Keywords = append([]string(nil), d.Keywords...)
	return &d, nil
}

func (b *MemoryBackend) Put(_ context.Context, d *Details) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec := *d
	rec.Keywords = append([]string(nil), d.Keywords...)
	b.records[d.OwnerID] = rec
	return nil
}

func (b *MemoryBackend) Delete(_ context.Context, ownerID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.records, ownerID)
	return nil
}

// Forget drops the record of a removed document. It matches the signature
// of memstore delete hooks.
func (b *MemoryBackend) Forget(_ store.Kind, ownerID string) {
	_ = b.Delete(context.Background(), ownerID)
}
