package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MemoryStore keeps blobs in process memory. Used when no bucket is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
}

func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{bucket: bucket, objects: make(map[string][]byte)}
}

func (m *MemoryStore) Upload(_ context.Context, path string, data []byte, _ string) (string, error) {
	key := strings.TrimLeft(path, "/")
	if key == "" {
		return "", fmt.Errorf("storage: empty object path")
	}
	m.mu.Lock()
	m.objects[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return BuildURI(m.bucket, key), nil
}

func (m *MemoryStore) Download(_ context.Context, uri string) ([]byte, error) {
	_, key, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("storage: %s not found", key)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryStore) Delete(_ context.Context, uri string) error {
	_, key, err := ParseURI(uri)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

// Len reports how many objects are stored.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
