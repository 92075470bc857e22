// Package blob archives raw fetch artifacts. Providers return a URI for
// the stored object.
package blob

import (
	"context"
	"fmt"
	"sync"
)

// Memory stores artifacts in-process. Development and tests only.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates the in-memory provider.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// PutObject stores a copy of the content and returns a memory:// URI.
func (m *Memory) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[path] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s", path), nil
}

// GetObject returns stored content, for test assertions.
func (m *Memory) GetObject(path string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.data[path]
	return data, ok
}
