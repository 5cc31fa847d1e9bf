package vault

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"docvault/internal/backup"
)

// MemoryVault keeps backups in memory. It is safe for concurrent use and
// is meant for tests and dry runs.
type MemoryVault struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	data    []byte
	modTime time.Time
}

var _ backup.Vault = (*MemoryVault)(nil)

func NewMemoryVault() *MemoryVault {
	return &MemoryVault{objects: make(map[string]memoryObject)}
}

func (m *MemoryVault) Put(ctx context.Context, name string, r io.Reader, size int64) error {
	if err := checkName(name); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = memoryObject{data: data, modTime: time.Now().UTC()}
	return nil
}

func (m *MemoryVault) Get(ctx context.Context, name string, w io.Writer) error {
	m.mu.RLock()
	obj, ok := m.objects[name]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", backup.ErrNotFound, name)
	}
	if _, err := io.Copy(w, bytes.NewReader(obj.data)); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}
	return nil
}

func (m *MemoryVault) List(ctx context.Context) ([]backup.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	objs := make([]backup.Object, 0, len(m.objects))
	for name, obj := range m.objects {
		objs = append(objs, backup.Object{Name: name, Size: int64(len(obj.data)), ModTime: obj.modTime})
	}
	return objs, nil
}

func (m *MemoryVault) Delete(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[name]; !ok {
		return fmt.Errorf("%w: %s", backup.ErrNotFound, name)
	}
	delete(m.objects, name)
	return nil
}

// ValidateSetup always succeeds for the in-memory vault.
func (m *MemoryVault) ValidateSetup(context.Context) error {
	return nil
}
