package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when a snapshot object does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is the object storage abstraction snapshots are written to.
// Objects are immutable blobs addressed by name; only the CURRENT
// pointer is ever rewritten.
type Store interface {
	// Put writes an object atomically.
	Put(ctx context.Context, name string, data []byte) error

	// Get reads an object in full.
	Get(ctx context.Context, name string) ([]byte, error)

	// Delete removes an object. Deleting an absent object is a no-op.
	Delete(ctx context.Context, name string) error

	// List returns the object names under prefix, sorted ascending.
	List(ctx context.Context, prefix string) ([]string, error)
}

// MemoryStore is an in-memory Store for tests and ephemeral topologies.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[name] = buf
	return nil
}

func (m *MemoryStore) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[name]
	if !ok {
		return nil, ErrNotFound
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf, nil
}

func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.objects, name)
	return nil
}

func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// LocalStore keeps snapshot objects as files under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at dir, creating it if needed.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{root: dir}, nil
}

func (l *LocalStore) path(name string) string {
	return filepath.Join(l.root, filepath.FromSlash(name))
}

// Put writes to a temp file in the target directory and renames it into
// place, so readers never observe a half-written object.
func (l *LocalStore) Put(_ context.Context, name string, data []byte) error {
	target := l.path(name)
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, target); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	tmpName = ""
	return nil
}

func (l *LocalStore) Get(_ context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(l.path(name))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	return data, err
}

func (l *LocalStore) Delete(_ context.Context, name string) error {
	err := os.Remove(l.path(name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (l *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(l.root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(l.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}
