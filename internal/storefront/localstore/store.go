// Package localstore is the key/value storage behind the shopper client's
// guest cart, wishlist, session token and checkout hand-off.
package localstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidKey is returned for keys that cannot be mapped to a file name.
var ErrInvalidKey = errors.New("localstore: invalid key")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

const fileExt = ".json"

// Storage is the minimal key/value surface the client components need.
// A missing key is reported with ok=false and a nil error.
type Storage interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// ValidateKey reports whether key is usable with every Storage implementation.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Memory keeps values in process. It backs tests and one-shot CLI runs.
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{values: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Dir stores one file per key under a directory. Writes go to a temp file
// that is renamed into place, so readers never see a torn value. Concurrent
// writers in other processes are last-writer-wins.
type Dir struct {
	root string

	mu      sync.Mutex
	written map[string]writeMark
}

type writeMark struct {
	sum     [sha256.Size]byte
	deleted bool
}

// OpenDir creates root when needed and returns a store over it.
func OpenDir(root string) (*Dir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, errors.New("localstore: directory is required")
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating storage dir: %w", err)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving storage dir: %w", err)
	}
	return &Dir{root: abs, written: map[string]writeMark{}}, nil
}

// Root returns the absolute storage directory.
func (d *Dir) Root() string { return d.root }

func (d *Dir) path(key string) string {
	return filepath.Join(d.root, key+fileExt)
}

func (d *Dir) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(d.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, true, nil
}

func (d *Dir) Set(_ context.Context, key string, value []byte) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(d.root, ".tmp-"+key+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("syncing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing %s: %w", key, err)
	}

	d.mu.Lock()
	d.written[key] = writeMark{sum: sha256.Sum256(value)}
	d.mu.Unlock()

	if err := os.Rename(tmpName, d.path(key)); err != nil {
		cleanup()
		return fmt.Errorf("replacing %s: %w", key, err)
	}
	return nil
}

func (d *Dir) Delete(_ context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	d.mu.Lock()
	d.written[key] = writeMark{deleted: true}
	d.mu.Unlock()

	err := os.Remove(d.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

func (d *Dir) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("listing storage dir: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if key, ok := keyForFile(e.Name()); ok && !e.IsDir() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ownWrite reports whether the current content of key is exactly what this
// process last wrote.
func (d *Dir) ownWrite(key string, content []byte, exists bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	mark, ok := d.written[key]
	if !ok {
		return false
	}
	if !exists {
		return mark.deleted
	}
	return !mark.deleted && mark.sum == sha256.Sum256(content)
}

func keyForFile(name string) (string, bool) {
	if strings.HasPrefix(name, ".") || !strings.HasSuffix(name, fileExt) {
		return "", false
	}
	key := strings.TrimSuffix(name, fileExt)
	if ValidateKey(key) != nil {
		return "", false
	}
	return key, true
}
