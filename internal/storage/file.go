package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"restaurant-pos/internal/models"
)

// FileStore keeps one JSON document per branch and collection under dir
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates dir if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(branch string, coll Collection) string {
	return filepath.Join(s.dir, branch, string(coll)+".json")
}

func (s *FileStore) List(_ context.Context, branch string, coll Collection) ([]models.Order, error) {
	if !validCollection(coll) {
		return nil, errors.Errorf("unknown collection %q", coll)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(branch, coll))
	if os.IsNotExist(err) {
		return []models.Order{}, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s/%s", branch, coll)
	}

	var orders []models.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return nil, errors.Wrapf(err, "decode %s/%s", branch, coll)
	}
	return cloneOrders(orders), nil
}

// Replace stages every collection to a temp file before renaming any of them,
// so an encode or write failure leaves all collections untouched.
func (s *FileStore) Replace(_ context.Context, branch string, writes ...Write) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(s.dir, branch), 0o755); err != nil {
		return errors.Wrap(err, "create branch dir")
	}

	staged := make([]string, 0, len(writes))
	cleanup := func() {
		for _, p := range staged {
			_ = os.Remove(p + ".tmp")
		}
	}

	for _, w := range writes {
		if !validCollection(w.Collection) {
			cleanup()
			return errors.Errorf("unknown collection %q", w.Collection)
		}
		data, err := json.MarshalIndent(cloneOrders(w.Orders), "", "  ")
		if err != nil {
			cleanup()
			return errors.Wrapf(err, "encode %s/%s", branch, w.Collection)
		}
		path := s.path(branch, w.Collection)
		if err := os.WriteFile(path+".tmp", data, 0o644); err != nil {
			cleanup()
			return errors.Wrapf(err, "write %s/%s", branch, w.Collection)
		}
		staged = append(staged, path)
	}

	for _, p := range staged {
		if err := os.Rename(p+".tmp", p); err != nil {
			cleanup()
			return errors.Wrapf(err, "commit %s", p)
		}
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
