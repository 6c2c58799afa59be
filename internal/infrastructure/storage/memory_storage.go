package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	mediaapp "github.com/backoffice/saas/internal/application/media"
	"github.com/backoffice/saas/internal/domain/media"
)

var _ mediaapp.ObjectStorage = (*MemoryObjectStorage)(nil)

// MemoryObjectStorage keeps objects in memory. It is meant for tests and
// local runs without a writable disk.
type MemoryObjectStorage struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	BaseURL string
}

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// NewMemoryObjectStorage creates an empty store
func NewMemoryObjectStorage() *MemoryObjectStorage {
	return &MemoryObjectStorage{
		objects: make(map[string]memoryObject),
		BaseURL: "https://storage.example.com",
	}
}

// Disk reports local so rows look like the default deployment
func (s *MemoryObjectStorage) Disk() media.Disk { return media.DiskLocal }

// Put implements media.ObjectStorage
func (s *MemoryObjectStorage) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := media.ValidateStorageKey(key); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read object: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("write object: got %d bytes, expected %d", len(data), size)
	}
	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, contentType: contentType, modified: time.Now()}
	s.mu.Unlock()
	return nil
}

// Get implements media.ObjectStorage
func (s *MemoryObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, mediaapp.ObjectInfo, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, mediaapp.ObjectInfo{}, mediaapp.ErrObjectNotFound
	}
	info := mediaapp.ObjectInfo{Size: int64(len(obj.data)), ContentType: obj.contentType, LastModified: obj.modified}
	return io.NopCloser(bytes.NewReader(obj.data)), info, nil
}

// Delete implements media.ObjectStorage
func (s *MemoryObjectStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Exists implements media.ObjectStorage
func (s *MemoryObjectStorage) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	_, ok := s.objects[key]
	s.mu.RUnlock()
	return ok, nil
}

// URL returns an unsigned URL below BaseURL
func (s *MemoryObjectStorage) URL(_ context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if err := media.ValidateStorageKey(key); err != nil {
		return "", time.Time{}, err
	}
	return s.BaseURL + "/" + key, time.Now().Add(ttl), nil
}

// Keys returns the stored keys
func (s *MemoryObjectStorage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
