package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	mediaapp "github.com/backoffice/saas/internal/application/media"
	"github.com/backoffice/saas/internal/domain/media"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

var _ mediaapp.ObjectStorage = (*LocalObjectStorage)(nil)

// LocalObjectStorage keeps objects as files below a root directory and
// serves them through signed URLs.
type LocalObjectStorage struct {
	root   string
	signer *URLSigner
	logger *zap.Logger
}

// NewLocalObjectStorage creates the root directory if needed
func NewLocalObjectStorage(root string, signer *URLSigner, logger *zap.Logger) (*LocalObjectStorage, error) {
	if root == "" {
		return nil, errors.New("local storage root is required")
	}
	if signer == nil {
		return nil, errors.New("url signer is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalObjectStorage{root: abs, signer: signer, logger: logger}, nil
}

// Disk implements media.ObjectStorage
func (s *LocalObjectStorage) Disk() media.Disk { return media.DiskLocal }

// Signer returns the signer used for file URLs
func (s *LocalObjectStorage) Signer() *URLSigner { return s.signer }

func (s *LocalObjectStorage) path(key string) (string, error) {
	if err := media.ValidateStorageKey(key); err != nil {
		return "", err
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if !strings.HasPrefix(p, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("storage key %q escapes the storage root", key)
	}
	return p, nil
}

// Put writes to a temporary file and renames it into place
func (s *LocalObjectStorage) Put(_ context.Context, key string, r io.Reader, size int64, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	if size >= 0 && written != size {
		return fmt.Errorf("write object: wrote %d bytes, expected %d", written, size)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("move object into place: %w", err)
	}
	s.logger.Debug("Stored object", zap.String("key", key), zap.Int64("size", written))
	return nil
}

// Get opens the file for reading
func (s *LocalObjectStorage) Get(_ context.Context, key string) (io.ReadCloser, mediaapp.ObjectInfo, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, mediaapp.ObjectInfo{}, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, mediaapp.ObjectInfo{}, mediaapp.ErrObjectNotFound
		}
		return nil, mediaapp.ObjectInfo{}, fmt.Errorf("open object: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, mediaapp.ObjectInfo{}, fmt.Errorf("stat object: %w", err)
	}
	info := mediaapp.ObjectInfo{Size: st.Size(), LastModified: st.ModTime()}
	if mt, err := mimetype.DetectReader(f); err == nil {
		info.ContentType = mt.String()
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, mediaapp.ObjectInfo{}, fmt.Errorf("rewind object: %w", err)
	}
	return f, info, nil
}

// Delete removes the file and prunes empty parent directories
func (s *LocalObjectStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	for dir := filepath.Dir(p); dir != s.root && strings.HasPrefix(dir, s.root); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// Exists checks if an object exists in storage
func (s *LocalObjectStorage) Exists(_ context.Context, key string) (bool, error) {
	p, err := s.path(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	}
	return false, fmt.Errorf("stat object: %w", err)
}

// URL returns a signed link served by the file handler
func (s *LocalObjectStorage) URL(_ context.Context, key string, ttl time.Duration) (string, time.Time, error) {
	if err := media.ValidateStorageKey(key); err != nil {
		return "", time.Time{}, err
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return s.signer.Sign(key, ttl)
}
