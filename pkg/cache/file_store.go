package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const tempPrefix = ".tmp-"

// FileStoreConfig bounds a FileStore. Zero limits disable that bound.
type FileStoreConfig struct {
	Dir        string
	MaxEntries int
	MaxBytes   int64
}

// FileStore keeps one file per key under Dir. Writes go to a temp file that
// is renamed into place, so readers never see partial entries. After every
// write the oldest files (by mtime) are evicted until both bounds hold.
type FileStore struct {
	dir        string
	maxEntries int
	maxBytes   int64
	logger     *zap.Logger

	evictMu sync.Mutex
}

// NewFileStore creates the cache directory if needed.
func NewFileStore(cfg FileStoreConfig, logger *zap.Logger) (*FileStore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &FileStore{
		dir:        cfg.Dir,
		maxEntries: cfg.MaxEntries,
		maxBytes:   cfg.MaxBytes,
		logger:     logger.Named("file-store"),
	}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}

// Get reads the entry for key.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry: %w", err)
	}
	return data, true, nil
}

// Put atomically replaces the entry for key and then enforces the bounds.
func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create cache subdirectory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename cache entry: %w", err)
	}

	s.evict()
	return nil
}

// Delete removes the entry for key. Missing keys are not an error.
func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// DeletePrefix removes every entry whose key starts with prefix.
func (s *FileStore) DeletePrefix(_ context.Context, prefix string) error {
	entries, err := s.list()
	if err != nil {
		return err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.key, prefix) {
			if err := os.Remove(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("delete cache entry: %w", err)
			}
		}
	}
	return nil
}

type fileEntry struct {
	key     string
	path    string
	size    int64
	modTime time.Time
}

func (s *FileStore) list() ([]fileEntry, error) {
	var entries []fileEntry
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), tempPrefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		rel, err := filepath.Rel(s.dir, path)
		if err != nil {
			return err
		}
		entries = append(entries, fileEntry{
			key:     filepath.ToSlash(rel),
			path:    path,
			size:    info.Size(),
			modTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list cache directory: %w", err)
	}
	return entries, nil
}

// evict removes the oldest entries until the store is within bounds.
// Failures are logged; the write that triggered eviction already succeeded.
func (s *FileStore) evict() {
	if s.maxEntries <= 0 && s.maxBytes <= 0 {
		return
	}

	s.evictMu.Lock()
	defer s.evictMu.Unlock()

	entries, err := s.list()
	if err != nil {
		s.logger.Warn("Failed to list cache for eviction", zap.Error(err))
		return
	}

	var total int64
	for _, e := range entries {
		total += e.size
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].modTime.Equal(entries[j].modTime) {
			return entries[i].modTime.Before(entries[j].modTime)
		}
		return entries[i].key < entries[j].key
	})

	count := len(entries)
	for _, e := range entries {
		overCount := s.maxEntries > 0 && count > s.maxEntries
		overBytes := s.maxBytes > 0 && total > s.maxBytes
		if !overCount && !overBytes {
			break
		}
		if err := os.Remove(e.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("Failed to evict cache entry", zap.String("key", e.key), zap.Error(err))
			continue
		}
		count--
		total -= e.size
		s.logger.Debug("Evicted cache entry", zap.String("key", e.key))
	}
}
