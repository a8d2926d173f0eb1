package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"go.uber.org/zap"
)

// TieredStore puts an in-memory ristretto cache in front of another store.
// Reads fill L1 on a backend hit; writes go to the backend first.
type TieredStore struct {
	l1     *ristretto.Cache[string, []byte]
	next   BlobStore
	logger *zap.Logger
}

// NewTieredStore creates an L1 bounded by maxCost bytes.
func NewTieredStore(next BlobStore, maxCost int64, logger *zap.Logger) (*TieredStore, error) {
	// ~10x the expected number of ~1KiB entries
	numCounters := 10 * maxCost / 1024
	if numCounters < 1000 {
		numCounters = 1000
	}
	l1, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}
	return &TieredStore{l1: l1, next: next, logger: logger.Named("l1")}, nil
}

func (s *TieredStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if val, ok := s.l1.Get(key); ok {
		s.logger.Debug("L1 cache hit", zap.String("key", key))
		return val, true, nil
	}

	val, ok, err := s.next.Get(ctx, key)
	if err != nil || !ok {
		return val, ok, err
	}
	s.l1.Set(key, val, int64(len(val)))
	return val, true, nil
}

func (s *TieredStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.next.Put(ctx, key, value); err != nil {
		return err
	}
	s.l1.Set(key, value, int64(len(value)))
	return nil
}

func (s *TieredStore) Delete(ctx context.Context, key string) error {
	s.l1.Del(key)
	return s.next.Delete(ctx, key)
}

// DeletePrefix clears all of L1 (ristretto cannot enumerate keys) and
// forwards to the backend when it supports prefix deletion.
func (s *TieredStore) DeletePrefix(ctx context.Context, prefix string) error {
	s.l1.Clear()
	if pd, ok := s.next.(PrefixDeleter); ok {
		return pd.DeletePrefix(ctx, prefix)
	}
	return nil
}

// Wait blocks until pending L1 writes are applied.
func (s *TieredStore) Wait() {
	s.l1.Wait()
}

// Close releases the L1 cache.
func (s *TieredStore) Close() {
	s.l1.Close()
}
