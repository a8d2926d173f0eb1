// Package workerpool runs independent units of work with bounded parallelism.
package workerpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// Config configures a Pool.
type Config struct {
	MaxConcurrent int // Maximum concurrent items (default: 4)
}

// DefaultConfig returns the forecast fitting defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 4}
}

// Pool bounds how many work items execute at once. A Pool is stateless
// between calls and safe to share.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a Pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the parallelism bound.
func (p *Pool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// Item is a unit of work.
type Item[T any] struct {
	ID      string                               // For logging/tracking
	Execute func(ctx context.Context) (T, error) // The work to be executed
}

// Result is the outcome of one Item.
type Result[T any] struct {
	ID     string
	Result T
	Err    error
}

// PanicError is returned for an item whose Execute panicked.
type PanicError struct {
	ID    string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("work item %s panicked: %v", e.ID, e.Value)
}

// Process executes all items with bounded parallelism and returns their
// results in submission order. A failing or panicking item does not stop
// the others. Items still waiting for a slot when ctx ends get ctx.Err().
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []Item[T],
	onProgress func(completed, total int),
) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	done := func() {
		if onProgress == nil {
			return
		}
		mu.Lock()
		completed++
		n := completed
		mu.Unlock()
		onProgress(n, len(items))
	}

	for i, item := range items {
		wg.Add(1)
		go func(i int, item Item[T]) {
			defer wg.Done()
			defer done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = Result[T]{ID: item.ID, Err: ctx.Err()}
				return
			}

			results[i] = runItem(ctx, pool.logger, item)
		}(i, item)
	}

	wg.Wait()
	return results
}

func runItem[T any](ctx context.Context, logger *zap.Logger, item Item[T]) (res Result[T]) {
	res.ID = item.ID
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Work item panicked",
				zap.String("id", item.ID),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			res.Err = &PanicError{ID: item.ID, Value: r}
		}
	}()

	res.Result, res.Err = item.Execute(ctx)
	return res
}
