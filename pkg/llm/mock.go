package llm

import (
	"context"
	"sync"
)

// MockEmbedder is a configurable Embedder for tests.
// Set EmbedFunc to control behavior; when nil, Vectors is consulted by input
// text and unknown inputs get a zero vector of length Dim.
type MockEmbedder struct {
	EmbedFunc func(ctx context.Context, inputs []string) ([][]float32, error)
	Vectors   map[string][]float32
	Dim       int

	mu    sync.Mutex
	calls int
}

// Ensure MockEmbedder implements Embedder at compile time.
var _ Embedder = (*MockEmbedder)(nil)

// Embed implements Embedder.
func (m *MockEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, inputs)
	}

	dim := m.Dim
	if dim == 0 {
		dim = 3
	}
	out := make([][]float32, len(inputs))
	for i, in := range inputs {
		if v, ok := m.Vectors[in]; ok {
			out[i] = v
			continue
		}
		out[i] = make([]float32, dim)
	}
	return out, nil
}

// Calls returns how many times Embed was invoked.
func (m *MockEmbedder) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
