// Package llm provides the OpenAI-compatible embedding client used by the
// semantic intent fallback.
package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/retry"
)

// Embedder turns texts into embedding vectors, one per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Ensure Client implements Embedder at compile time.
var _ Embedder = (*Client)(nil)

// Config holds configuration for creating an embedding client.
type Config struct {
	Endpoint string        // Base URL, e.g., "https://api.openai.com/v1"
	Model    string        // Embedding model, e.g., "text-embedding-3-small"
	APIKey   string        // Optional for local endpoints
	Timeout  time.Duration // Per attempt; zero means no per-attempt limit
	Circuit  CircuitBreakerConfig
	Retry    *retry.Config // nil selects retry.EmbeddingConfig()
}

// Client calls an OpenAI-compatible embeddings endpoint behind a circuit
// breaker and a short retry schedule.
type Client struct {
	client   *openai.Client
	endpoint string
	model    string
	timeout  time.Duration
	breaker  *CircuitBreaker
	retry    *retry.Config
	logger   *zap.Logger
}

// NewClient creates a new embedding client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.EmbeddingConfig()
	}

	return &Client{
		client:   openai.NewClientWithConfig(clientConfig),
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		timeout:  cfg.Timeout,
		breaker:  NewCircuitBreaker(cfg.Circuit),
		retry:    retryCfg,
		logger:   logger.Named("embeddings"),
	}, nil
}

// Embed generates embeddings for inputs. When the circuit is open it fails
// fast with an ErrorTypeCircuit error and does not touch the network.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if err := c.breaker.Allow(); err != nil {
		return nil, err
	}

	start := time.Now()
	var embeddings [][]float32
	err := retry.DoIfRetryable(ctx, c.retry, func() error {
		var callErr error
		embeddings, callErr = c.embedOnce(ctx, inputs)
		return callErr
	})
	if err != nil {
		c.breaker.RecordFailure()
		c.logger.Warn("Embedding request failed",
			zap.Int("inputs", len(inputs)),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("circuit", c.breaker.State().String()),
			zap.Error(err))
		return nil, err
	}

	c.breaker.RecordSuccess()
	c.logger.Debug("Embedding request completed",
		zap.Int("inputs", len(inputs)),
		zap.Duration("elapsed", time.Since(start)))
	return embeddings, nil
}

func (c *Client) embedOnce(ctx context.Context, inputs []string) ([][]float32, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: inputs,
	})
	if err != nil {
		llmErr := ClassifyError(err)
		llmErr.Model = c.model
		return nil, llmErr
	}

	if len(resp.Data) != len(inputs) {
		return nil, NewError(ErrorTypeEndpoint,
			fmt.Sprintf("expected %d embeddings, got %d", len(inputs), len(resp.Data)), false, nil)
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	out := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) == 0 {
			return nil, NewError(ErrorTypeEndpoint, "empty embedding in response", false, nil)
		}
		out[i] = d.Embedding
	}
	return out, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// CircuitState exposes the breaker state for health reporting.
func (c *Client) CircuitState() CircuitState {
	return c.breaker.State()
}
