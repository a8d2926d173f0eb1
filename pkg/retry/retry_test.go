package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:   maxRetries,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

type flaky struct {
	retryable bool
}

func (f flaky) Error() string     { return "flaky" }
func (f flaky) IsRetryable() bool { return f.retryable }

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)

	emb := EmbeddingConfig()
	assert.Less(t, emb.MaxDelay, cfg.MaxDelay)
}

func TestDo(t *testing.T) {
	t.Run("success first try", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastConfig(3), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("success after retries", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastConfig(3), func() error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausted returns last error", func(t *testing.T) {
		calls := 0
		err := Do(context.Background(), fastConfig(2), func() error {
			calls++
			return errors.New("still down")
		})
		assert.EqualError(t, err, "still down")
		assert.Equal(t, 3, calls)
	})

	t.Run("context cancelled during wait", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := &Config{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 1}
		calls := 0
		err := Do(ctx, cfg, func() error {
			calls++
			cancel()
			return errors.New("boom")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	v, err := DoWithResult(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("i/o timeout")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"wrapped canceled", errors.Join(errors.New("embed"), context.Canceled), false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"pg starting", errors.New("FATAL: the database system is starting up"), true},
		{"http 503", errors.New("status 503"), true},
		{"auth", errors.New("password authentication failed"), false},
		{"declares retryable", flaky{retryable: true}, true},
		{"declares permanent", flaky{retryable: false}, false},
		{"wrapped declaration", errors.Join(errors.New("ctx"), flaky{retryable: true}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestDoIfRetryable(t *testing.T) {
	t.Run("permanent error returns immediately", func(t *testing.T) {
		calls := 0
		err := DoIfRetryable(context.Background(), fastConfig(3), func() error {
			calls++
			return errors.New("syntax error at or near")
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("escalates repeated error type", func(t *testing.T) {
		cfg := fastConfig(5)
		cfg.MaxSameErrorType = 2
		calls := 0
		err := DoIfRetryable(context.Background(), cfg, func() error {
			calls++
			return errors.New("HTTP 503 service unavailable")
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "repeated error (2 times, type=503)")
		assert.Equal(t, 2, calls)
	})

	t.Run("recovers", func(t *testing.T) {
		calls := 0
		err := DoIfRetryable(context.Background(), fastConfig(3), func() error {
			calls++
			if calls == 1 {
				return errors.New("timeout")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})
}

func TestClassifyErrorType(t *testing.T) {
	assert.Equal(t, "nil", classifyErrorType(nil))
	assert.Equal(t, "429", classifyErrorType(errors.New("HTTP 429")))
	assert.Equal(t, "connection", classifyErrorType(errors.New("connection reset by peer")))
	assert.Equal(t, "pool", classifyErrorType(errors.New("sorry, too many clients already")))
	assert.Equal(t, "unknown", classifyErrorType(errors.New("weird")))
}
