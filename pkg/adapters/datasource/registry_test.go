package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRegistry_RegisterAndCreate(t *testing.T) {
	var gotConfig map[string]any
	Register(DatasourceAdapterRegistration{
		Info: DatasourceAdapterInfo{Type: "test-registry", DisplayName: "Test"},
		Factory: func(ctx context.Context, config map[string]any, logger *zap.Logger) (Adapter, error) {
			gotConfig = config
			require.NotNil(t, logger)
			return nil, errors.New("no real adapter")
		},
	})

	assert.True(t, IsRegistered("test-registry"))
	assert.NotNil(t, GetFactory("test-registry"))

	found := false
	for _, info := range RegisteredAdapters() {
		if info.Type == "test-registry" {
			found = true
			assert.Equal(t, "Test", info.DisplayName)
		}
	}
	assert.True(t, found)

	_, err := NewAdapter(context.Background(), "test-registry", map[string]any{"host": "db"}, nil)
	assert.EqualError(t, err, "no real adapter")
	assert.Equal(t, "db", gotConfig["host"])
}

func TestNewAdapter_UnknownType(t *testing.T) {
	_, err := NewAdapter(context.Background(), "oracle", nil, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported datasource type: oracle")
	assert.False(t, IsRegistered("oracle"))
	assert.Nil(t, GetFactory("oracle"))
}

func TestConfigInt(t *testing.T) {
	cfg := map[string]any{"a": 5, "b": float64(7), "c": "x", "d": int64(9)}
	assert.Equal(t, 5, ConfigInt(cfg, "a", 0))
	assert.Equal(t, 7, ConfigInt(cfg, "b", 0))
	assert.Equal(t, 1, ConfigInt(cfg, "c", 1))
	assert.Equal(t, 9, ConfigInt(cfg, "d", 0))
	assert.Equal(t, 3, ConfigInt(cfg, "missing", 3))
}
