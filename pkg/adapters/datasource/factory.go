package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// NewAdapter opens an adapter of the given type from the registry.
// Adapters register themselves from init(); main blank-imports them.
func NewAdapter(ctx context.Context, dsType string, config map[string]any, logger *zap.Logger) (Adapter, error) {
	factory := GetFactory(dsType)
	if factory == nil {
		return nil, fmt.Errorf("unsupported datasource type: %s (not compiled in)", dsType)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return factory(ctx, config, logger)
}

// ConfigInt reads an integer option that may arrive as int or as a JSON float64.
func ConfigInt(config map[string]any, key string, def int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}
