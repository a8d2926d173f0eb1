package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/forecast"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

const (
	modelsPrefix    = "models/"
	forecastsPrefix = "forecasts/"
)

// ErrPrefixDeleteUnsupported is returned by InvalidateSKU for stores that
// cannot enumerate keys.
var ErrPrefixDeleteUnsupported = errors.New("store does not support prefix deletion")

// ForecastCache stores fitted models keyed by (sku, hash) and forecasts keyed
// by (sku, hash, horizon). Entries are written once and never updated.
type ForecastCache struct {
	store  BlobStore
	logger *zap.Logger
}

// NewForecastCache wraps store.
func NewForecastCache(store BlobStore, logger *zap.Logger) *ForecastCache {
	return &ForecastCache{store: store, logger: logger.Named("forecast-cache")}
}

// ModelKey returns the store key of a model.
func ModelKey(sku, hash string) string {
	return fmt.Sprintf("%s%s%s", modelsPrefix, skuSegment(sku), hash)
}

// ForecastKey returns the store key of a forecast.
func ForecastKey(sku, hash string, horizon int) string {
	return fmt.Sprintf("%s%s%s_%d", forecastsPrefix, skuSegment(sku), hash, horizon)
}

// skuSegment is the per-SKU key directory. safeSKU never emits '/', so the
// segment of one SKU is never a prefix of another's.
func skuSegment(sku string) string {
	return safeSKU(sku) + "/"
}

// safeSKU keeps [A-Za-z0-9_-] and replaces everything else with '_'.
func safeSKU(sku string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return '_'
		}
	}, sku)
}

// LoadModel returns the cached model. Read and decode failures are logged
// and reported as a miss.
func (c *ForecastCache) LoadModel(ctx context.Context, sku, hash string) (*forecast.Model, bool) {
	var m forecast.Model
	if !c.load(ctx, ModelKey(sku, hash), &m) {
		return nil, false
	}
	return &m, true
}

// SaveModel writes a fitted model.
func (c *ForecastCache) SaveModel(ctx context.Context, sku, hash string, m *forecast.Model) error {
	return c.save(ctx, ModelKey(sku, hash), m)
}

// LoadForecast returns the cached forecast for the horizon.
func (c *ForecastCache) LoadForecast(ctx context.Context, sku, hash string, horizon int) (*models.Forecast, bool) {
	var f models.Forecast
	if !c.load(ctx, ForecastKey(sku, hash, horizon), &f) {
		return nil, false
	}
	if len(f.Points) != horizon {
		c.logger.Warn("Ignoring cached forecast with wrong length",
			zap.String("sku", sku),
			zap.Int("horizon", horizon),
			zap.Int("points", len(f.Points)))
		return nil, false
	}
	return &f, true
}

// SaveForecast writes a forecast under its own SKU, hash and horizon.
func (c *ForecastCache) SaveForecast(ctx context.Context, f *models.Forecast) error {
	return c.save(ctx, ForecastKey(f.SKU, f.DataHash, f.Horizon), f)
}

// InvalidateSKU drops every model and forecast of sku.
func (c *ForecastCache) InvalidateSKU(ctx context.Context, sku string) error {
	pd, ok := c.store.(PrefixDeleter)
	if !ok {
		return ErrPrefixDeleteUnsupported
	}
	seg := skuSegment(sku)
	if err := pd.DeletePrefix(ctx, modelsPrefix+seg); err != nil {
		return fmt.Errorf("invalidate models: %w", err)
	}
	if err := pd.DeletePrefix(ctx, forecastsPrefix+seg); err != nil {
		return fmt.Errorf("invalidate forecasts: %w", err)
	}
	return nil
}

func (c *ForecastCache) load(ctx context.Context, key string, dst any) bool {
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("Cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *ForecastCache) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	return nil
}
