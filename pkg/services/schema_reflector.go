package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// SchemaReflector exposes the live schema of the business database.
type SchemaReflector interface {
	// Schema returns the cached snapshot, discovering it on first use.
	Schema(ctx context.Context) (*models.SchemaDescriptor, error)

	// Invalidate drops the snapshot; the next Schema call rediscovers.
	Invalidate()
}

type schemaReflector struct {
	discoverer datasource.SchemaDiscoverer
	logger     *zap.Logger

	mu     sync.RWMutex
	cached *models.SchemaDescriptor
}

// NewSchemaReflector creates a reflector over a discoverer.
func NewSchemaReflector(discoverer datasource.SchemaDiscoverer, logger *zap.Logger) SchemaReflector {
	return &schemaReflector{
		discoverer: discoverer,
		logger:     logger.Named("schema-reflector"),
	}
}

var _ SchemaReflector = (*schemaReflector)(nil)

func (r *schemaReflector) Schema(ctx context.Context) (*models.SchemaDescriptor, error) {
	r.mu.RLock()
	cached := r.cached
	r.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil {
		return r.cached, nil
	}

	start := time.Now()
	schema, err := r.discover(ctx)
	if err != nil {
		return nil, err
	}
	r.cached = schema

	r.logger.Info("Schema discovered",
		zap.Int("tables", len(schema.Tables)),
		zap.Duration("elapsed", time.Since(start)))
	return schema, nil
}

func (r *schemaReflector) discover(ctx context.Context) (*models.SchemaDescriptor, error) {
	tables, err := r.discoverer.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	schema := &models.SchemaDescriptor{Tables: make([]models.TableDescriptor, 0, len(tables))}
	for _, t := range tables {
		cols, err := r.discoverer.DiscoverColumns(ctx, t.SchemaName, t.TableName)
		if err != nil {
			return nil, fmt.Errorf("discover columns of %s.%s: %w", t.SchemaName, t.TableName, err)
		}

		td := models.TableDescriptor{
			Schema:  t.SchemaName,
			Name:    t.TableName,
			Columns: make([]models.ColumnDescriptor, 0, len(cols)),
		}
		for _, c := range cols {
			td.Columns = append(td.Columns, models.ColumnDescriptor{
				Name:     c.ColumnName,
				DataType: c.DataType,
				Category: models.CategorizeType(c.DataType),
			})
		}
		schema.Tables = append(schema.Tables, td)
	}
	return schema, nil
}

func (r *schemaReflector) Invalidate() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
	r.logger.Debug("Schema cache invalidated")
}
