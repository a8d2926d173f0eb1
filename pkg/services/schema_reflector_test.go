package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

type mockDiscoverer struct {
	mu         sync.Mutex
	tables     []datasource.TableMetadata
	columns    map[string][]datasource.ColumnMetadata
	tablesErr  error
	tableCalls int
}

func (m *mockDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	m.mu.Lock()
	m.tableCalls++
	m.mu.Unlock()
	if m.tablesErr != nil {
		return nil, m.tablesErr
	}
	return m.tables, nil
}

func (m *mockDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	cols, ok := m.columns[tableName]
	if !ok {
		return nil, errors.New("no such table")
	}
	return cols, nil
}

func (m *mockDiscoverer) Close() error { return nil }

func (m *mockDiscoverer) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tableCalls
}

func salesDiscoverer() *mockDiscoverer {
	return &mockDiscoverer{
		tables: []datasource.TableMetadata{
			{SchemaName: "public", TableName: "clientes"},
			{SchemaName: "public", TableName: "estoque"},
		},
		columns: map[string][]datasource.ColumnMetadata{
			"clientes": {
				{ColumnName: "cod_cliente", DataType: "integer", OrdinalPosition: 1},
				{ColumnName: "nome", DataType: "character varying", OrdinalPosition: 2},
				{ColumnName: "ativo", DataType: "boolean", OrdinalPosition: 3},
			},
			"estoque": {
				{ColumnName: "SKU", DataType: "text", OrdinalPosition: 1},
				{ColumnName: "es_totalestoque", DataType: "numeric", OrdinalPosition: 2},
			},
		},
	}
}

func TestSchemaReflector_DiscoversAndCaches(t *testing.T) {
	disc := salesDiscoverer()
	r := NewSchemaReflector(disc, zap.NewNop())
	ctx := context.Background()

	schema, err := r.Schema(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"clientes", "estoque"}, schema.TableNames())

	clientes, ok := schema.Table("clientes")
	require.True(t, ok)
	assert.Equal(t, []string{"cod_cliente", "nome", "ativo"}, clientes.ColumnNames())
	ativo, ok := clientes.Column("ativo")
	require.True(t, ok)
	assert.Equal(t, models.TypeBool, ativo.Category)

	estoque, _ := schema.Table("estoque")
	qty, _ := estoque.Column("es_totalestoque")
	assert.Equal(t, models.TypeNumeric, qty.Category)
	assert.Equal(t, "public", estoque.Schema)

	again, err := r.Schema(ctx)
	require.NoError(t, err)
	assert.Same(t, schema, again)
	assert.Equal(t, 1, disc.calls())

	r.Invalidate()
	_, err = r.Schema(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, disc.calls())
}

func TestSchemaReflector_ConcurrentFirstLoad(t *testing.T) {
	disc := salesDiscoverer()
	r := NewSchemaReflector(disc, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Schema(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, disc.calls())
}

func TestSchemaReflector_ErrorIsNotCached(t *testing.T) {
	disc := salesDiscoverer()
	disc.tablesErr = errors.New("connection reset")
	r := NewSchemaReflector(disc, zap.NewNop())

	_, err := r.Schema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discover tables")

	disc.tablesErr = nil
	schema, err := r.Schema(context.Background())
	require.NoError(t, err)
	assert.Len(t, schema.Tables, 2)
}

func TestSchemaReflector_ColumnError(t *testing.T) {
	disc := salesDiscoverer()
	disc.tables = append(disc.tables, datasource.TableMetadata{SchemaName: "public", TableName: "ghost"})
	r := NewSchemaReflector(disc, zap.NewNop())

	_, err := r.Schema(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public.ghost")
}
