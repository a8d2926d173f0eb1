package services

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource/mssql"
	"github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-analyst/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

type executedQuery struct {
	sql  string
	args []any
}

// mockExecutor records every statement and answers through respond.
type mockExecutor struct {
	mu      sync.Mutex
	queries []executedQuery
	respond func(sql string, args []any) ([]map[string]any, error)
}

func (m *mockExecutor) QueryWithParams(ctx context.Context, sqlQuery string, params []any, limit int) (*datasource.QueryExecutionResult, error) {
	m.mu.Lock()
	m.queries = append(m.queries, executedQuery{sql: sqlQuery, args: params})
	m.mu.Unlock()

	var rows []map[string]any
	if m.respond != nil {
		var err error
		if rows, err = m.respond(sqlQuery, params); err != nil {
			return nil, err
		}
	}
	return &datasource.QueryExecutionResult{Rows: rows, RowCount: len(rows)}, nil
}

func (m *mockExecutor) QuoteIdentifier(name string) string { return `"` + name + `"` }

func (m *mockExecutor) Close() error { return nil }

func (m *mockExecutor) executed() []executedQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]executedQuery(nil), m.queries...)
}

func totalRows(v any) func(string, []any) ([]map[string]any, error) {
	return func(string, []any) ([]map[string]any, error) {
		return []map[string]any{{"total": v}}, nil
	}
}

type staticReflector struct {
	schema *models.SchemaDescriptor
	err    error
}

func (r *staticReflector) Schema(ctx context.Context) (*models.SchemaDescriptor, error) {
	return r.schema, r.err
}

func (r *staticReflector) Invalidate() {}

func column(name, dataType string) models.ColumnDescriptor {
	return models.ColumnDescriptor{Name: name, DataType: dataType, Category: models.CategorizeType(dataType)}
}

func salesSchema() *models.SchemaDescriptor {
	return &models.SchemaDescriptor{Tables: []models.TableDescriptor{
		{Schema: "public", Name: "clientes", Columns: []models.ColumnDescriptor{
			column("cod_cliente", "integer"),
			column("nome", "character varying"),
			column("ativo", "boolean"),
		}},
		{Schema: "public", Name: "estoque", Columns: []models.ColumnDescriptor{
			column("SKU", "text"),
			column("cod_cliente", "integer"),
			column("es_totalestoque", "numeric"),
		}},
		{Schema: "public", Name: "faturamento", Columns: []models.ColumnDescriptor{
			column("SKU", "text"),
			column("giro_sku_cliente", "numeric"),
			column("data", "date"),
		}},
	}}
}

// mockForecasts records which prediction was requested.
type mockForecasts struct {
	called string
	sku    string
	period *models.Period
}

func (m *mockForecasts) PredictStockout(ctx context.Context) (models.StockoutForecastResult, error) {
	m.called = "stockout"
	return models.StockoutForecastResult{}, nil
}

func (m *mockForecasts) PredictTopSales(ctx context.Context, period *models.Period) (models.TopSalesForecastResult, error) {
	m.called, m.period = "top_sales", period
	return models.TopSalesForecastResult{Period: period}, nil
}

func (m *mockForecasts) PredictSKUSales(ctx context.Context, sku string, period *models.Period) (models.SKUForecastResult, error) {
	m.called, m.sku, m.period = "sku_sales", sku, period
	return models.SKUForecastResult{Period: period}, nil
}

func (m *mockForecasts) Invalidate(ctx context.Context, sku string) error { return nil }

func newTestSynthesizer(exec *mockExecutor, dialect datasource.Dialect, schema *models.SchemaDescriptor) (QuerySynthesizer, *mockForecasts) {
	f := &mockForecasts{}
	return NewQuerySynthesizer(exec, dialect, &staticReflector{schema: schema}, f, zap.NewNop()), f
}

func strPtr(s string) *string { return &s }

func intPtr(n int) *int { return &n }

func TestQuerySynthesizer_TotalStock(t *testing.T) {
	exec := &mockExecutor{respond: totalRows("1500.75")}
	s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

	res, err := s.Execute(context.Background(), models.IntentTotalStock, models.Params{})
	require.NoError(t, err)
	assert.Equal(t, models.TotalStockResult{TotalStock: 1500}, res)

	q := exec.executed()
	require.Len(t, q, 1)
	assert.Equal(t, `SELECT COALESCE(SUM("es_totalestoque"), 0) AS total FROM "public"."estoque"`, q[0].sql)
	assert.Empty(t, q[0].args)
}

func TestQuerySynthesizer_DistinctProducts(t *testing.T) {
	exec := &mockExecutor{respond: totalRows(int64(42))}
	s, _ := newTestSynthesizer(exec, mssql.Dialect{}, salesSchema())

	res, err := s.Execute(context.Background(), models.IntentDistinctProductsCount, models.Params{})
	require.NoError(t, err)
	assert.Equal(t, models.DistinctProductsResult{DistinctProducts: 42}, res)
	assert.Equal(t, "SELECT COUNT(DISTINCT [SKU]) AS total FROM [public].[estoque]", exec.executed()[0].sql)
}

func TestQuerySynthesizer_ActiveClients(t *testing.T) {
	t.Run("boolean status column binds true", func(t *testing.T) {
		exec := &mockExecutor{respond: totalRows(int32(7))}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

		res, err := s.Execute(context.Background(), models.IntentActiveClientsCount, models.Params{})
		require.NoError(t, err)
		assert.Equal(t, models.ActiveClientsResult{ActiveClients: 7}, res)

		q := exec.executed()[0]
		assert.Equal(t, `SELECT COUNT(*) AS total FROM "public"."clientes" WHERE "ativo" = $1`, q.sql)
		assert.Equal(t, []any{true}, q.args)
	})

	t.Run("text status column binds ativo", func(t *testing.T) {
		schema := &models.SchemaDescriptor{Tables: []models.TableDescriptor{
			{Name: "clients", Columns: []models.ColumnDescriptor{column("status", "varchar")}},
		}}
		exec := &mockExecutor{respond: totalRows(int64(3))}
		s, _ := newTestSynthesizer(exec, mssql.Dialect{}, schema)

		_, err := s.Execute(context.Background(), models.IntentActiveClientsCount, models.Params{})
		require.NoError(t, err)
		q := exec.executed()[0]
		assert.Equal(t, "SELECT COUNT(*) AS total FROM [clients] WHERE [status] = @p1", q.sql)
		assert.Equal(t, []any{"ativo"}, q.args)
	})

	t.Run("no status column counts everyone with a note", func(t *testing.T) {
		schema := &models.SchemaDescriptor{Tables: []models.TableDescriptor{
			{Schema: "public", Name: "clientes", Columns: []models.ColumnDescriptor{
				column("cod_cliente", "integer"),
				column("nome", "text"),
			}},
		}}
		exec := &mockExecutor{respond: totalRows(int64(12))}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, schema)

		res, err := s.Execute(context.Background(), models.IntentActiveClientsCount, models.Params{})
		require.NoError(t, err)
		assert.Equal(t, models.ActiveClientsResult{ActiveClients: 12, Note: noStatusColumnNote}, res)
		assert.Equal(t, `SELECT COUNT(*) AS total FROM "public"."clientes"`, exec.executed()[0].sql)
	})
}

func TestQuerySynthesizer_SalesCompare(t *testing.T) {
	ctx := context.Background()

	t.Run("two periods for one sku", func(t *testing.T) {
		calls := 0
		exec := &mockExecutor{respond: func(string, []any) ([]map[string]any, error) {
			calls++
			return []map[string]any{{"total": int64(100 * calls)}}, nil
		}}
		s, _ := newTestSynthesizer(exec, mssql.Dialect{}, salesSchema())

		res, err := s.Execute(ctx, models.IntentSKUSalesCompare, models.Params{
			SKU:    strPtr("SKU_1"),
			Months: []models.MonthYear{{Month: 1, Year: 2024}, {Month: 2, Year: 2024}},
		})
		require.NoError(t, err)
		got := res.(models.SalesCompareResult)
		assert.Equal(t, models.CompareModePeriods, got.Mode)
		assert.Equal(t, int64(100), got.Value1)
		assert.Equal(t, int64(200), got.Value2)
		assert.Equal(t, models.RelationSecondGreater, got.Relation)
		assert.Equal(t, &models.MonthYear{Month: 1, Year: 2024}, got.Period1)

		q := exec.executed()
		require.Len(t, q, 2)
		assert.Equal(t,
			"SELECT COALESCE(SUM([giro_sku_cliente]), 0) AS total FROM [public].[faturamento] WHERE [SKU] = @p1 AND MONTH([data]) = @p2 AND YEAR([data]) = @p3",
			q[0].sql)
		assert.Equal(t, []any{"SKU_1", 1, 2024}, q[0].args)
		assert.Equal(t, []any{"SKU_1", 2, 2024}, q[1].args)
	})

	t.Run("two years without sku", func(t *testing.T) {
		exec := &mockExecutor{respond: totalRows(int64(50))}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

		res, err := s.Execute(ctx, models.IntentSKUSalesCompare, models.Params{Years: []int{2023, 2024}})
		require.NoError(t, err)
		got := res.(models.SalesCompareResult)
		assert.Equal(t, models.CompareModeYears, got.Mode)
		assert.Equal(t, models.RelationEqual, got.Relation)
		assert.Equal(t, 2023, got.Year1)
		assert.Equal(t, 2024, got.Year2)

		q := exec.executed()
		assert.Equal(t,
			`SELECT COALESCE(SUM("giro_sku_cliente"), 0) AS total FROM "public"."faturamento" WHERE EXTRACT(YEAR FROM "data")::int = $1`,
			q[0].sql)
		assert.Equal(t, []any{2024}, q[1].args)
	})

	t.Run("two skus within a month", func(t *testing.T) {
		calls := 0
		exec := &mockExecutor{respond: func(string, []any) ([]map[string]any, error) {
			calls++
			return []map[string]any{{"total": int64(300 - 100*calls)}}, nil
		}}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

		res, err := s.Execute(ctx, models.IntentSKUSalesCompare, models.Params{
			SKUs:   []string{"SKU_1", "SKU_2"},
			Months: []models.MonthYear{{Month: 3, Year: 2024}},
		})
		require.NoError(t, err)
		got := res.(models.SalesCompareResult)
		assert.Equal(t, models.CompareModeSKUs, got.Mode)
		assert.Equal(t, []string{"SKU_1", "SKU_2"}, got.SKUs)
		assert.Equal(t, models.RelationFirstGreater, got.Relation)

		q := exec.executed()
		assert.Equal(t, []any{"SKU_1", 3, 2024}, q[0].args)
		assert.Equal(t, []any{"SKU_2", 3, 2024}, q[1].args)
	})

	t.Run("nothing to compare", func(t *testing.T) {
		exec := &mockExecutor{}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

		_, err := s.Execute(ctx, models.IntentSKUSalesCompare, models.Params{SKU: strPtr("SKU_1"), Years: []int{2024}})
		assert.ErrorIs(t, err, apperrors.ErrMissingComparison)
		assert.Empty(t, exec.executed())
	})
}

func TestQuerySynthesizer_BestMonth(t *testing.T) {
	tests := []struct {
		name     string
		dialect  datasource.Dialect
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "postgres",
			dialect:  postgres.Dialect{},
			wantSQL:  `SELECT EXTRACT(YEAR FROM "data")::int AS year, EXTRACT(MONTH FROM "data")::int AS month, COALESCE(SUM("giro_sku_cliente"), 0) AS total FROM "public"."faturamento" WHERE "SKU" = $2 GROUP BY EXTRACT(YEAR FROM "data")::int, EXTRACT(MONTH FROM "data")::int ORDER BY total DESC, year, month LIMIT $1`,
			wantArgs: []any{1, "SKU_9"},
		},
		{
			name:     "mssql",
			dialect:  mssql.Dialect{},
			wantSQL:  "SELECT TOP (@p1) YEAR([data]) AS year, MONTH([data]) AS month, COALESCE(SUM([giro_sku_cliente]), 0) AS total FROM [public].[faturamento] WHERE [SKU] = @p2 GROUP BY YEAR([data]), MONTH([data]) ORDER BY total DESC, year, month",
			wantArgs: []any{1, "SKU_9"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{respond: func(string, []any) ([]map[string]any, error) {
				return []map[string]any{{"YEAR": int64(2024), "MONTH": int64(5), "TOTAL": "880"}}, nil
			}}
			s, _ := newTestSynthesizer(exec, tt.dialect, salesSchema())

			res, err := s.Execute(context.Background(), models.IntentSKUBestMonth, models.Params{SKU: strPtr("SKU_9")})
			require.NoError(t, err)
			assert.Equal(t, models.BestMonthResult{
				SKU:       "SKU_9",
				BestMonth: &models.MonthTotal{Year: 2024, Month: 5, Total: 880},
			}, res)

			q := exec.executed()[0]
			assert.Equal(t, tt.wantSQL, q.sql)
			assert.Equal(t, tt.wantArgs, q.args)
		})
	}

	t.Run("no sales leaves best month empty", func(t *testing.T) {
		exec := &mockExecutor{}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

		res, err := s.Execute(context.Background(), models.IntentSKUBestMonth, models.Params{SKU: strPtr("SKU_0")})
		require.NoError(t, err)
		assert.Nil(t, res.(models.BestMonthResult).BestMonth)
	})
}

func TestQuerySynthesizer_TimeSeries(t *testing.T) {
	exec := &mockExecutor{respond: func(string, []any) ([]map[string]any, error) {
		return []map[string]any{
			{"year": int64(2024), "month": int64(1), "total": int64(10)},
			{"year": int64(2024), "month": int64(2), "total": float64(20.9)},
		}, nil
	}}
	s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

	res, err := s.Execute(context.Background(), models.IntentSalesTimeSeries, models.Params{})
	require.NoError(t, err)
	assert.Equal(t, models.TimeSeriesResult{Points: []models.MonthTotal{
		{Year: 2024, Month: 1, Total: 10},
		{Year: 2024, Month: 2, Total: 20},
	}}, res)

	q := exec.executed()[0]
	assert.NotContains(t, q.sql, "WHERE")
	assert.True(t, strings.HasSuffix(q.sql, "ORDER BY year, month"))
}

func TestQuerySynthesizer_SalesBetweenDates(t *testing.T) {
	ctx := context.Background()

	t.Run("month range is end exclusive", func(t *testing.T) {
		exec := &mockExecutor{respond: totalRows(int64(900))}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

		res, err := s.Execute(ctx, models.IntentSalesBetweenDates, models.Params{
			Start: &models.PeriodBound{Month: 1, Year: 2024},
			End:   &models.PeriodBound{Month: 3, Year: 2024},
		})
		require.NoError(t, err)
		assert.Equal(t, models.SalesBetweenDatesResult{
			Total:   900,
			Filters: models.DateFilters{StartYM: "2024-01", EndYM: "2024-03"},
		}, res)

		q := exec.executed()[0]
		assert.Contains(t, q.sql, `WHERE "data" >= $1 AND "data" < $2`)
		assert.Equal(t, []any{
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		}, q.args)
	})

	t.Run("december end rolls into next year", func(t *testing.T) {
		exec := &mockExecutor{respond: totalRows(int64(1))}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

		_, err := s.Execute(ctx, models.IntentSalesBetweenDates, models.Params{
			Start: &models.PeriodBound{Month: 11, Year: 2023},
			End:   &models.PeriodBound{Month: 12, Year: 2023},
		})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), exec.executed()[0].args[1])
	})

	t.Run("year range with sku", func(t *testing.T) {
		exec := &mockExecutor{respond: totalRows(int64(77))}
		s, _ := newTestSynthesizer(exec, mssql.Dialect{}, salesSchema())

		res, err := s.Execute(ctx, models.IntentSalesBetweenDates, models.Params{
			SKU:   strPtr("SKU_3"),
			Start: &models.PeriodBound{Year: 2022},
			End:   &models.PeriodBound{Year: 2023},
		})
		require.NoError(t, err)
		assert.Equal(t, models.DateFilters{SKU: "SKU_3", Y1: 2022, Y2: 2023}, res.(models.SalesBetweenDatesResult).Filters)

		q := exec.executed()[0]
		assert.Contains(t, q.sql, "WHERE [SKU] = @p1 AND YEAR([data]) BETWEEN @p2 AND @p3")
		assert.Equal(t, []any{"SKU_3", 2022, 2023}, q.args)
	})

	t.Run("no range sums everything", func(t *testing.T) {
		exec := &mockExecutor{respond: totalRows(int64(5))}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

		_, err := s.Execute(ctx, models.IntentSalesBetweenDates, models.Params{})
		require.NoError(t, err)
		assert.NotContains(t, exec.executed()[0].sql, "WHERE")
	})
}

func TestQuerySynthesizer_TopN(t *testing.T) {
	tests := []struct {
		name     string
		n        *int
		wantArgs []any
	}{
		{name: "default", n: nil, wantArgs: []any{10}},
		{name: "zero falls back to default", n: intPtr(0), wantArgs: []any{10}},
		{name: "explicit", n: intPtr(3), wantArgs: []any{3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := &mockExecutor{respond: func(string, []any) ([]map[string]any, error) {
				return []map[string]any{
					{"sku": "SKU_1", "total": int64(30)},
					{"sku": []byte("SKU_2"), "total": int64(20)},
				}, nil
			}}
			s, _ := newTestSynthesizer(exec, mssql.Dialect{}, salesSchema())

			res, err := s.Execute(context.Background(), models.IntentTopNSKUs, models.Params{N: tt.n})
			require.NoError(t, err)
			assert.Equal(t, models.TopNResult{Items: []models.SKUTotal{
				{SKU: "SKU_1", Total: 30},
				{SKU: "SKU_2", Total: 20},
			}}, res)

			q := exec.executed()[0]
			assert.Equal(t,
				"SELECT TOP (@p1) [SKU] AS sku, COALESCE(SUM([giro_sku_cliente]), 0) AS total FROM [public].[faturamento] GROUP BY [SKU] ORDER BY total DESC",
				q.sql)
			assert.Equal(t, tt.wantArgs, q.args)
		})
	}
}

func TestQuerySynthesizer_StockByClient(t *testing.T) {
	ctx := context.Background()

	t.Run("numeric client", func(t *testing.T) {
		exec := &mockExecutor{respond: totalRows(int64(250))}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

		client := models.NewIntClient(1234)
		res, err := s.Execute(ctx, models.IntentStockByClient, models.Params{Client: client})
		require.NoError(t, err)
		assert.Equal(t, models.StockByClientResult{TotalStockClient: 250, Client: client}, res)

		q := exec.executed()[0]
		assert.Equal(t, `SELECT COALESCE(SUM("es_totalestoque"), 0) AS total FROM "public"."estoque" WHERE "cod_cliente" = $1`, q.sql)
		assert.Equal(t, []any{1234}, q.args)
	})

	t.Run("no client sums all inventory", func(t *testing.T) {
		exec := &mockExecutor{respond: totalRows(int64(9000))}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

		res, err := s.Execute(ctx, models.IntentStockByClient, models.Params{})
		require.NoError(t, err)
		assert.Equal(t, models.StockByClientResult{TotalStockClient: 9000}, res)
		assert.Empty(t, exec.executed()[0].args)
	})

	t.Run("client given but no client column", func(t *testing.T) {
		schema := &models.SchemaDescriptor{Tables: []models.TableDescriptor{
			{Name: "estoque", Columns: []models.ColumnDescriptor{
				column("SKU", "text"),
				column("es_totalestoque", "numeric"),
			}},
		}}
		exec := &mockExecutor{}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, schema)

		_, err := s.Execute(ctx, models.IntentStockByClient, models.Params{Client: models.NewTextClient("Loja Centro")})
		var rerr *apperrors.ResolutionError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, apperrors.ResolutionColumn, rerr.Kind)
		assert.Equal(t, "client", rerr.Role)
		assert.Empty(t, exec.executed())
	})
}

func TestQuerySynthesizer_ResolutionErrors(t *testing.T) {
	schema := &models.SchemaDescriptor{Tables: []models.TableDescriptor{
		{Name: "estoque", Columns: []models.ColumnDescriptor{column("SKU", "text"), column("quantidade", "integer")}},
		{Name: "vendas", Columns: []models.ColumnDescriptor{column("SKU", "text")}},
	}}

	t.Run("missing table", func(t *testing.T) {
		exec := &mockExecutor{}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, &models.SchemaDescriptor{})

		_, err := s.Execute(context.Background(), models.IntentTotalStock, models.Params{})
		assert.ErrorIs(t, err, apperrors.ErrSchemaResolution)

		var rerr *apperrors.ResolutionError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, apperrors.ResolutionTable, rerr.Kind)
	})

	t.Run("missing column carries suggestions", func(t *testing.T) {
		exec := &mockExecutor{}
		s, _ := newTestSynthesizer(exec, postgres.Dialect{}, schema)

		_, err := s.Execute(context.Background(), models.IntentSalesTimeSeries, models.Params{})
		var rerr *apperrors.ResolutionError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, apperrors.ResolutionColumn, rerr.Kind)
		assert.Equal(t, "vendas", rerr.Table)
		assert.Equal(t, "quantity", rerr.Role)
		assert.Empty(t, exec.executed())
	})

	t.Run("reflector failure", func(t *testing.T) {
		exec := &mockExecutor{}
		s := NewQuerySynthesizer(exec, postgres.Dialect{}, &staticReflector{err: errors.New("connection refused")}, &mockForecasts{}, zap.NewNop())

		_, err := s.Execute(context.Background(), models.IntentTotalStock, models.Params{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
		assert.NotErrorIs(t, err, apperrors.ErrSchemaResolution)
	})
}

func TestQuerySynthesizer_RejectsUnsafeParameter(t *testing.T) {
	exec := &mockExecutor{respond: totalRows(int64(1))}
	s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

	_, err := s.Execute(context.Background(), models.IntentSalesBetweenDates, models.Params{SKU: strPtr("' OR '1'='1")})
	assert.ErrorIs(t, err, apperrors.ErrUnsafeParameter)
	assert.Empty(t, exec.executed(), "rejected statements never reach the database")
}

func TestQuerySynthesizer_ExecutorError(t *testing.T) {
	exec := &mockExecutor{respond: func(string, []any) ([]map[string]any, error) {
		return nil, errors.New("deadlock detected")
	}}
	s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

	_, err := s.Execute(context.Background(), models.IntentTotalStock, models.Params{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
}

func TestQuerySynthesizer_ForecastIntentsDelegate(t *testing.T) {
	exec := &mockExecutor{}
	s, f := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())
	ctx := context.Background()
	year := &models.Period{Type: models.PeriodYear}

	_, err := s.Execute(ctx, models.IntentPredictStockout, models.Params{})
	require.NoError(t, err)
	assert.Equal(t, "stockout", f.called)

	_, err = s.Execute(ctx, models.IntentPredictTopSales, models.Params{Period: year})
	require.NoError(t, err)
	assert.Equal(t, "top_sales", f.called)
	assert.Same(t, year, f.period)

	_, err = s.Execute(ctx, models.IntentPredictSKUSales, models.Params{SKU: strPtr("SKU_4"), Period: year})
	require.NoError(t, err)
	assert.Equal(t, "sku_sales", f.called)
	assert.Equal(t, "SKU_4", f.sku)

	assert.Empty(t, exec.executed())
}

func TestQuerySynthesizer_ConversationalIntents(t *testing.T) {
	s, _ := newTestSynthesizer(&mockExecutor{}, postgres.Dialect{}, salesSchema())
	ctx := context.Background()

	res, err := s.Execute(ctx, models.IntentGreeting, models.Params{})
	require.NoError(t, err)
	assert.Equal(t, models.GreetingResult{}, res)

	res, err = s.Execute(ctx, models.IntentFarewell, models.Params{})
	require.NoError(t, err)
	assert.Equal(t, models.FarewellResult{}, res)

	res, err = s.Execute(ctx, models.IntentUnknown, models.Params{OriginalText: "qual a cor do céu"})
	require.NoError(t, err)
	assert.Equal(t, models.UnknownResult{OriginalText: "qual a cor do céu"}, res)
}

func TestQuerySynthesizer_HandlesEveryIntent(t *testing.T) {
	exec := &mockExecutor{respond: totalRows(int64(0))}
	s, _ := newTestSynthesizer(exec, postgres.Dialect{}, salesSchema())

	for _, intent := range models.AllIntents() {
		t.Run(intent.String(), func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, _ = s.Execute(context.Background(), intent, models.Params{})
			})
		})
	}
}

func TestQuerySynthesizer_PanicsOnUnknownIntentValue(t *testing.T) {
	s, _ := newTestSynthesizer(&mockExecutor{}, postgres.Dialect{}, salesSchema())

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.ErrorIs(t, err, apperrors.ErrUnsupportedIntent)
		assert.Contains(t, err.Error(), "weather_report")
	}()
	_, _ = s.Execute(context.Background(), models.Intent("weather_report"), models.Params{})
}

func TestToDecimal(t *testing.T) {
	tests := []struct {
		name    string
		in      any
		want    string
		wantErr bool
	}{
		{name: "nil", in: nil, want: "0"},
		{name: "int64", in: int64(12), want: "12"},
		{name: "int32", in: int32(-3), want: "-3"},
		{name: "uint64", in: uint64(18446744073709551615), want: "18446744073709551615"},
		{name: "float64", in: 2.5, want: "2.5"},
		{name: "text", in: "1234.50", want: "1234.5"},
		{name: "bytes", in: []byte("7"), want: "7"},
		{name: "bool", in: true, want: "1"},
		{name: "decimal", in: decimal.RequireFromString("9.99"), want: "9.99"},
		{name: "pg numeric", in: pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}, want: "123.45"},
		{name: "pg null numeric", in: pgtype.Numeric{}, want: "0"},
		{name: "pg NaN", in: pgtype.Numeric{NaN: true, Valid: true, Int: big.NewInt(0)}, wantErr: true},
		{name: "bad text", in: "abc", wantErr: true},
		{name: "unsupported", in: struct{}{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDecimal(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}
