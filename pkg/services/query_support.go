package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-analyst/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-analyst/pkg/logging"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
	sqlguard "github.com/ekaya-inc/ekaya-analyst/pkg/sql"
)

// queryRunner executes generated statements after screening them.
type queryRunner struct {
	executor datasource.QueryExecutor
	logger   *zap.Logger
}

// columnResolver maps table and column roles onto the live schema.
type columnResolver struct {
	reflector SchemaReflector
	dialect   datasource.Dialect
	logger    *zap.Logger
}

// run screens bind values, validates the statement and executes it.
func (r *queryRunner) run(ctx context.Context, query string, args []any) (*datasource.QueryExecutionResult, error) {
	if hit := sqlguard.CheckBindings(args); hit != nil {
		r.logger.Warn("Rejected bind value",
			zap.Int("position", hit.Position),
			zap.String("fingerprint", hit.Fingerprint))
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsafeParameter, hit.Error())
	}

	v := sqlguard.ValidateAndNormalize(query)
	if v.Error != nil {
		return nil, fmt.Errorf("generated statement rejected: %w", v.Error)
	}

	start := time.Now()
	res, err := r.executor.QueryWithParams(ctx, v.NormalizedSQL, args, 0)
	if err != nil {
		r.logger.Error("Query failed",
			zap.String("sql", logging.SanitizeQuery(v.NormalizedSQL)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("execute query: %w", err)
	}
	r.logger.Debug("Query executed",
		zap.Int("rows", res.RowCount),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// scalar runs a single-value aggregate and truncates it to an integer.
func (r *queryRunner) scalar(ctx context.Context, query string, args []any) (int64, error) {
	res, err := r.run(ctx, query, args)
	if err != nil {
		return 0, err
	}
	if len(res.Rows) == 0 {
		return 0, nil
	}
	return rowInt(res.Rows[0], "total")
}

func (s *columnResolver) schema(ctx context.Context) (*models.SchemaDescriptor, error) {
	schema, err := s.reflector.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	return schema, nil
}

func resolveTable(schema *models.SchemaDescriptor, role string, candidates []string) (*models.TableDescriptor, error) {
	if t, ok := MatchTable(schema, candidates); ok {
		return t, nil
	}
	return nil, &apperrors.ResolutionError{
		Kind:        apperrors.ResolutionTable,
		Role:        role,
		Candidates:  candidates,
		Suggestions: Suggest(candidates, schema.TableNames()),
	}
}

// resolveColumn returns the quoted name of the column for role. preferred,
// when non-empty and present verbatim, wins over fuzzy matching.
func (s *columnResolver) resolveColumn(table *models.TableDescriptor, role, preferred string, candidates []string) (string, models.ColumnDescriptor, error) {
	if preferred != "" {
		if c, ok := table.Column(preferred); ok {
			return s.dialect.QuoteIdentifier(c.Name), c, nil
		}
	}
	m := MatchColumn(table, candidates)
	if !m.Found() {
		return "", models.ColumnDescriptor{}, &apperrors.ResolutionError{
			Kind:        apperrors.ResolutionColumn,
			Table:       table.Name,
			Role:        role,
			Candidates:  candidates,
			Suggestions: Suggest(candidates, table.ColumnNames()),
		}
	}
	c, _ := table.Column(m.Column)
	s.logger.Debug("Column resolved",
		zap.String("table", table.Name),
		zap.String("role", role),
		zap.String("column", m.Column),
		zap.Int("score", m.Score))
	return s.dialect.QuoteIdentifier(m.Column), c, nil
}

func (s *columnResolver) qualified(t *models.TableDescriptor) string {
	return s.dialect.QualifiedTable(t.Schema, t.Name)
}

// salesColumns is the resolved sales table with its quoted columns.
type salesColumns struct {
	table string
	sku   string
	qty   string
	date  string
}

func (s *columnResolver) resolveSales(ctx context.Context) (*salesColumns, error) {
	schema, err := s.schema(ctx)
	if err != nil {
		return nil, err
	}
	t, err := resolveTable(schema, "sales", salesTables)
	if err != nil {
		return nil, err
	}
	sku, _, err := s.resolveColumn(t, "sku", preferredSalesSKU, salesSKUColumns)
	if err != nil {
		return nil, err
	}
	qty, _, err := s.resolveColumn(t, "quantity", preferredSalesQty, salesQtyColumns)
	if err != nil {
		return nil, err
	}
	date, _, err := s.resolveColumn(t, "date", preferredSalesDate, salesDateColumns)
	if err != nil {
		return nil, err
	}
	return &salesColumns{table: s.qualified(t), sku: sku, qty: qty, date: date}, nil
}

