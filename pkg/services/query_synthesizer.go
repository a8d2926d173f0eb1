package services

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-analyst/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// Table and column name hints, tried in order.
var (
	inventoryTables = []string{"estoque", "stock", "inventory"}
	salesTables     = []string{"faturamento", "venda", "sales", "fatur"}
	clientTables    = []string{"clientes", "clients", "customers"}

	inventoryQtyColumns    = []string{"quant", "qtd", "qty", "amount", "saldo"}
	inventorySKUColumns    = []string{"sku", "produto", "produto_id", "codigo", "cod_cliente", "cod"}
	inventoryClientColumns = []string{"cod_cliente", "cliente", "codclient", "client"}
	clientStatusColumns    = []string{"ativo", "is_active", "active", "status"}
	salesSKUColumns        = []string{"sku", "produto", "codigo", "cod", "cod_produto"}
	salesQtyColumns        = []string{"quant", "qtd", "qty", "amount", "valor", "giro"}
	salesDateColumns       = []string{"data", "date", "mes", "periodo"}
)

// Exact column names used as-is when present.
const (
	preferredInventoryQty = "es_totalestoque"
	preferredSalesSKU     = "SKU"
	preferredSalesQty     = "giro_sku_cliente"
	preferredSalesDate    = "data"

	defaultTopN = 10

	noStatusColumnNote = "Nenhuma coluna de status encontrada; retornando contagem total de clientes."
)

// QuerySynthesizer answers a classified question against the live schema.
type QuerySynthesizer interface {
	// Execute panics with apperrors.ErrUnsupportedIntent for an intent it
	// does not know.
	Execute(ctx context.Context, intent models.Intent, params models.Params) (models.QueryResult, error)
}

type querySynthesizer struct {
	*queryRunner
	*columnResolver
	dialect   datasource.Dialect
	forecasts ForecastService
	logger    *zap.Logger
}

// NewQuerySynthesizer wires a synthesizer to a datasource and the forecast service.
func NewQuerySynthesizer(
	executor datasource.QueryExecutor,
	dialect datasource.Dialect,
	reflector SchemaReflector,
	forecasts ForecastService,
	logger *zap.Logger,
) QuerySynthesizer {
	logger = logger.Named("query-synthesizer")
	return &querySynthesizer{
		queryRunner:    &queryRunner{executor: executor, logger: logger},
		columnResolver: &columnResolver{reflector: reflector, dialect: dialect, logger: logger},
		dialect:        dialect,
		forecasts:      forecasts,
		logger:         logger,
	}
}

var _ QuerySynthesizer = (*querySynthesizer)(nil)

func (s *querySynthesizer) Execute(ctx context.Context, intent models.Intent, params models.Params) (models.QueryResult, error) {
	switch intent {
	case models.IntentGreeting:
		return models.GreetingResult{}, nil
	case models.IntentFarewell:
		return models.FarewellResult{}, nil
	case models.IntentUnknown:
		return models.UnknownResult{OriginalText: params.OriginalText}, nil
	case models.IntentTotalStock:
		return s.totalStock(ctx)
	case models.IntentDistinctProductsCount:
		return s.distinctProducts(ctx)
	case models.IntentActiveClientsCount:
		return s.activeClients(ctx)
	case models.IntentSKUSalesCompare:
		return s.salesCompare(ctx, params)
	case models.IntentSKUBestMonth:
		return s.bestMonth(ctx, params)
	case models.IntentSalesTimeSeries:
		return s.timeSeries(ctx, params)
	case models.IntentSalesBetweenDates:
		return s.salesBetweenDates(ctx, params)
	case models.IntentTopNSKUs:
		return s.topN(ctx, params)
	case models.IntentStockByClient:
		return s.stockByClient(ctx, params)
	case models.IntentPredictStockout:
		return s.forecasts.PredictStockout(ctx)
	case models.IntentPredictTopSales:
		return s.forecasts.PredictTopSales(ctx, params.Period)
	case models.IntentPredictSKUSales:
		return s.forecasts.PredictSKUSales(ctx, params.SKUValue(), params.Period)
	default:
		panic(fmt.Errorf("%w: %q", apperrors.ErrUnsupportedIntent, string(intent)))
	}
}

// queryBuilder accumulates bind values and hands out dialect placeholders.
type queryBuilder struct {
	dialect datasource.Dialect
	args    []any
	where   []string
}

func (b *queryBuilder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

func (b *queryBuilder) filter(format string, values ...any) {
	placeholders := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = b.bind(v)
	}
	b.where = append(b.where, fmt.Sprintf(format, placeholders...))
}

func (b *queryBuilder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

// rowCap returns the TOP and LIMIT fragments for n rows. Call it at the
// position the TOP fragment appears so bind order matches the text.
func (b *queryBuilder) rowCap(n int) (top, limit string) {
	if b.dialect.TopClause("x") != "" {
		return b.dialect.TopClause(b.bind(n)), ""
	}
	return "", b.dialect.LimitClause(b.bind(n))
}

func (s *querySynthesizer) newBuilder() *queryBuilder {
	return &queryBuilder{dialect: s.dialect}
}

func (s *querySynthesizer) totalStock(ctx context.Context) (models.QueryResult, error) {
	schema, err := s.schema(ctx)
	if err != nil {
		return nil, err
	}
	t, err := resolveTable(schema, "inventory", inventoryTables)
	if err != nil {
		return nil, err
	}
	qty, _, err := s.resolveColumn(t, "quantity", preferredInventoryQty, inventoryQtyColumns)
	if err != nil {
		return nil, err
	}

	total, err := s.scalar(ctx, fmt.Sprintf("SELECT COALESCE(SUM(%s), 0) AS total FROM %s", qty, s.qualified(t)), nil)
	if err != nil {
		return nil, err
	}
	return models.TotalStockResult{TotalStock: total}, nil
}

func (s *querySynthesizer) distinctProducts(ctx context.Context) (models.QueryResult, error) {
	schema, err := s.schema(ctx)
	if err != nil {
		return nil, err
	}
	t, err := resolveTable(schema, "inventory", inventoryTables)
	if err != nil {
		return nil, err
	}
	sku, _, err := s.resolveColumn(t, "sku", "", inventorySKUColumns)
	if err != nil {
		return nil, err
	}

	total, err := s.scalar(ctx, fmt.Sprintf("SELECT COUNT(DISTINCT %s) AS total FROM %s", sku, s.qualified(t)), nil)
	if err != nil {
		return nil, err
	}
	return models.DistinctProductsResult{DistinctProducts: total}, nil
}

func (s *querySynthesizer) activeClients(ctx context.Context) (models.QueryResult, error) {
	schema, err := s.schema(ctx)
	if err != nil {
		return nil, err
	}
	t, err := resolveTable(schema, "clients", clientTables)
	if err != nil {
		return nil, err
	}

	b := s.newBuilder()
	status, statusCol, err := s.resolveColumn(t, "status", "", clientStatusColumns)
	if err != nil {
		total, err := s.scalar(ctx, fmt.Sprintf("SELECT COUNT(*) AS total FROM %s", s.qualified(t)), nil)
		if err != nil {
			return nil, err
		}
		return models.ActiveClientsResult{ActiveClients: total, Note: noStatusColumnNote}, nil
	}

	var active any = "ativo"
	if statusCol.Category == models.TypeBool {
		active = true
	}
	b.filter(status+" = %s", active)

	total, err := s.scalar(ctx, fmt.Sprintf("SELECT COUNT(*) AS total FROM %s%s", s.qualified(t), b.whereClause()), b.args)
	if err != nil {
		return nil, err
	}
	return models.ActiveClientsResult{ActiveClients: total}, nil
}

// salesTotal sums sales for an optional SKU and month/year filter.
// month is ignored when zero, year when zero.
func (s *querySynthesizer) salesTotal(ctx context.Context, c *salesColumns, sku string, month, year int) (int64, error) {
	b := s.newBuilder()
	if sku != "" {
		b.filter(c.sku+" = %s", sku)
	}
	if month > 0 {
		b.filter(s.dialect.MonthExpr(c.date)+" = %s", month)
	}
	if year > 0 {
		b.filter(s.dialect.YearExpr(c.date)+" = %s", year)
	}
	return s.scalar(ctx, fmt.Sprintf("SELECT COALESCE(SUM(%s), 0) AS total FROM %s%s", c.qty, c.table, b.whereClause()), b.args)
}

func (s *querySynthesizer) salesCompare(ctx context.Context, p models.Params) (models.QueryResult, error) {
	c, err := s.resolveSales(ctx)
	if err != nil {
		return nil, err
	}
	sku := p.SKUValue()
	result := models.SalesCompareResult{SKU: sku}

	var v1, v2 int64
	switch {
	case len(p.Months) >= 2:
		p1, p2 := p.Months[0], p.Months[1]
		result.Mode = models.CompareModePeriods
		result.Period1, result.Period2 = &p1, &p2
		if v1, err = s.salesTotal(ctx, c, sku, p1.Month, p1.Year); err != nil {
			return nil, err
		}
		if v2, err = s.salesTotal(ctx, c, sku, p2.Month, p2.Year); err != nil {
			return nil, err
		}
	case len(p.Years) >= 2:
		result.Mode = models.CompareModeYears
		result.Year1, result.Year2 = p.Years[0], p.Years[1]
		if v1, err = s.salesTotal(ctx, c, sku, 0, result.Year1); err != nil {
			return nil, err
		}
		if v2, err = s.salesTotal(ctx, c, sku, 0, result.Year2); err != nil {
			return nil, err
		}
	case len(p.SKUs) >= 2:
		result.Mode = models.CompareModeSKUs
		result.SKU = ""
		result.SKUs = p.SKUs[:2]
		month, year := 0, 0
		switch {
		case len(p.Months) == 1:
			month, year = p.Months[0].Month, p.Months[0].Year
			result.Period1 = &p.Months[0]
		case len(p.Years) == 1:
			year = p.Years[0]
			result.Year1 = year
		}
		if v1, err = s.salesTotal(ctx, c, p.SKUs[0], month, year); err != nil {
			return nil, err
		}
		if v2, err = s.salesTotal(ctx, c, p.SKUs[1], month, year); err != nil {
			return nil, err
		}
	default:
		return nil, apperrors.ErrMissingComparison
	}

	result.Value1, result.Value2 = v1, v2
	result.Relation = models.CompareTotals(v1, v2)
	return result, nil
}

func (s *querySynthesizer) bestMonth(ctx context.Context, p models.Params) (models.QueryResult, error) {
	c, err := s.resolveSales(ctx)
	if err != nil {
		return nil, err
	}
	year, month := s.dialect.YearExpr(c.date), s.dialect.MonthExpr(c.date)

	b := s.newBuilder()
	top, limit := b.rowCap(1)
	sku := p.SKUValue()
	if sku != "" {
		b.filter(c.sku+" = %s", sku)
	}
	query := fmt.Sprintf(
		"SELECT %s%s AS year, %s AS month, COALESCE(SUM(%s), 0) AS total FROM %s%s GROUP BY %s, %s ORDER BY total DESC, year, month%s",
		top, year, month, c.qty, c.table, b.whereClause(), year, month, limit)

	res, err := s.run(ctx, query, b.args)
	if err != nil {
		return nil, err
	}
	result := models.BestMonthResult{SKU: sku}
	if len(res.Rows) == 0 {
		return result, nil
	}
	mt, err := monthTotal(res.Rows[0])
	if err != nil {
		return nil, err
	}
	result.BestMonth = &mt
	return result, nil
}

func (s *querySynthesizer) timeSeries(ctx context.Context, p models.Params) (models.QueryResult, error) {
	c, err := s.resolveSales(ctx)
	if err != nil {
		return nil, err
	}
	year, month := s.dialect.YearExpr(c.date), s.dialect.MonthExpr(c.date)

	b := s.newBuilder()
	sku := p.SKUValue()
	if sku != "" {
		b.filter(c.sku+" = %s", sku)
	}
	query := fmt.Sprintf(
		"SELECT %s AS year, %s AS month, COALESCE(SUM(%s), 0) AS total FROM %s%s GROUP BY %s, %s ORDER BY year, month",
		year, month, c.qty, c.table, b.whereClause(), year, month)

	res, err := s.run(ctx, query, b.args)
	if err != nil {
		return nil, err
	}
	result := models.TimeSeriesResult{SKU: sku, Points: make([]models.MonthTotal, 0, len(res.Rows))}
	for _, row := range res.Rows {
		mt, err := monthTotal(row)
		if err != nil {
			return nil, err
		}
		result.Points = append(result.Points, mt)
	}
	return result, nil
}

func (s *querySynthesizer) salesBetweenDates(ctx context.Context, p models.Params) (models.QueryResult, error) {
	c, err := s.resolveSales(ctx)
	if err != nil {
		return nil, err
	}

	b := s.newBuilder()
	var filters models.DateFilters
	if sku := p.SKUValue(); sku != "" {
		b.filter(c.sku+" = %s", sku)
		filters.SKU = sku
	}

	if p.Start != nil && p.End != nil {
		switch {
		case p.Start.HasMonth() && p.End.HasMonth():
			from := time.Date(p.Start.Year, time.Month(p.Start.Month), 1, 0, 0, 0, 0, time.UTC)
			until := time.Date(p.End.Year, time.Month(p.End.Month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
			b.filter(c.date+" >= %s AND "+c.date+" < %s", from, until)
			filters.StartYM = from.Format("2006-01")
			filters.EndYM = fmt.Sprintf("%04d-%02d", p.End.Year, p.End.Month)
		case p.Start.Year > 0 && p.End.Year > 0:
			b.filter(s.dialect.YearExpr(c.date)+" BETWEEN %s AND %s", p.Start.Year, p.End.Year)
			filters.Y1, filters.Y2 = p.Start.Year, p.End.Year
		}
	}

	total, err := s.scalar(ctx, fmt.Sprintf("SELECT COALESCE(SUM(%s), 0) AS total FROM %s%s", c.qty, c.table, b.whereClause()), b.args)
	if err != nil {
		return nil, err
	}
	return models.SalesBetweenDatesResult{Total: total, Filters: filters}, nil
}

func (s *querySynthesizer) topN(ctx context.Context, p models.Params) (models.QueryResult, error) {
	c, err := s.resolveSales(ctx)
	if err != nil {
		return nil, err
	}
	n := defaultTopN
	if p.N != nil && *p.N > 0 {
		n = *p.N
	}

	b := s.newBuilder()
	top, limit := b.rowCap(n)
	query := fmt.Sprintf(
		"SELECT %s%s AS sku, COALESCE(SUM(%s), 0) AS total FROM %s GROUP BY %s ORDER BY total DESC%s",
		top, c.sku, c.qty, c.table, c.sku, limit)

	res, err := s.run(ctx, query, b.args)
	if err != nil {
		return nil, err
	}
	result := models.TopNResult{Items: make([]models.SKUTotal, 0, len(res.Rows))}
	for _, row := range res.Rows {
		total, err := rowInt(row, "total")
		if err != nil {
			return nil, err
		}
		result.Items = append(result.Items, models.SKUTotal{SKU: rowString(row, "sku"), Total: total})
	}
	return result, nil
}

func (s *querySynthesizer) stockByClient(ctx context.Context, p models.Params) (models.QueryResult, error) {
	schema, err := s.schema(ctx)
	if err != nil {
		return nil, err
	}
	t, err := resolveTable(schema, "inventory", inventoryTables)
	if err != nil {
		return nil, err
	}
	qty, _, err := s.resolveColumn(t, "quantity", preferredInventoryQty, inventoryQtyColumns)
	if err != nil {
		return nil, err
	}

	b := s.newBuilder()
	if p.Client != nil {
		client, _, err := s.resolveColumn(t, "client", "", inventoryClientColumns)
		if err != nil {
			return nil, err
		}
		b.filter(client+" = %s", p.Client.Value())
	}

	total, err := s.scalar(ctx, fmt.Sprintf("SELECT COALESCE(SUM(%s), 0) AS total FROM %s%s", qty, s.qualified(t), b.whereClause()), b.args)
	if err != nil {
		return nil, err
	}
	return models.StockByClientResult{TotalStockClient: total, Client: p.Client}, nil
}

func monthTotal(row map[string]any) (models.MonthTotal, error) {
	year, err := rowInt(row, "year")
	if err != nil {
		return models.MonthTotal{}, err
	}
	month, err := rowInt(row, "month")
	if err != nil {
		return models.MonthTotal{}, err
	}
	total, err := rowInt(row, "total")
	if err != nil {
		return models.MonthTotal{}, err
	}
	return models.MonthTotal{Year: int(year), Month: int(month), Total: total}, nil
}

// rowValue looks a column up case-insensitively; drivers differ in how
// they fold unquoted aliases.
func rowValue(row map[string]any, name string) any {
	if v, ok := row[name]; ok {
		return v
	}
	for k, v := range row {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return nil
}

func rowInt(row map[string]any, name string) (int64, error) {
	d, err := ToDecimal(rowValue(row, name))
	if err != nil {
		return 0, fmt.Errorf("column %s: %w", name, err)
	}
	return d.IntPart(), nil
}

func rowString(row map[string]any, name string) string {
	switch v := rowValue(row, name).(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// ToDecimal coerces a driver value to a decimal. NULL becomes zero.
func ToDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return x, nil
	case pgtype.Numeric:
		if !x.Valid || x.Int == nil {
			return decimal.Zero, nil
		}
		if x.NaN || x.InfinityModifier != pgtype.Finite {
			return decimal.Zero, fmt.Errorf("non-finite numeric")
		}
		return decimal.NewFromBigInt(new(big.Int).Set(x.Int), x.Exp), nil
	case []byte:
		return decimal.NewFromString(string(x))
	case string:
		return decimal.NewFromString(x)
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int8:
		return decimal.NewFromInt(int64(x)), nil
	case int16:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt32(x), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case uint32:
		return decimal.NewFromInt(int64(x)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0), nil
	case float32:
		return decimal.NewFromFloat32(x), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case bool:
		if x {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("unsupported numeric type %T", v)
	}
}
