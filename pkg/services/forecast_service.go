package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-analyst/pkg/cache"
	"github.com/ekaya-inc/ekaya-analyst/pkg/config"
	"github.com/ekaya-inc/ekaya-analyst/pkg/forecast"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
	"github.com/ekaya-inc/ekaya-analyst/pkg/workerpool"
)

const (
	msgNoHistory   = "Não há dados históricos suficientes para fazer previsões"
	msgInvalidSKU  = "SKU inválido"
	msgSKUNoData   = "Não há dados históricos para o SKU %s"
	msgSKUTooShort = "Dados insuficientes para o SKU %s"
	msgSKUFailed   = "Erro ao gerar previsões para o SKU %s: %v"

	stockoutHorizon = 30
	// stockoutWindow is how many trailing forecast days decide a stockout.
	stockoutWindow = 7
	// stockoutRatio flags a SKU whose trailing forecast falls below this
	// share of its historical mean.
	stockoutRatio = 0.2

	topSalesLimit = 5
)

// errTooFewPoints marks a SKU left with fewer than two rows after cleaning.
var errTooFewPoints = errors.New("fewer than two observations after outlier removal")

// ForecastService answers the prediction intents.
type ForecastService interface {
	PredictStockout(ctx context.Context) (models.StockoutForecastResult, error)
	PredictTopSales(ctx context.Context, period *models.Period) (models.TopSalesForecastResult, error)
	PredictSKUSales(ctx context.Context, sku string, period *models.Period) (models.SKUForecastResult, error)

	// Invalidate drops every cached model and forecast of sku.
	Invalidate(ctx context.Context, sku string) error
}

type forecastService struct {
	*queryRunner
	*columnResolver
	cache         *cache.ForecastCache
	pool          *workerpool.Pool
	opts          forecast.Options
	lookbackYears int
	logger        *zap.Logger
}

// NewForecastService creates the forecast service.
func NewForecastService(
	executor datasource.QueryExecutor,
	dialect datasource.Dialect,
	reflector SchemaReflector,
	forecastCache *cache.ForecastCache,
	pool *workerpool.Pool,
	cfg config.ForecastConfig,
	logger *zap.Logger,
) ForecastService {
	logger = logger.Named("forecast-service")
	lookback := cfg.LookbackYears
	if lookback < 1 {
		lookback = 2
	}
	return &forecastService{
		queryRunner:    &queryRunner{executor: executor, logger: logger},
		columnResolver: &columnResolver{reflector: reflector, dialect: dialect, logger: logger},
		cache:          forecastCache,
		pool:           pool,
		opts:           forecast.DefaultOptions(),
		lookbackYears:  lookback,
		logger:         logger,
	}
}

var _ ForecastService = (*forecastService)(nil)

// skuSeries is one SKU's daily history in collection order.
type skuSeries struct {
	sku  string
	rows []models.SeriesRow
}

// skuForecast is a cleaned series with its projection.
type skuForecast struct {
	sku      string
	cleaned  []models.SeriesRow
	forecast *models.Forecast
}

// collectSeries loads daily sales per SKU over the lookback window,
// keeping SKUs with at least two distinct days.
func (s *forecastService) collectSeries(ctx context.Context) ([]skuSeries, error) {
	c, err := s.resolveSales(ctx)
	if err != nil {
		return nil, err
	}
	day := s.dialect.DateExpr(c.date)

	query := fmt.Sprintf(`WITH daily_sales AS (
	SELECT %s AS ds, %s AS sku, COALESCE(SUM(%s), 0) AS y
	FROM %s
	WHERE %s >= %s
	GROUP BY %s, %s
), sku_points AS (
	SELECT sku FROM daily_sales GROUP BY sku HAVING COUNT(*) >= 2
)
SELECT d.ds AS ds, d.sku AS sku, d.y AS y
FROM daily_sales d
INNER JOIN sku_points p ON d.sku = p.sku
ORDER BY d.sku, d.ds`,
		day, c.sku, c.qty, c.table, c.date, s.dialect.LookbackStart(s.lookbackYears), day, c.sku)

	res, err := s.run(ctx, query, nil)
	if err != nil {
		return nil, err
	}

	var out []skuSeries
	index := make(map[string]int)
	for _, row := range res.Rows {
		sku := rowString(row, "sku")
		date, err := rowDate(row, "ds")
		if err != nil {
			return nil, err
		}
		y, err := ToDecimal(rowValue(row, "y"))
		if err != nil {
			return nil, fmt.Errorf("column y: %w", err)
		}

		i, ok := index[sku]
		if !ok {
			i = len(out)
			index[sku] = i
			out = append(out, skuSeries{sku: sku})
		}
		out[i].rows = append(out[i].rows, models.SeriesRow{Date: date, SKU: sku, Value: y.InexactFloat64()})
	}

	s.logger.Debug("Series collected",
		zap.Int("skus", len(out)),
		zap.Int("rows", len(res.Rows)))
	return out, nil
}

// forecastSKU cleans one series and returns its forecast, reusing cached
// models and forecasts keyed by the content hash of the cleaned rows.
func (s *forecastService) forecastSKU(ctx context.Context, series skuSeries, horizon int) (*skuForecast, error) {
	cleaned := forecast.CleanOutliers(series.rows)
	if len(cleaned) < 2 {
		return nil, errTooFewPoints
	}
	hash := cache.ContentHash(cleaned)
	out := &skuForecast{sku: series.sku, cleaned: cleaned}

	if f, ok := s.cache.LoadForecast(ctx, series.sku, hash, horizon); ok {
		out.forecast = f
		return out, nil
	}

	model, ok := s.cache.LoadModel(ctx, series.sku, hash)
	if !ok {
		start := time.Now()
		var err error
		model, err = forecast.Fit(cleaned, s.opts)
		if err != nil {
			return nil, fmt.Errorf("fit %s: %w", series.sku, err)
		}
		s.logger.Debug("Model fitted",
			zap.String("sku", series.sku),
			zap.Int("observations", model.Observations),
			zap.Duration("elapsed", time.Since(start)))
		if err := s.cache.SaveModel(ctx, series.sku, hash, model); err != nil {
			s.logger.Warn("Failed to cache model", zap.String("sku", series.sku), zap.Error(err))
		}
	}

	out.forecast = &models.Forecast{
		SKU:      series.sku,
		DataHash: hash,
		Horizon:  horizon,
		Points:   model.Predict(model.LastDate, horizon),
	}
	if err := s.cache.SaveForecast(ctx, out.forecast); err != nil {
		s.logger.Warn("Failed to cache forecast", zap.String("sku", series.sku), zap.Error(err))
	}
	return out, nil
}

// forecastAll runs forecastSKU for every series on the worker pool. Failed
// and skipped SKUs are left out; results keep collection order.
func (s *forecastService) forecastAll(ctx context.Context, all []skuSeries, horizon int) []*skuForecast {
	items := make([]workerpool.Item[*skuForecast], len(all))
	for i, series := range all {
		items[i] = workerpool.Item[*skuForecast]{
			ID: series.sku,
			Execute: func(ctx context.Context) (*skuForecast, error) {
				return s.forecastSKU(ctx, series, horizon)
			},
		}
	}

	results := workerpool.Process(ctx, s.pool, items, nil)
	out := make([]*skuForecast, 0, len(results))
	for _, r := range results {
		switch {
		case errors.Is(r.Err, errTooFewPoints):
			s.logger.Debug("Skipping SKU with too few points", zap.String("sku", r.ID))
		case r.Err != nil:
			s.logger.Error("Forecast failed", zap.String("sku", r.ID), zap.Error(r.Err))
		default:
			out = append(out, r.Result)
		}
	}
	return out
}

func (s *forecastService) PredictStockout(ctx context.Context) (models.StockoutForecastResult, error) {
	all, err := s.collectSeries(ctx)
	if err != nil {
		return models.StockoutForecastResult{}, err
	}
	if len(all) == 0 {
		return models.StockoutForecastResult{Error: msgNoHistory}, nil
	}

	predictions := make([]models.StockoutPrediction, 0)
	for _, f := range s.forecastAll(ctx, all, stockoutHorizon) {
		current := forecast.MeanValue(f.cleaned)
		predicted := forecast.MeanYhat(f.forecast.Tail(stockoutWindow))
		if predicted > 0 && predicted >= stockoutRatio*current {
			continue
		}
		low, ok := forecast.MinYhatPoint(f.forecast.Points)
		if !ok {
			continue
		}
		predictions = append(predictions, models.StockoutPrediction{
			SKU:               f.sku,
			PredictedStockout: low.Date,
			CurrentAvg:        current,
			PredictedAvg:      predicted,
		})
	}
	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].PredictedStockout.Before(predictions[j].PredictedStockout)
	})
	return models.StockoutForecastResult{Predictions: predictions}, nil
}

func (s *forecastService) PredictTopSales(ctx context.Context, period *models.Period) (models.TopSalesForecastResult, error) {
	period = periodOrDefault(period)
	all, err := s.collectSeries(ctx)
	if err != nil {
		return models.TopSalesForecastResult{}, err
	}
	if len(all) == 0 {
		return models.TopSalesForecastResult{Period: period, Error: msgNoHistory}, nil
	}

	predictions := make([]models.SalesPrediction, 0)
	for _, f := range s.forecastAll(ctx, all, period.Horizon()) {
		predictions = append(predictions, salesPrediction(f, false))
	}
	sort.SliceStable(predictions, func(i, j int) bool {
		return predictions[i].PredictedSales > predictions[j].PredictedSales
	})
	if len(predictions) > topSalesLimit {
		predictions = predictions[:topSalesLimit]
	}
	return models.TopSalesForecastResult{Period: period, Predictions: predictions}, nil
}

func (s *forecastService) PredictSKUSales(ctx context.Context, sku string, period *models.Period) (models.SKUForecastResult, error) {
	period = periodOrDefault(period)
	if strings.TrimSpace(sku) == "" {
		return models.SKUForecastResult{Period: period, Error: msgInvalidSKU}, nil
	}

	all, err := s.collectSeries(ctx)
	if err != nil {
		return models.SKUForecastResult{}, err
	}
	if len(all) == 0 {
		return models.SKUForecastResult{Period: period, Error: msgNoHistory}, nil
	}

	var match *skuSeries
	for i := range all {
		if strings.EqualFold(all[i].sku, sku) {
			match = &all[i]
			break
		}
	}
	if match == nil {
		return models.SKUForecastResult{Period: period, Error: fmt.Sprintf(msgSKUNoData, sku)}, nil
	}

	series := *match
	results := workerpool.Process(ctx, s.pool, []workerpool.Item[*skuForecast]{{
		ID: series.sku,
		Execute: func(ctx context.Context) (*skuForecast, error) {
			return s.forecastSKU(ctx, series, period.Horizon())
		},
	}}, nil)
	r := results[0]
	switch {
	case errors.Is(r.Err, errTooFewPoints):
		return models.SKUForecastResult{Period: period, Error: fmt.Sprintf(msgSKUTooShort, sku)}, nil
	case r.Err != nil:
		s.logger.Error("Forecast failed", zap.String("sku", sku), zap.Error(r.Err))
		return models.SKUForecastResult{Period: period, Error: fmt.Sprintf(msgSKUFailed, sku, r.Err)}, nil
	}

	prediction := salesPrediction(r.Result, true)
	return models.SKUForecastResult{Period: period, Prediction: &prediction}, nil
}

func (s *forecastService) Invalidate(ctx context.Context, sku string) error {
	if err := s.cache.InvalidateSKU(ctx, sku); err != nil {
		return fmt.Errorf("invalidate %s: %w", sku, err)
	}
	s.logger.Info("Forecast cache invalidated", zap.String("sku", sku))
	return nil
}

func salesPrediction(f *skuForecast, withInterval bool) models.SalesPrediction {
	predicted := forecast.MeanYhat(f.forecast.Points)
	current := forecast.MeanValue(f.cleaned)
	p := models.SalesPrediction{
		SKU:            f.sku,
		PredictedSales: predicted,
		CurrentAvg:     current,
		GrowthRate:     forecast.GrowthRate(predicted, current),
	}
	if withInterval {
		lower, upper := forecast.MeanBounds(f.forecast.Points)
		p.ConfidenceInterval = &models.ConfidenceInterval{Lower: lower, Upper: upper}
	}
	return p
}

func periodOrDefault(p *models.Period) *models.Period {
	if p == nil {
		return &models.Period{Type: models.PeriodNextMonth}
	}
	return p
}

// rowDate reads a DATE column. Drivers return time.Time; some return text.
func rowDate(row map[string]any, name string) (time.Time, error) {
	switch v := rowValue(row, name).(type) {
	case time.Time:
		return time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC), nil
	case string:
		return parseDay(v)
	case []byte:
		return parseDay(string(v))
	default:
		return time.Time{}, fmt.Errorf("column %s: unsupported date type %T", name, v)
	}
}

func parseDay(s string) (time.Time, error) {
	if len(s) > 10 {
		s = s[:10]
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
