package forecast

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

const (
	weeklyPeriod = 7.0
	yearlyPeriod = 365.25

	// IntervalZ is the normal quantile of the 95% prediction interval.
	IntervalZ = 1.96

	// trend values below this share of the series maximum are skipped when
	// fitting seasonal ratios
	minTrendRatio = 0.05
)

// ErrInsufficientData is returned by Fit when fewer than two observations remain.
var ErrInsufficientData = errors.New("at least two observations are required")

// Options controls which seasonal components are fitted.
type Options struct {
	WeeklyOrder    int     // Fourier order of the weekly component
	YearlyOrder    int     // Fourier order of the yearly component
	MinWeeklySpan  int     // days of history before weekly seasonality is enabled
	MinYearlySpan  int     // days of history before yearly seasonality is enabled
	SeasonalLambda float64 // ridge penalty on seasonal coefficients
}

// DefaultOptions returns weekly order 3 after two weeks and yearly order 10
// after two years.
func DefaultOptions() Options {
	return Options{
		WeeklyOrder:    3,
		YearlyOrder:    10,
		MinWeeklySpan:  14,
		MinYearlySpan:  730,
		SeasonalLambda: 1e-3,
	}
}

// Model is a linear trend with multiplicative Fourier seasonality:
//
//	yhat(t) = (a + b·t) · (1 + s(t))
//
// where t is time scaled to [0, 1] over the training span. Values are
// stored scaled by YScale.
type Model struct {
	Start        time.Time `json:"start"`
	LastDate     time.Time `json:"last_date"`
	SpanDays     float64   `json:"span_days"`
	YScale       float64   `json:"y_scale"`
	Trend        []float64 `json:"trend"`
	WeeklyOrder  int       `json:"weekly_order"`
	YearlyOrder  int       `json:"yearly_order"`
	Seasonal     []float64 `json:"seasonal,omitempty"`
	Sigma        float64   `json:"sigma"`
	Observations int       `json:"observations"`
}

// Fit estimates a model from daily observations of one series.
func Fit(rows []models.SeriesRow, opts Options) (*Model, error) {
	if len(rows) < 2 {
		return nil, ErrInsufficientData
	}

	sorted := make([]models.SeriesRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	start := truncateDay(sorted[0].Date)
	last := truncateDay(sorted[len(sorted)-1].Date)
	span := last.Sub(start).Hours() / 24
	if span < 1 {
		span = 1
	}

	m := &Model{
		Start:        start,
		LastDate:     last,
		SpanDays:     span,
		YScale:       1,
		Observations: len(sorted),
	}
	for _, r := range sorted {
		if a := math.Abs(r.Value); a > m.YScale {
			m.YScale = a
		}
	}

	y := make([]float64, len(sorted))
	tx := make([][]float64, len(sorted))
	for i, r := range sorted {
		y[i] = r.Value / m.YScale
		tx[i] = []float64{1, m.scaledTime(r.Date)}
	}

	trend, err := solveRidge(tx, y, 1e-9)
	if err != nil {
		return nil, fmt.Errorf("fit trend: %w", err)
	}
	m.Trend = trend

	if int(span) >= opts.MinWeeklySpan && opts.WeeklyOrder > 0 {
		m.WeeklyOrder = opts.WeeklyOrder
	}
	if int(span) >= opts.MinYearlySpan && opts.YearlyOrder > 0 {
		m.YearlyOrder = opts.YearlyOrder
	}
	if m.WeeklyOrder > 0 || m.YearlyOrder > 0 {
		m.fitSeasonal(sorted, y, opts.SeasonalLambda)
	}

	var sse float64
	for i, r := range sorted {
		resid := r.Value - m.yhat(r.Date)
		sse += resid * resid
	}
	m.Sigma = math.Sqrt(sse / float64(len(sorted)))

	return m, nil
}

// fitSeasonal regresses y/trend - 1 on the Fourier features. Seasonality is
// dropped when too few rows have a usable trend value.
func (m *Model) fitSeasonal(rows []models.SeriesRow, y []float64, lambda float64) {
	var sx [][]float64
	var sy []float64
	for i, r := range rows {
		tr := m.trendAt(r.Date)
		if tr < minTrendRatio {
			continue
		}
		sx = append(sx, m.seasonalFeatures(r.Date))
		sy = append(sy, y[i]/tr-1)
	}

	features := 1 + 2*(m.WeeklyOrder+m.YearlyOrder)
	if len(sx) <= features {
		m.WeeklyOrder, m.YearlyOrder = 0, 0
		return
	}

	coef, err := solveRidge(sx, sy, lambda)
	if err != nil {
		m.WeeklyOrder, m.YearlyOrder = 0, 0
		return
	}
	m.Seasonal = coef
}

// Predict projects horizon days following lastDate.
func (m *Model) Predict(lastDate time.Time, horizon int) []models.ForecastPoint {
	if horizon <= 0 {
		return nil
	}
	base := truncateDay(lastDate)
	band := IntervalZ * m.Sigma

	points := make([]models.ForecastPoint, horizon)
	for i := range points {
		date := base.AddDate(0, 0, i+1)
		yhat := m.yhat(date)
		points[i] = models.ForecastPoint{
			Date:      date,
			Yhat:      yhat,
			YhatLower: yhat - band,
			YhatUpper: yhat + band,
		}
	}
	return points
}

// yhat returns the prediction in original units.
func (m *Model) yhat(date time.Time) float64 {
	v := m.trendAt(date)
	if len(m.Seasonal) > 0 {
		v *= 1 + dot(m.Seasonal, m.seasonalFeatures(date))
	}
	return v * m.YScale
}

func (m *Model) trendAt(date time.Time) float64 {
	return m.Trend[0] + m.Trend[1]*m.scaledTime(date)
}

func (m *Model) scaledTime(date time.Time) float64 {
	return truncateDay(date).Sub(m.Start).Hours() / 24 / m.SpanDays
}

// seasonalFeatures returns [1, sin/cos pairs...]. Phases are anchored to the
// Unix epoch so a day always maps to the same weekday term.
func (m *Model) seasonalFeatures(date time.Time) []float64 {
	day := float64(truncateDay(date).Unix()) / 86400
	f := make([]float64, 0, 1+2*(m.WeeklyOrder+m.YearlyOrder))
	f = append(f, 1)
	f = appendFourier(f, day, weeklyPeriod, m.WeeklyOrder)
	f = appendFourier(f, day, yearlyPeriod, m.YearlyOrder)
	return f
}

func appendFourier(dst []float64, day, period float64, order int) []float64 {
	for k := 1; k <= order; k++ {
		x := 2 * math.Pi * float64(k) * day / period
		dst = append(dst, math.Sin(x), math.Cos(x))
	}
	return dst
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func truncateDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}
