package forecast

import "github.com/ekaya-inc/ekaya-analyst/pkg/models"

// MeanYhat is the mean point forecast.
func MeanYhat(points []models.ForecastPoint) float64 {
	return meanOf(points, func(p models.ForecastPoint) float64 { return p.Yhat })
}

// MeanBounds returns the mean lower and upper interval bounds.
func MeanBounds(points []models.ForecastPoint) (lower, upper float64) {
	lower = meanOf(points, func(p models.ForecastPoint) float64 { return p.YhatLower })
	upper = meanOf(points, func(p models.ForecastPoint) float64 { return p.YhatUpper })
	return lower, upper
}

// MinYhatPoint returns the earliest point with the lowest forecast.
func MinYhatPoint(points []models.ForecastPoint) (models.ForecastPoint, bool) {
	if len(points) == 0 {
		return models.ForecastPoint{}, false
	}
	best := points[0]
	for _, p := range points[1:] {
		if p.Yhat < best.Yhat {
			best = p
		}
	}
	return best, true
}

// MeanValue is the mean observed value of a series.
func MeanValue(rows []models.SeriesRow) float64 {
	if len(rows) == 0 {
		return 0
	}
	var s float64
	for _, r := range rows {
		s += r.Value
	}
	return s / float64(len(rows))
}

// GrowthRate is the percent change from current to forecast. It is 0 when
// current is 0.
func GrowthRate(forecast, current float64) float64 {
	if current == 0 {
		return 0
	}
	return (forecast/current - 1) * 100
}

func meanOf(points []models.ForecastPoint, value func(models.ForecastPoint) float64) float64 {
	if len(points) == 0 {
		return 0
	}
	var s float64
	for _, p := range points {
		s += value(p)
	}
	return s / float64(len(points))
}
