package models

import "time"

// SeriesRow is one daily observation of a SKU's sales.
type SeriesRow struct {
	Date  time.Time `json:"ds"`
	SKU   string    `json:"sku"`
	Value float64   `json:"y"`
}

// ForecastPoint is a single projected day.
type ForecastPoint struct {
	Date      time.Time `json:"ds"`
	Yhat      float64   `json:"yhat"`
	YhatLower float64   `json:"yhat_lower"`
	YhatUpper float64   `json:"yhat_upper"`
}

// Forecast is the projection of one SKU series over Horizon days past the
// last observation. Points has exactly Horizon entries.
type Forecast struct {
	SKU      string          `json:"sku"`
	DataHash string          `json:"data_hash"`
	Horizon  int             `json:"horizon"`
	Points   []ForecastPoint `json:"points"`
}

// Tail returns the last n points, or all of them if fewer exist.
func (f *Forecast) Tail(n int) []ForecastPoint {
	if n >= len(f.Points) {
		return f.Points
	}
	return f.Points[len(f.Points)-n:]
}
