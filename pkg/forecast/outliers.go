// Package forecast fits per-SKU daily sales models and projects them forward.
package forecast

import (
	"sort"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// IQRMultiplier sets the Tukey fence width.
const IQRMultiplier = 1.5

// CleanOutliers clips negative values to zero and drops rows outside
// [Q1-1.5·IQR, Q3+1.5·IQR]. The input slice is not modified.
func CleanOutliers(rows []models.SeriesRow) []models.SeriesRow {
	if len(rows) == 0 {
		return nil
	}

	clipped := make([]models.SeriesRow, len(rows))
	values := make([]float64, len(rows))
	for i, r := range rows {
		if r.Value < 0 {
			r.Value = 0
		}
		clipped[i] = r
		values[i] = r.Value
	}
	sort.Float64s(values)

	q1 := Quantile(values, 0.25)
	q3 := Quantile(values, 0.75)
	iqr := q3 - q1
	lower := q1 - IQRMultiplier*iqr
	upper := q3 + IQRMultiplier*iqr

	kept := make([]models.SeriesRow, 0, len(clipped))
	for _, r := range clipped {
		if r.Value >= lower && r.Value <= upper {
			kept = append(kept, r)
		}
	}
	return kept
}

// Quantile returns the q-th quantile of sorted values using linear
// interpolation between closest ranks.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(pos)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}
