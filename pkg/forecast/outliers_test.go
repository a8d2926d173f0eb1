package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

func series(values ...float64) []models.SeriesRow {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]models.SeriesRow, len(values))
	for i, v := range values {
		rows[i] = models.SeriesRow{Date: start.AddDate(0, 0, i), SKU: "SKU_1", Value: v}
	}
	return rows
}

func TestQuantile_LinearInterpolation(t *testing.T) {
	values := []float64{1, 2, 3, 4}

	assert.InDelta(t, 1.75, Quantile(values, 0.25), 1e-9)
	assert.InDelta(t, 3.25, Quantile(values, 0.75), 1e-9)
	assert.InDelta(t, 4, Quantile(values, 1), 1e-9)
	assert.InDelta(t, 7, Quantile([]float64{7}, 0.25), 1e-9)
	assert.Zero(t, Quantile(nil, 0.5))
}

func TestCleanOutliers(t *testing.T) {
	tests := []struct {
		name   string
		input  []models.SeriesRow
		expect []float64
	}{
		{
			name:   "drops spike above upper fence",
			input:  series(10, 11, 9, 10, 12, 500),
			expect: []float64{10, 11, 9, 10, 12},
		},
		{
			name:   "clips negatives before computing fences",
			input:  series(-5, 0, 1, 1, 2),
			expect: []float64{0, 0, 1, 1, 2},
		},
		{
			name:   "single point is kept",
			input:  series(3),
			expect: []float64{3},
		},
		{
			name:   "two points are kept",
			input:  series(3, 4),
			expect: []float64{3, 4},
		},
		{
			name:   "empty input",
			input:  nil,
			expect: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanOutliers(tt.input)
			var values []float64
			for _, r := range got {
				values = append(values, r.Value)
			}
			assert.Equal(t, tt.expect, values)
		})
	}
}

func TestCleanOutliers_DoesNotModifyInput(t *testing.T) {
	input := series(-1, 2, 3)
	_ = CleanOutliers(input)
	require.Equal(t, -1.0, input[0].Value)
}
