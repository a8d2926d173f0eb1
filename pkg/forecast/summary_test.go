package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

func TestGrowthRate(t *testing.T) {
	assert.Equal(t, 0.0, GrowthRate(50, 0))
	assert.InDelta(t, 50, GrowthRate(15, 10), 1e-9)
	assert.InDelta(t, -20, GrowthRate(8, 10), 1e-9)
}

func TestSummaries(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC) }
	points := []models.ForecastPoint{
		{Date: day(1), Yhat: 4, YhatLower: 2, YhatUpper: 6},
		{Date: day(2), Yhat: 1, YhatLower: 0, YhatUpper: 2},
		{Date: day(3), Yhat: 1, YhatLower: -1, YhatUpper: 3},
	}

	assert.InDelta(t, 2, MeanYhat(points), 1e-9)

	lower, upper := MeanBounds(points)
	assert.InDelta(t, 1.0/3, lower, 1e-9)
	assert.InDelta(t, 11.0/3, upper, 1e-9)

	minPoint, ok := MinYhatPoint(points)
	assert.True(t, ok)
	assert.Equal(t, day(2), minPoint.Date, "ties keep the earliest date")

	_, ok = MinYhatPoint(nil)
	assert.False(t, ok)

	assert.InDelta(t, 2.5, MeanValue(series(1, 4)), 1e-9)
	assert.Zero(t, MeanValue(nil))
}
