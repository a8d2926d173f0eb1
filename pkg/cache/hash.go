// Package cache persists fitted models and forecasts keyed by the content
// of the series they were built from.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"sort"
	"strconv"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// ContentHash returns the hex SHA-256 of the rows rendered as CSV after
// sorting by (date, sku, value). Row order does not affect the hash.
func ContentHash(rows []models.SeriesRow) string {
	sorted := make([]models.SeriesRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		return a.Value < b.Value
	})

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ds", "sku", "y"})
	for _, r := range sorted {
		_ = w.Write([]string{
			r.Date.UTC().Format("2006-01-02"),
			r.SKU,
			strconv.FormatFloat(r.Value, 'g', -1, 64),
		})
	}
	w.Flush()

	sum := sha256.Sum256(buf.Bytes())
	return hex.EncodeToString(sum[:])
}
