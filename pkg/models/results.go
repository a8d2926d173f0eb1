package models

import "time"

// QueryResult is the per-intent answer produced by the query synthesizer.
// The set of implementations is closed; each intent maps to exactly one type.
type QueryResult interface {
	queryResult()
}

// GreetingResult answers a greeting.
type GreetingResult struct{}

// FarewellResult answers a farewell.
type FarewellResult struct{}

// UnknownResult carries the text that could not be classified.
type UnknownResult struct {
	OriginalText string `json:"original_text"`
}

// TotalStockResult is the inventory quantity sum.
type TotalStockResult struct {
	TotalStock int64 `json:"total_stock"`
}

// DistinctProductsResult is the number of distinct SKUs in inventory.
type DistinctProductsResult struct {
	DistinctProducts int64 `json:"distinct_products"`
}

// ActiveClientsResult is the active client count. Note is set when no
// status column exists and the count covers every client.
type ActiveClientsResult struct {
	ActiveClients int64  `json:"active_clients"`
	Note          string `json:"note,omitempty"`
}

// CompareMode tells which two sides a comparison was made between.
type CompareMode string

const (
	CompareModePeriods CompareMode = "periods"
	CompareModeYears   CompareMode = "years"
	CompareModeSKUs    CompareMode = "skus"
)

// Relation is the ordering between two compared totals.
type Relation string

const (
	RelationFirstGreater  Relation = "first_greater"
	RelationSecondGreater Relation = "second_greater"
	RelationEqual         Relation = "equal"
)

// CompareTotals returns the relation between a and b.
func CompareTotals(a, b int64) Relation {
	switch {
	case a > b:
		return RelationFirstGreater
	case b > a:
		return RelationSecondGreater
	default:
		return RelationEqual
	}
}

// SalesCompareResult holds both sides of a sales comparison.
type SalesCompareResult struct {
	Mode     CompareMode `json:"mode"`
	SKU      string      `json:"sku,omitempty"`
	SKUs     []string    `json:"skus,omitempty"`
	Period1  *MonthYear  `json:"period1,omitempty"`
	Period2  *MonthYear  `json:"period2,omitempty"`
	Year1    int         `json:"year1,omitempty"`
	Year2    int         `json:"year2,omitempty"`
	Value1   int64       `json:"value1"`
	Value2   int64       `json:"value2"`
	Relation Relation    `json:"relation"`
}

// MonthTotal is a sales total for one calendar month.
type MonthTotal struct {
	Year  int   `json:"year"`
	Month int   `json:"month"`
	Total int64 `json:"total"`
}

// BestMonthResult is the month with the highest sales for a SKU.
// BestMonth is nil when the SKU has no sales.
type BestMonthResult struct {
	SKU       string      `json:"sku"`
	BestMonth *MonthTotal `json:"best_month"`
}

// TimeSeriesResult is monthly sales in chronological order.
type TimeSeriesResult struct {
	SKU    string       `json:"sku,omitempty"`
	Points []MonthTotal `json:"points"`
}

// DateFilters echoes the bound filters used for a date-range total.
type DateFilters struct {
	SKU     string `json:"sku,omitempty"`
	StartYM string `json:"start_ym,omitempty"`
	EndYM   string `json:"end_ym,omitempty"`
	Y1      int    `json:"y1,omitempty"`
	Y2      int    `json:"y2,omitempty"`
}

// SalesBetweenDatesResult is the sales total inside a date range.
type SalesBetweenDatesResult struct {
	Total   int64       `json:"total"`
	Filters DateFilters `json:"filters"`
}

// SKUTotal is a SKU with its aggregated sales.
type SKUTotal struct {
	SKU   string `json:"sku"`
	Total int64  `json:"total"`
}

// TopNResult is the best selling SKUs, highest total first.
type TopNResult struct {
	Items []SKUTotal `json:"items"`
}

// StockByClientResult is the inventory total, optionally for one client.
type StockByClientResult struct {
	TotalStockClient int64     `json:"total_stock_client"`
	Client           *ClientID `json:"client,omitempty"`
}

// StockoutPrediction flags a SKU expected to run out.
type StockoutPrediction struct {
	SKU               string    `json:"sku"`
	PredictedStockout time.Time `json:"predicted_stockout"`
	CurrentAvg        float64   `json:"current_avg"`
	PredictedAvg      float64   `json:"predicted_avg"`
}

// StockoutForecastResult lists SKUs at risk, earliest stockout first.
type StockoutForecastResult struct {
	Predictions []StockoutPrediction `json:"predictions"`
	Error       string               `json:"error,omitempty"`
}

// ConfidenceInterval is the mean lower and upper forecast bound.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// SalesPrediction is the projected sales for one SKU.
type SalesPrediction struct {
	SKU                string              `json:"sku"`
	PredictedSales     float64             `json:"predicted_sales"`
	CurrentAvg         float64             `json:"current_avg"`
	GrowthRate         float64             `json:"growth_rate"`
	ConfidenceInterval *ConfidenceInterval `json:"confidence_interval,omitempty"`
}

// TopSalesForecastResult ranks SKUs by forecasted sales.
type TopSalesForecastResult struct {
	Period      *Period           `json:"period,omitempty"`
	Predictions []SalesPrediction `json:"predictions"`
	Error       string            `json:"error,omitempty"`
}

// SKUForecastResult is the projection for a single SKU.
type SKUForecastResult struct {
	Period     *Period          `json:"period,omitempty"`
	Prediction *SalesPrediction `json:"prediction,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func (GreetingResult) queryResult()          {}
func (FarewellResult) queryResult()          {}
func (UnknownResult) queryResult()           {}
func (TotalStockResult) queryResult()        {}
func (DistinctProductsResult) queryResult()  {}
func (ActiveClientsResult) queryResult()     {}
func (SalesCompareResult) queryResult()      {}
func (BestMonthResult) queryResult()         {}
func (TimeSeriesResult) queryResult()        {}
func (SalesBetweenDatesResult) queryResult() {}
func (TopNResult) queryResult()              {}
func (StockByClientResult) queryResult()     {}
func (StockoutForecastResult) queryResult()  {}
func (TopSalesForecastResult) queryResult()  {}
func (SKUForecastResult) queryResult()       {}
