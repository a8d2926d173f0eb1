package models

// Intent is the canonical classification of what a user question asks for.
type Intent string

const (
	IntentGreeting              Intent = "greeting"
	IntentFarewell              Intent = "farewell"
	IntentPredictStockout       Intent = "predict_stockout"
	IntentPredictTopSales       Intent = "predict_top_sales"
	IntentPredictSKUSales       Intent = "predict_sku_sales"
	IntentActiveClientsCount    Intent = "active_clients_count"
	IntentDistinctProductsCount Intent = "distinct_products_count"
	IntentSalesBetweenDates     Intent = "sales_between_dates"
	IntentSKUBestMonth          Intent = "sku_best_month"
	IntentStockByClient         Intent = "stock_by_client"
	IntentSKUSalesCompare       Intent = "sku_sales_compare"
	IntentTotalStock            Intent = "total_stock"
	IntentTopNSKUs              Intent = "top_n_skus"
	IntentSalesTimeSeries       Intent = "sales_time_series"
	IntentUnknown               Intent = "unknown"
)

// AllIntents returns every intent the pipeline handles, in a stable order.
func AllIntents() []Intent {
	return []Intent{
		IntentGreeting,
		IntentFarewell,
		IntentPredictStockout,
		IntentPredictTopSales,
		IntentPredictSKUSales,
		IntentActiveClientsCount,
		IntentDistinctProductsCount,
		IntentSalesBetweenDates,
		IntentSKUBestMonth,
		IntentStockByClient,
		IntentSKUSalesCompare,
		IntentTotalStock,
		IntentTopNSKUs,
		IntentSalesTimeSeries,
		IntentUnknown,
	}
}

// Valid reports whether i is one of the known intents.
func (i Intent) Valid() bool {
	for _, known := range AllIntents() {
		if i == known {
			return true
		}
	}
	return false
}

// IsForecast reports whether the intent is answered by the forecast service.
func (i Intent) IsForecast() bool {
	switch i {
	case IntentPredictStockout, IntentPredictTopSales, IntentPredictSKUSales:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (i Intent) String() string {
	return string(i)
}
