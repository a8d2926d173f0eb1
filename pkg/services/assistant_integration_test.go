//go:build integration

package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-analyst/pkg/adapters/datasource/postgres"
	"github.com/ekaya-inc/ekaya-analyst/pkg/cache"
	"github.com/ekaya-inc/ekaya-analyst/pkg/config"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
	"github.com/ekaya-inc/ekaya-analyst/pkg/testhelpers"
	"github.com/ekaya-inc/ekaya-analyst/pkg/workerpool"
)

type integrationPipeline struct {
	synthesizer QuerySynthesizer
	forecasts   ForecastService
	assistant   Assistant
	store       *countingStore
}

func newIntegrationPipeline(t *testing.T) *integrationPipeline {
	t.Helper()
	db := testhelpers.GetTestDB(t)
	ctx := context.Background()

	adapter, err := datasource.NewAdapter(ctx, "postgres", db.DatasourceConfig(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })

	store := newCountingStore()
	reflector := NewSchemaReflector(adapter, zap.NewNop())
	pool := workerpool.New(workerpool.Config{MaxConcurrent: 2}, zap.NewNop())
	forecasts := NewForecastService(adapter, adapter.Dialect(), reflector,
		cache.NewForecastCache(store, zap.NewNop()), pool,
		config.ForecastConfig{MaxWorkers: 2, LookbackYears: 2}, zap.NewNop())
	synth := NewQuerySynthesizer(adapter, adapter.Dialect(), reflector, forecasts, zap.NewNop())

	classifier, err := NewIntentClassifier(nil, config.ClassifierConfig{SemanticThreshold: 0.45, MinScoreDelta: 0.15, SemanticTolerance: 0.05}, zap.NewNop())
	require.NoError(t, err)

	return &integrationPipeline{
		synthesizer: synth,
		forecasts:   forecasts,
		assistant:   NewAssistant(classifier, synth, newTestGenerator(FirstSelector{}), config.AssistantConfig{RequestTimeout: time.Minute}, zap.NewNop()),
		store:       store,
	}
}

func TestAssistant_Integration_Queries(t *testing.T) {
	p := newIntegrationPipeline(t)
	ctx := context.Background()

	reply := p.assistant.Ask(ctx, "qual o estoque total?")
	assert.Equal(t, models.IntentTotalStock, reply.Intent)
	assert.Equal(t, models.TotalStockResult{TotalStock: 250}, reply.Result)
	assert.Contains(t, reply.Text, "250")

	reply = p.assistant.Ask(ctx, "quantos clientes ativos temos?")
	assert.Equal(t, models.IntentActiveClientsCount, reply.Intent)
	assert.Equal(t, models.ActiveClientsResult{ActiveClients: 2}, reply.Result)
}

func TestQuerySynthesizer_Integration_BestMonth(t *testing.T) {
	p := newIntegrationPipeline(t)

	res, err := p.synthesizer.Execute(context.Background(), models.IntentSKUBestMonth, models.Params{SKU: strPtr("Z900")})
	require.NoError(t, err)

	best := res.(models.BestMonthResult)
	require.NotNil(t, best.BestMonth)
	assert.Equal(t, models.MonthTotal{Year: 2023, Month: 2, Total: 30}, *best.BestMonth)
}

func TestForecastService_Integration_TopSales(t *testing.T) {
	p := newIntegrationPipeline(t)
	ctx := context.Background()

	res, err := p.forecasts.PredictTopSales(ctx, nil)
	require.NoError(t, err)
	require.Len(t, res.Predictions, 3)

	order := []string{res.Predictions[0].SKU, res.Predictions[1].SKU, res.Predictions[2].SKU}
	assert.Equal(t, []string{"A100", "B200", "C300"}, order)
	assert.InDelta(t, 23, res.Predictions[0].PredictedSales, 3)

	// Z900 only has sales outside the lookback window.
	sku, err := p.forecasts.PredictSKUSales(ctx, "Z900", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, sku.Error)

	puts := p.store.puts
	_, err = p.forecasts.PredictTopSales(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, puts, p.store.puts, "second run should be served from cache")
}
