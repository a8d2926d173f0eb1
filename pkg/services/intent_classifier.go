package services

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-analyst/pkg/config"
	"github.com/ekaya-inc/ekaya-analyst/pkg/llm"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

const (
	// PhraseWeight scores a multi-word pattern whose tokens all occur.
	PhraseWeight = 3.0
	// WordWeight scores a single-word pattern that occurs.
	WordWeight = 1.0

	warmUpTimeout = 30 * time.Second
)

// IntentClassifier maps free text to an intent and its parameters.
type IntentClassifier interface {
	// Classify never fails; without a usable embedder it runs on rules alone.
	Classify(ctx context.Context, text string) (models.Intent, models.Params)

	// SemanticReady reports whether intent centroids are loaded.
	SemanticReady() bool
}

type intentClassifier struct {
	vocab    *Vocabulary
	embedder llm.Embedder
	cfg      config.ClassifierConfig
	logger   *zap.Logger

	mu        sync.RWMutex
	centroids []centroid
}

// centroid is the unit-length mean embedding of an intent's examples.
type centroid struct {
	intent models.Intent
	vector []float64
}

// NewIntentClassifier builds a classifier over the embedded vocabulary.
// When embedder is non-nil the example utterances are embedded once here;
// a failure leaves the classifier rules-only.
func NewIntentClassifier(embedder llm.Embedder, cfg config.ClassifierConfig, logger *zap.Logger) (IntentClassifier, error) {
	vocab, err := DefaultVocabulary()
	if err != nil {
		return nil, err
	}
	return newIntentClassifier(vocab, embedder, cfg, logger), nil
}

func newIntentClassifier(vocab *Vocabulary, embedder llm.Embedder, cfg config.ClassifierConfig, logger *zap.Logger) *intentClassifier {
	c := &intentClassifier{
		vocab:    vocab,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.Named("intent-classifier"),
	}
	if embedder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), warmUpTimeout)
		defer cancel()
		if err := c.warmUp(ctx); err != nil {
			c.logger.Warn("Semantic fallback disabled; classifying with rules only", zap.Error(err))
		}
	}
	return c
}

var _ IntentClassifier = (*intentClassifier)(nil)

func (c *intentClassifier) warmUp(ctx context.Context) error {
	byIntent := c.vocab.examplesByIntent()

	var inputs []string
	var owners []models.Intent
	for _, intent := range c.vocab.intents {
		for _, ex := range byIntent[intent] {
			inputs = append(inputs, ex)
			owners = append(owners, intent)
		}
	}
	if len(inputs) == 0 {
		return nil
	}

	vectors, err := c.embedder.Embed(ctx, inputs)
	if err != nil {
		return err
	}

	sums := make(map[models.Intent][]float64)
	for i, v := range vectors {
		unit := normalize(v)
		if unit == nil {
			continue
		}
		sum := sums[owners[i]]
		if sum == nil {
			sum = make([]float64, len(unit))
			sums[owners[i]] = sum
		}
		if len(sum) != len(unit) {
			continue
		}
		for j := range unit {
			sum[j] += unit[j]
		}
	}

	var centroids []centroid
	for _, intent := range c.vocab.intents {
		sum, ok := sums[intent]
		if !ok {
			continue
		}
		if unit := normalize64(sum); unit != nil {
			centroids = append(centroids, centroid{intent: intent, vector: unit})
		}
	}

	c.mu.Lock()
	c.centroids = centroids
	c.mu.Unlock()

	c.logger.Info("Intent centroids ready",
		zap.Int("examples", len(inputs)),
		zap.Int("intents", len(centroids)))
	return nil
}

// SemanticReady implements IntentClassifier.
func (c *intentClassifier) SemanticReady() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.centroids) > 0
}

// Classify implements IntentClassifier.
func (c *intentClassifier) Classify(ctx context.Context, text string) (models.Intent, models.Params) {
	intent := c.classifyIntent(ctx, text)
	return intent, BuildParams(intent, text, ExtractEntities(text))
}

func (c *intentClassifier) classifyIntent(ctx context.Context, text string) models.Intent {
	normalized := NormalizeText(text)

	if intent, ok := c.vocab.MatchPhrase(normalized); ok {
		return intent
	}

	scores := c.vocab.Score(normalized)
	var top IntentScore
	var second float64
	if len(scores) > 0 {
		top = scores[0]
	}
	if len(scores) > 1 {
		second = scores[1].Score
	}

	if (top.Score == 0 || top.Score-second < c.cfg.MinScoreDelta) && c.SemanticReady() {
		if intent, sim, ok := c.nearestCentroid(ctx, text); ok {
			if sim >= c.cfg.SemanticThreshold && sim-top.Score >= -c.cfg.SemanticTolerance {
				c.logger.Debug("Semantic match",
					zap.String("intent", intent.String()),
					zap.Float64("similarity", sim),
					zap.Float64("rule_score", top.Score))
				return intent
			}
		}
	}

	if top.Score > 0 {
		return top.Intent
	}
	return models.IntentUnknown
}

func (c *intentClassifier) nearestCentroid(ctx context.Context, text string) (models.Intent, float64, bool) {
	vectors, err := c.embedder.Embed(ctx, []string{strings.TrimSpace(text)})
	if err != nil {
		c.logger.Warn("Embedding failed; using rule scores", zap.Error(err))
		return "", 0, false
	}
	if len(vectors) != 1 {
		return "", 0, false
	}
	query := normalize(vectors[0])
	if query == nil {
		return "", 0, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	best := models.Intent("")
	bestSim := math.Inf(-1)
	for _, ct := range c.centroids {
		if len(ct.vector) != len(query) {
			continue
		}
		var dot float64
		for i := range query {
			dot += query[i] * ct.vector[i]
		}
		if dot > bestSim {
			best, bestSim = ct.intent, dot
		}
	}
	if best == "" {
		return "", 0, false
	}
	return best, bestSim, true
}

// BuildParams derives the parameters an intent needs from extracted entities.
func BuildParams(intent models.Intent, text string, bag models.EntityBag) models.Params {
	var p models.Params

	switch intent {
	case models.IntentGreeting, models.IntentFarewell:
		return p
	case models.IntentUnknown:
		p.OriginalText = text
		return p
	case models.IntentPredictStockout, models.IntentPredictTopSales, models.IntentPredictSKUSales,
		models.IntentSKUSalesCompare, models.IntentSKUBestMonth, models.IntentSalesBetweenDates,
		models.IntentTopNSKUs, models.IntentStockByClient, models.IntentSalesTimeSeries:
		p.SKU = bag.SKU
		if len(bag.SKUs) > 1 {
			p.SKUs = bag.SKUs
		}
		p.Months = bag.Months
		p.Years = bag.Years
	default:
		return p
	}

	switch intent {
	case models.IntentTopNSKUs:
		p.N = bag.N
	case models.IntentStockByClient:
		p.Client = bag.Client
	case models.IntentSalesBetweenDates:
		switch {
		case len(bag.Months) >= 2:
			p.Start = &models.PeriodBound{Month: bag.Months[0].Month, Year: bag.Months[0].Year}
			p.End = &models.PeriodBound{Month: bag.Months[1].Month, Year: bag.Months[1].Year}
		case len(bag.Years) >= 2:
			p.Start = &models.PeriodBound{Year: bag.Years[0]}
			p.End = &models.PeriodBound{Year: bag.Years[1]}
		}
	case models.IntentPredictTopSales, models.IntentPredictSKUSales:
		p.Period = periodFor(bag)
	}
	return p
}

func periodFor(bag models.EntityBag) *models.Period {
	switch {
	case len(bag.Months) > 0:
		return &models.Period{Type: models.PeriodMonth, Month: bag.Months[0].Month, Year: bag.Months[0].Year}
	case len(bag.Years) > 0:
		return &models.Period{Type: models.PeriodYear, Year: bag.Years[0]}
	default:
		return &models.Period{Type: models.PeriodNextMonth}
	}
}

func normalize(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return normalize64(out)
}

// normalize64 scales v to unit length in place. A zero vector yields nil.
func normalize64(v []float64) []float64 {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] /= norm
	}
	return v
}
