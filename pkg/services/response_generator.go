package services

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ekaya-inc/ekaya-analyst/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// Fixed replies for failures.
const (
	ResolutionApology      = "Desculpe, não encontrei no banco de dados as informações necessárias para responder a essa pergunta."
	GenericApology         = "Desculpe, ocorreu um erro ao buscar os dados."
	RenderApology          = "Desculpe, não consegui formular uma resposta amigável a partir dos dados retornados."
	MissingComparisonReply = "Para comparar vendas, informe dois períodos (por exemplo, janeiro de 2024 e fevereiro de 2024), dois anos ou dois SKUs."
)

var (
	greetingPhrases = []string{
		"Olá! Como posso ajudar você com informações sobre vendas e estoque?",
		"Oi! Estou aqui para ajudar com dados de vendas, estoque e previsões.",
		"Olá! Pronto para analisar alguns dados de negócio?",
		"Oi! Em que posso ser útil hoje?",
	}
	farewellPhrases = []string{
		"Até logo! Fico à disposição para mais análises.",
		"Obrigado! Volte sempre que precisar de informações.",
		"Tchau! Foi um prazer ajudar.",
		"Até mais! Estarei aqui quando precisar.",
	}
	// unknownPhrases take the original text.
	unknownPhrases = []string{
		"Desculpe, não entendi '%s'. Posso ajudar com informações sobre vendas, estoque, previsões e análises de SKU.",
		"Não consegui compreender '%s'. Tente perguntar sobre vendas, estoque, produtos mais vendidos ou previsões.",
		"Minha especialidade é análise de dados comerciais. Não entendi '%s'. Que tal perguntar sobre vendas ou estoque?",
	}
	// compareIntros take the subject of the comparison.
	compareIntros = []string{
		"Analisando as vendas %s, ",
		"Comparando o desempenho %s, ",
	}
)

// PhraseSelector picks one of n phrasing variants.
type PhraseSelector interface {
	Pick(n int) int
}

// RandomSelector picks uniformly.
type RandomSelector struct{}

func (RandomSelector) Pick(n int) int {
	if n <= 1 {
		return 0
	}
	return rand.IntN(n)
}

// FirstSelector always picks the first variant.
type FirstSelector struct{}

func (FirstSelector) Pick(int) int { return 0 }

// FixedSelector always picks Index, wrapped to the number of variants.
type FixedSelector struct {
	Index int
}

func (s FixedSelector) Pick(n int) int {
	if n <= 0 {
		return 0
	}
	return ((s.Index % n) + n) % n
}

// ResponseGenerator turns pipeline results into pt-BR replies.
type ResponseGenerator interface {
	Render(intent models.Intent, params models.Params, result models.QueryResult) string
	RenderError(intent models.Intent, err error) string
}

type responseGenerator struct {
	selector PhraseSelector
	printer  *message.Printer
	logger   *zap.Logger
}

// NewResponseGenerator creates a generator. A nil selector picks randomly.
func NewResponseGenerator(selector PhraseSelector, logger *zap.Logger) ResponseGenerator {
	if selector == nil {
		selector = RandomSelector{}
	}
	return &responseGenerator{
		selector: selector,
		printer:  message.NewPrinter(language.BrazilianPortuguese),
		logger:   logger.Named("response-generator"),
	}
}

var _ ResponseGenerator = (*responseGenerator)(nil)

func (g *responseGenerator) RenderError(intent models.Intent, err error) string {
	switch {
	case errors.Is(err, apperrors.ErrSchemaResolution):
		return ResolutionApology
	case errors.Is(err, apperrors.ErrMissingComparison):
		return MissingComparisonReply
	default:
		return GenericApology
	}
}

func (g *responseGenerator) Render(intent models.Intent, params models.Params, result models.QueryResult) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("Failed to render reply",
				zap.String("intent", intent.String()),
				zap.Any("panic", r))
			reply = RenderApology
		}
	}()

	if text, ok := g.render(intent, params, result); ok {
		return text
	}
	g.logger.Warn("No reply format for result",
		zap.String("intent", intent.String()),
		zap.String("result_type", fmt.Sprintf("%T", result)))
	return fmt.Sprintf("Não tenho um formato de resposta específico para '%s', mas o resultado foi: %+v", intent, result)
}

// render reports false when result is not the type intent produces.
func (g *responseGenerator) render(intent models.Intent, params models.Params, result models.QueryResult) (string, bool) {
	switch intent {
	case models.IntentGreeting:
		return g.pick(greetingPhrases), true
	case models.IntentFarewell:
		return g.pick(farewellPhrases), true
	case models.IntentUnknown:
		text := params.OriginalText
		if r, ok := result.(models.UnknownResult); ok && r.OriginalText != "" {
			text = r.OriginalText
		}
		return fmt.Sprintf(g.pick(unknownPhrases), text), true
	case models.IntentTotalStock:
		r, ok := result.(models.TotalStockResult)
		return g.printer.Sprintf("O total de itens em estoque é %d.", r.TotalStock), ok
	case models.IntentDistinctProductsCount:
		r, ok := result.(models.DistinctProductsResult)
		return g.printer.Sprintf("Encontramos %d produtos diferentes no estoque.", r.DistinctProducts), ok
	case models.IntentActiveClientsCount:
		r, ok := result.(models.ActiveClientsResult)
		return g.activeClients(r), ok
	case models.IntentSKUSalesCompare:
		r, ok := result.(models.SalesCompareResult)
		return g.salesCompare(r), ok
	case models.IntentSKUBestMonth:
		r, ok := result.(models.BestMonthResult)
		return g.bestMonth(r), ok
	case models.IntentSalesTimeSeries:
		r, ok := result.(models.TimeSeriesResult)
		return g.timeSeries(r), ok
	case models.IntentSalesBetweenDates:
		r, ok := result.(models.SalesBetweenDatesResult)
		return g.salesBetweenDates(r), ok
	case models.IntentTopNSKUs:
		r, ok := result.(models.TopNResult)
		return g.topN(r), ok
	case models.IntentStockByClient:
		r, ok := result.(models.StockByClientResult)
		return g.stockByClient(r), ok
	case models.IntentPredictStockout:
		r, ok := result.(models.StockoutForecastResult)
		return g.stockout(r), ok
	case models.IntentPredictTopSales:
		r, ok := result.(models.TopSalesForecastResult)
		return g.topSales(r), ok
	case models.IntentPredictSKUSales:
		r, ok := result.(models.SKUForecastResult)
		return g.skuSales(r), ok
	default:
		return "", false
	}
}

func (g *responseGenerator) pick(phrases []string) string {
	return phrases[g.selector.Pick(len(phrases))]
}

func (g *responseGenerator) activeClients(r models.ActiveClientsResult) string {
	text := g.printer.Sprintf("Existem %d clientes ativos.", r.ActiveClients)
	if r.Note != "" {
		text += " (Observação: " + r.Note + ")"
	}
	return text
}

func (g *responseGenerator) salesCompare(r models.SalesCompareResult) string {
	v1, v2 := g.printer.Sprintf("%d", r.Value1), g.printer.Sprintf("%d", r.Value2)

	if r.Mode == models.CompareModeSKUs && len(r.SKUs) == 2 {
		intro := fmt.Sprintf(g.pick(compareIntros), "de "+r.SKUs[0]+" e "+r.SKUs[1]+compareScope(r))
		switch r.Relation {
		case models.RelationFirstGreater:
			return fmt.Sprintf("%so SKU %s teve vendas maiores (%s vs %s).", intro, r.SKUs[0], v1, v2)
		case models.RelationSecondGreater:
			return fmt.Sprintf("%so SKU %s teve vendas maiores (%s vs %s).", intro, r.SKUs[1], v2, v1)
		default:
			return fmt.Sprintf("%sas vendas foram iguais para os dois SKUs (%s).", intro, v1)
		}
	}

	subject := "do SKU " + r.SKU
	if r.SKU == "" {
		subject = "gerais"
	}
	intro := fmt.Sprintf(g.pick(compareIntros), subject)

	unit := "período"
	if r.Mode == models.CompareModeYears {
		unit = "ano"
	}
	switch r.Relation {
	case models.RelationFirstGreater:
		return fmt.Sprintf("%so primeiro %s teve vendas maiores (%s vs %s).", intro, unit, v1, v2)
	case models.RelationSecondGreater:
		return fmt.Sprintf("%so segundo %s teve vendas maiores (%s vs %s).", intro, unit, v2, v1)
	default:
		return fmt.Sprintf("%sas vendas foram iguais nos dois %ss (%s).", intro, unit, v1)
	}
}

// compareScope names the month or year a SKU comparison was restricted to.
func compareScope(r models.SalesCompareResult) string {
	switch {
	case r.Period1 != nil:
		return fmt.Sprintf(" em %02d/%d", r.Period1.Month, r.Period1.Year)
	case r.Year1 > 0:
		return fmt.Sprintf(" em %d", r.Year1)
	default:
		return ""
	}
}

func (g *responseGenerator) bestMonth(r models.BestMonthResult) string {
	if r.BestMonth == nil {
		if r.SKU == "" {
			return "Não encontrei registros de vendas para determinar o melhor mês."
		}
		return fmt.Sprintf("Não encontrei registros de vendas para o SKU %s para determinar o melhor mês.", r.SKU)
	}
	subject := ""
	if r.SKU != "" {
		subject = " para o SKU " + r.SKU
	}
	return fmt.Sprintf("O melhor mês de vendas%s foi %s, com um total de %s unidades.",
		subject, monthYear(r.BestMonth.Month, r.BestMonth.Year), g.printer.Sprintf("%d", r.BestMonth.Total))
}

func (g *responseGenerator) timeSeries(r models.TimeSeriesResult) string {
	skuInfo := ""
	if r.SKU != "" {
		skuInfo = " para o SKU " + r.SKU
	}
	if len(r.Points) == 0 {
		return fmt.Sprintf("Não há dados de série temporal de vendas disponíveis%s.", skuInfo)
	}
	first, last := r.Points[0], r.Points[len(r.Points)-1]
	return fmt.Sprintf("Encontrei %d registros de vendas mensais%s, indo de %s (Total: %s) até %s (Total: %s).",
		len(r.Points), skuInfo,
		monthYear(first.Month, first.Year), g.printer.Sprintf("%d", first.Total),
		monthYear(last.Month, last.Year), g.printer.Sprintf("%d", last.Total))
}

func (g *responseGenerator) salesBetweenDates(r models.SalesBetweenDatesResult) string {
	skuInfo := ""
	if r.Filters.SKU != "" {
		skuInfo = " para o SKU " + r.Filters.SKU
	}
	period := ""
	switch {
	case r.Filters.StartYM != "" && r.Filters.EndYM != "":
		period = fmt.Sprintf(" no período entre %s e %s", yearMonthLabel(r.Filters.StartYM), yearMonthLabel(r.Filters.EndYM))
	case r.Filters.Y1 > 0 && r.Filters.Y2 > 0:
		period = fmt.Sprintf(" no período entre os anos %d e %d", r.Filters.Y1, r.Filters.Y2)
	}
	return fmt.Sprintf("O total de vendas%s%s foi de %s unidades.", skuInfo, period, g.printer.Sprintf("%d", r.Total))
}

func (g *responseGenerator) topN(r models.TopNResult) string {
	if len(r.Items) == 0 {
		return "Desculpe, não consegui encontrar os SKUs mais vendidos."
	}
	var b strings.Builder
	b.WriteString("Os SKUs com melhor desempenho são:")
	for i, item := range r.Items {
		fmt.Fprintf(&b, "\n%d. %s: %s vendas", i+1, item.SKU, g.printer.Sprintf("%d", item.Total))
	}
	return b.String()
}

func (g *responseGenerator) stockByClient(r models.StockByClientResult) string {
	total := g.printer.Sprintf("%d", r.TotalStockClient)
	if r.Client != nil {
		return fmt.Sprintf("O estoque total associado ao cliente %s é de %s unidades.", r.Client.String(), total)
	}
	return fmt.Sprintf("O estoque total (considerando todos os clientes/registros) é de %s unidades.", total)
}

func (g *responseGenerator) stockout(r models.StockoutForecastResult) string {
	if r.Error != "" {
		return r.Error
	}
	if len(r.Predictions) == 0 {
		return "Não foi identificado risco de estoque zero para nenhum SKU no próximo mês."
	}

	var b strings.Builder
	b.WriteString("SKUs com risco de estoque zero:\n\n")
	for _, p := range r.Predictions {
		current := int64(p.CurrentAvg)
		predicted := int64(p.PredictedAvg)
		drop := 0.0
		if current > 0 {
			drop = float64(current-predicted) / float64(current) * 100
		}
		fmt.Fprintf(&b, "SKU: %s\n- Data prevista: %s\n- Média atual: %s unidades\n- Média prevista: %s unidades\n- Queda prevista: %s%%\n\n",
			p.SKU,
			p.PredictedStockout.Format("02/01/2006"),
			g.printer.Sprintf("%d", current),
			g.printer.Sprintf("%d", predicted),
			g.printer.Sprintf("%.1f", drop))
	}
	return b.String()
}

func (g *responseGenerator) topSales(r models.TopSalesForecastResult) string {
	if r.Error != "" {
		return r.Error
	}
	if len(r.Predictions) == 0 {
		return "Não foi possível fazer previsões de vendas no momento."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Previsão dos SKUs mais vendidos para o %s:\n\n", periodLabel(r.Period))
	for i, p := range r.Predictions {
		fmt.Fprintf(&b, "%d. SKU: %s\n   - Previsão: %s unidades\n   - Média atual: %s unidades\n   - Tendência: %s\n\n",
			i+1, p.SKU,
			g.printer.Sprintf("%d", int64(p.PredictedSales)),
			g.printer.Sprintf("%d", int64(p.CurrentAvg)),
			g.trend(p.GrowthRate))
	}
	return b.String()
}

func (g *responseGenerator) skuSales(r models.SKUForecastResult) string {
	if r.Error != "" {
		return r.Error
	}
	if r.Prediction == nil {
		return "Não foi possível fazer previsões de vendas no momento."
	}
	p := r.Prediction

	confidence := ""
	if ci := p.ConfidenceInterval; ci != nil {
		confidence = fmt.Sprintf("\nIntervalo de confiança: entre %s e %s unidades",
			g.printer.Sprintf("%d", int64(ci.Lower)), g.printer.Sprintf("%d", int64(ci.Upper)))
	}
	return fmt.Sprintf("Análise de vendas para o SKU %s:\n\n- Período: %s\n- Média atual: %s unidades\n- Previsão: %s unidades\n- Tendência: %s%s",
		p.SKU,
		periodLabel(r.Period),
		g.printer.Sprintf("%d", int64(p.CurrentAvg)),
		g.printer.Sprintf("%d", int64(p.PredictedSales)),
		g.trend(p.GrowthRate),
		confidence)
}

func (g *responseGenerator) trend(growth float64) string {
	switch {
	case growth > 0:
		return g.printer.Sprintf("crescimento de %.1f%%", growth)
	case growth < 0:
		return g.printer.Sprintf("queda de %.1f%%", math.Abs(growth))
	default:
		return "estável"
	}
}

func periodLabel(p *models.Period) string {
	if p != nil && p.Type == models.PeriodYear {
		return "próximo ano"
	}
	return "próximo mês"
}

func monthYear(month, year int) string {
	return fmt.Sprintf("%02d/%d", month, year)
}

// yearMonthLabel turns "2024-03" into "03/2024".
func yearMonthLabel(ym string) string {
	year, month, ok := strings.Cut(ym, "-")
	if !ok {
		return ym
	}
	return month + "/" + year
}
