package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

var (
	skuPattern       = regexp.MustCompile(`\b[Ss][Kk][Uu][ _-]?(\d+)\b`)
	yearPattern      = regexp.MustCompile(`\b(20\d{2})\b`)
	monthYearPattern = regexp.MustCompile(`(?i)(janeiro|fevereiro|mar[cç]o|marco|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)\s*(?:de\s*)?(20\d{2})`)
	topNPattern      = regexp.MustCompile(`(?i)\btop\s*(\d+)\b|\b(\d+)\s*(top|maiores|principais)\b`)
	clientPattern    = regexp.MustCompile(`(?i)\b(?:cliente|client)\b\s*[:#]?\s*([A-Za-z0-9\-_&]+)`)
	numericClient    = regexp.MustCompile(`^\d{2,6}$`)
)

// clientStopWords are tokens that follow "cliente" in a question without
// naming one ("estoque do cliente em 2024").
var clientStopWords = map[string]bool{
	"a": true, "o": true, "e": true, "em": true, "de": true, "do": true,
	"da": true, "no": true, "na": true, "por": true, "para": true,
	"com": true, "que": true, "qual": true, "total": true,
}

var monthsPT = map[string]int{
	"janeiro":   1,
	"fevereiro": 2,
	"marco":     3,
	"abril":     4,
	"maio":      5,
	"junho":     6,
	"julho":     7,
	"agosto":    8,
	"setembro":  9,
	"outubro":   10,
	"novembro":  11,
	"dezembro":  12,
}

// ExtractEntities pulls SKUs, years, month/year pairs, a top-N count and a
// client id out of free text. Patterns that do not occur leave their field
// unset.
func ExtractEntities(text string) models.EntityBag {
	folded := FoldDiacritics(text)
	var bag models.EntityBag

	seen := make(map[string]bool)
	for _, m := range skuPattern.FindAllStringSubmatch(folded, -1) {
		sku := "SKU_" + m[1]
		if seen[sku] {
			continue
		}
		seen[sku] = true
		bag.SKUs = append(bag.SKUs, sku)
	}
	if len(bag.SKUs) > 0 {
		first := bag.SKUs[0]
		bag.SKU = &first
	}

	for _, m := range yearPattern.FindAllStringSubmatch(folded, -1) {
		if y, err := strconv.Atoi(m[1]); err == nil {
			bag.Years = append(bag.Years, y)
		}
	}

	for _, m := range monthYearPattern.FindAllStringSubmatch(folded, -1) {
		month, ok := monthsPT[strings.ReplaceAll(strings.ToLower(m[1]), "ç", "c")]
		if !ok {
			continue
		}
		year, _ := strconv.Atoi(m[2])
		bag.Months = append(bag.Months, models.MonthYear{Month: month, Year: year})
	}

	if m := topNPattern.FindStringSubmatch(folded); m != nil {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		if n, err := strconv.Atoi(raw); err == nil {
			bag.N = &n
		}
	}

	for _, m := range clientPattern.FindAllStringSubmatch(folded, -1) {
		raw := m[1]
		if clientStopWords[strings.ToLower(raw)] {
			continue
		}
		if numericClient.MatchString(raw) {
			n, _ := strconv.Atoi(raw)
			bag.Client = models.NewIntClient(n)
		} else {
			bag.Client = models.NewTextClient(raw)
		}
		break
	}

	return bag
}
