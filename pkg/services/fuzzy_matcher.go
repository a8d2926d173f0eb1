package services

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

// Name-match weights. A column accumulates every rule it satisfies.
const (
	scoreExact     = 100
	scoreSuffix    = 50
	scorePrefix    = 30
	scoreSubstring = 10
	scoreTypeBonus = 20

	maxSuggestions = 3
)

// identifierHints are candidates that denote a code-like column; string
// columns get the type bonus for them.
var identifierHints = map[string]bool{
	"sku":         true,
	"produto":     true,
	"produto_id":  true,
	"cod_produto": true,
	"codigo":      true,
	"cod":         true,
}

// quantityHints are candidates that denote a measured amount; numeric
// columns get the type bonus for them.
var quantityHints = map[string]bool{
	"quant":            true,
	"qtd":              true,
	"qty":              true,
	"amount":           true,
	"valor":            true,
	"es_totalestoque":  true,
	"giro_sku_cliente": true,
	"zs_peso_liquido":  true,
}

// ScoreColumn scores one column against one name hint. The type bonus only
// applies on top of a name match.
func ScoreColumn(col models.ColumnDescriptor, candidate string) int {
	name := strings.ToLower(col.Name)
	cand := strings.ToLower(candidate)

	score := 0
	if name == cand {
		score += scoreExact
	}
	if strings.HasSuffix(name, "_"+cand) {
		score += scoreSuffix
	}
	if strings.HasPrefix(name, cand+"_") {
		score += scorePrefix
	}
	if strings.Contains(name, cand) {
		score += scoreSubstring
	}
	if score == 0 {
		return 0
	}

	switch {
	case identifierHints[cand] && col.Category == models.TypeString:
		score += scoreTypeBonus
	case quantityHints[cand] && col.Category == models.TypeNumeric:
		score += scoreTypeBonus
	}
	return score
}

// MatchColumn returns the best scoring column of table for the candidate
// hints. Candidates are walked in order and columns in declaration order;
// only a strictly higher score replaces the current best.
func MatchColumn(table *models.TableDescriptor, candidates []string) models.ColumnMatch {
	best := models.ColumnMatch{Table: table.Name}
	for _, cand := range candidates {
		for _, col := range table.Columns {
			if s := ScoreColumn(col, cand); s > best.Score {
				best.Score = s
				best.Column = col.Name
			}
		}
	}
	return best
}

// MatchTable returns the first table whose lowercased name contains a
// candidate, trying candidates in order.
func MatchTable(schema *models.SchemaDescriptor, candidates []string) (*models.TableDescriptor, bool) {
	for _, cand := range candidates {
		for i := range schema.Tables {
			if strings.Contains(strings.ToLower(schema.Tables[i].Name), cand) {
				return &schema.Tables[i], true
			}
		}
	}
	return nil, false
}

// lowerSource adapts lowercased names to fuzzy.Source.
type lowerSource []string

func (s lowerSource) Len() int            { return len(s) }
func (s lowerSource) String(i int) string { return s[i] }

// Suggest lists up to three names closest to any candidate, best first.
func Suggest(candidates, names []string) []string {
	if len(names) == 0 {
		return nil
	}
	lowered := make(lowerSource, len(names))
	for i, n := range names {
		lowered[i] = strings.ToLower(n)
	}

	type hit struct {
		index int
		score int
	}
	bestByIndex := make(map[int]int)
	var order []int
	for _, cand := range candidates {
		for _, m := range fuzzy.FindFrom(strings.ToLower(cand), lowered) {
			prev, seen := bestByIndex[m.Index]
			if !seen {
				order = append(order, m.Index)
			}
			if !seen || m.Score > prev {
				bestByIndex[m.Index] = m.Score
			}
		}
	}

	hits := make([]hit, 0, len(order))
	for _, idx := range order {
		hits = append(hits, hit{index: idx, score: bestByIndex[idx]})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]string, 0, maxSuggestions)
	for _, h := range hits {
		if len(out) == maxSuggestions {
			break
		}
		out = append(out, names[h.index])
	}
	return out
}
