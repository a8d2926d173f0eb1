package services

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/ekaya-inc/ekaya-analyst/pkg/models"
)

//go:embed vocabulary.yaml
var vocabularyYAML []byte

// vocabularyEntry is one block of vocabulary.yaml. Intent, when set, names
// the canonical intent the key folds into.
type vocabularyEntry struct {
	Key      string   `yaml:"key"`
	Intent   string   `yaml:"intent"`
	Patterns []string `yaml:"patterns"`
	Examples []string `yaml:"examples"`
}

type vocabularyFile struct {
	Intents []vocabularyEntry `yaml:"intents"`
}

// pattern is a normalized trigger phrase.
type pattern struct {
	text   string
	tokens []string
}

func (p pattern) multiWord() bool {
	return len(p.tokens) > 1
}

// vocabularyGroup is a vocabulary key with its patterns normalized.
type vocabularyGroup struct {
	key      string
	intent   models.Intent
	patterns []pattern
	examples []string
}

// Vocabulary is the ordered pattern table the rules classifier walks.
type Vocabulary struct {
	groups []vocabularyGroup
	// intents lists canonical intents in first-seen order.
	intents []models.Intent
}

// DefaultVocabulary parses the embedded vocabulary.yaml.
func DefaultVocabulary() (*Vocabulary, error) {
	return ParseVocabulary(vocabularyYAML)
}

// ParseVocabulary decodes a vocabulary document. Every entry must resolve to
// a known intent other than unknown.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var file vocabularyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(file.Intents) == 0 {
		return nil, fmt.Errorf("vocabulary has no intents")
	}

	v := &Vocabulary{}
	seen := make(map[models.Intent]bool)
	for _, e := range file.Intents {
		if e.Key == "" {
			return nil, fmt.Errorf("vocabulary entry without key")
		}
		intent := models.Intent(e.Key)
		if e.Intent != "" {
			intent = models.Intent(e.Intent)
		}
		if !intent.Valid() || intent == models.IntentUnknown {
			return nil, fmt.Errorf("vocabulary key %q maps to unknown intent %q", e.Key, intent)
		}

		g := vocabularyGroup{key: e.Key, intent: intent, examples: e.Examples}
		for _, raw := range e.Patterns {
			text := strings.TrimSpace(NormalizeText(raw))
			if text == "" {
				continue
			}
			g.patterns = append(g.patterns, pattern{text: text, tokens: strings.Fields(text)})
		}
		v.groups = append(v.groups, g)

		if !seen[intent] {
			seen[intent] = true
			v.intents = append(v.intents, intent)
		}
	}
	return v, nil
}

// Intents returns the canonical intents in vocabulary order.
func (v *Vocabulary) Intents() []models.Intent {
	out := make([]models.Intent, len(v.intents))
	copy(out, v.intents)
	return out
}

// MatchPhrase returns the intent of the first multi-word pattern that occurs
// verbatim in normalized text.
func (v *Vocabulary) MatchPhrase(normalized string) (models.Intent, bool) {
	for _, g := range v.groups {
		for _, p := range g.patterns {
			if p.multiWord() && strings.Contains(normalized, p.text) {
				return g.intent, true
			}
		}
	}
	return "", false
}

// IntentScore is the bag-of-patterns score of one intent.
type IntentScore struct {
	Intent models.Intent
	Score  float64
}

// Score weighs every pattern against normalized text and returns one score
// per canonical intent, highest first. Equal scores keep vocabulary order.
// Single-word patterns must match a whole word: "oi" does not fire on "foi".
func (v *Vocabulary) Score(normalized string) []IntentScore {
	words := wordSet(normalized)
	totals := make(map[models.Intent]float64, len(v.intents))
	for _, g := range v.groups {
		for _, p := range g.patterns {
			if p.multiWord() {
				if containsAll(normalized, p.tokens) {
					totals[g.intent] += PhraseWeight
				}
				continue
			}
			if words[p.text] {
				totals[g.intent] += WordWeight
			}
		}
	}

	scores := make([]IntentScore, len(v.intents))
	for i, intent := range v.intents {
		scores[i] = IntentScore{Intent: intent, Score: totals[intent]}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores
}

// examplesByIntent groups example utterances under their canonical intent,
// preserving vocabulary order.
func (v *Vocabulary) examplesByIntent() map[models.Intent][]string {
	out := make(map[models.Intent][]string, len(v.intents))
	for _, g := range v.groups {
		out[g.intent] = append(out[g.intent], g.examples...)
	}
	return out
}

func wordSet(s string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	}) {
		words[w] = true
	}
	return words
}

func containsAll(s string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(s, tok) {
			return false
		}
	}
	return true
}
