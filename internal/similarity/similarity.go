// Package similarity scores how well a description matches a catalog entry.
package similarity

import (
	"fmt"
	"strings"

	"github.com/Veraticus/katalog/internal/normalize"
)

// Weights are the contributions of the individual signals to a confidence score.
// They were chosen empirically and are kept configurable rather than tuned.
type Weights struct {
	Phrase float64 `mapstructure:"phrase_weight"`
	Token  float64 `mapstructure:"token_weight"`
	Edit   float64 `mapstructure:"edit_weight"`
}

// DefaultWeights returns the standard signal weights.
func DefaultWeights() Weights {
	return Weights{
		Phrase: 0.8,
		Token:  0.5,
		Edit:   0.3,
	}
}

// Query is a prepared search text.
type Query struct {
	Text   string
	Key    string
	Tokens []string
	Words  []string
}

// NewQuery prepares a normalized description for scoring.
func NewQuery(normalized string) Query {
	text := strings.ToLower(strings.TrimSpace(normalized))
	tokens := normalize.Tokenize(text)
	return Query{
		Text:   text,
		Key:    strings.Join(tokens, " "),
		Tokens: tokens,
		Words:  normalize.Words(text),
	}
}

// Empty reports whether the query carries nothing to match on.
func (q Query) Empty() bool {
	return q.Text == "" && len(q.Tokens) == 0
}

// Target is a prepared catalog entry or taxonomy node.
type Target struct {
	CodeLower  string
	SearchText string
	Key        string
	Tokens     []string
}

// NewTarget prepares an entry for scoring. The name drives edit-distance
// similarity; extra text (a description) only widens phrase and token matching.
func NewTarget(code, name, extra string) Target {
	nameTokens := normalize.Tokenize(name)
	searchText := strings.ToLower(strings.TrimSpace(code + " " + name))
	tokens := nameTokens
	if extra != "" {
		searchText += " " + strings.ToLower(extra)
		tokens = append(append([]string(nil), nameTokens...), normalize.Tokenize(extra)...)
	}
	return Target{
		CodeLower:  strings.ToLower(strings.TrimSpace(code)),
		SearchText: searchText,
		Key:        strings.Join(nameTokens, " "),
		Tokens:     tokens,
	}
}

// Scorer computes layered confidence scores.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer with the given weights.
func NewScorer(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Weights returns the weights the scorer was built with.
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Breakdown records which signals contributed to a score.
type Breakdown struct {
	Total          float64
	TokenRatio     float64
	EditSimilarity float64
	ExactCode      bool
	Phrase         bool
}

// Reason renders the breakdown as a short human readable explanation.
func (b Breakdown) Reason() string {
	if b.ExactCode {
		return "exact code match"
	}
	parts := make([]string, 0, 3)
	if b.Phrase {
		parts = append(parts, "phrase match")
	}
	if b.TokenRatio > 0 {
		parts = append(parts, fmt.Sprintf("token overlap %.0f%%", b.TokenRatio*100))
	}
	if b.EditSimilarity > 0 {
		parts = append(parts, fmt.Sprintf("similarity %.2f", b.EditSimilarity))
	}
	if len(parts) == 0 {
		return "no overlap"
	}
	return strings.Join(parts, ", ")
}

// Score returns the confidence in [0,1] that the query describes the target.
func (s *Scorer) Score(q Query, t Target) float64 {
	return s.Breakdown(q, t).Total
}

// Breakdown scores the query against the target. An exact code match
// short-circuits to 1.0. Otherwise phrase containment, token overlap and
// edit-distance similarity add up and are clamped to 1.0.
func (s *Scorer) Breakdown(q Query, t Target) Breakdown {
	var b Breakdown
	if q.Empty() {
		return b
	}

	if t.CodeLower != "" {
		exact := q.Text == t.CodeLower
		for _, w := range q.Words {
			if exact {
				break
			}
			exact = w == t.CodeLower
		}
		if exact {
			b.ExactCode = true
			b.Total = 1.0
			return b
		}
	}

	if q.Text != "" && strings.Contains(t.SearchText, q.Text) {
		b.Phrase = true
		b.Total += s.weights.Phrase
	}

	if len(q.Tokens) > 0 && len(t.Tokens) > 0 {
		matched := 0
		for _, qt := range q.Tokens {
			if tokenMatches(qt, t.Tokens) {
				matched++
			}
		}
		b.TokenRatio = float64(matched) / float64(len(q.Tokens))
		b.Total += s.weights.Token * b.TokenRatio
	}

	if q.Key != "" && t.Key != "" {
		b.EditSimilarity = Levenshtein(q.Key, t.Key)
		b.Total += s.weights.Edit * b.EditSimilarity
	}

	if b.Total > 1.0 {
		b.Total = 1.0
	}
	return b
}

// tokenMatches reports whether the query token overlaps any target token:
// either contains the other, or both share the inverted index prefix.
func tokenMatches(qt string, targetTokens []string) bool {
	qp := ""
	if runeCount(qt) >= normalize.PrefixLength {
		qp = normalize.Prefix(qt)
	}
	for _, tt := range targetTokens {
		if strings.Contains(tt, qt) || strings.Contains(qt, tt) {
			return true
		}
		if qp != "" && runeCount(tt) >= normalize.PrefixLength && normalize.Prefix(tt) == qp {
			return true
		}
	}
	return false
}

func runeCount(s string) int {
	return len([]rune(s))
}
