package chart

import (
	"strings"

	"finboard/internal/core"

	"github.com/shopspring/decimal"
)

// FallbackCategory collects descriptions no rule matches.
const FallbackCategory = "Other"

// Rule assigns Label to descriptions accepted by Match.
type Rule struct {
	Label string
	Match func(description string) bool
}

// KeywordRule matches descriptions containing keyword, ignoring case.
func KeywordRule(label, keyword string) Rule {
	keyword = strings.ToLower(keyword)
	return Rule{
		Label: label,
		Match: func(description string) bool {
			return strings.Contains(strings.ToLower(description), keyword)
		},
	}
}

// DefaultRules is the dashboard's keyword heuristic. It is not a taxonomy:
// "Parental transport" is Rent because rent is tested first.
func DefaultRules() []Rule {
	return []Rule{
		KeywordRule("Food", "food"),
		KeywordRule("Rent", "rent"),
		KeywordRule("Transport", "transport"),
	}
}

// Categorizer evaluates rules in order; the first match wins.
type Categorizer struct {
	rules []Rule
}

// NewCategorizer copies rules; later changes to the slice have no effect.
func NewCategorizer(rules ...Rule) *Categorizer {
	return &Categorizer{rules: append([]Rule(nil), rules...)}
}

// Categorize returns the label of the first matching rule, or FallbackCategory.
func (c *Categorizer) Categorize(description string) string {
	for _, r := range c.rules {
		if r.Match(description) {
			return r.Label
		}
	}
	return FallbackCategory
}

// Series sums amounts per category. Only categories with at least one
// transaction appear, in order of first appearance.
func (c *Categorizer) Series(txs []core.Transaction) []Point {
	index := make(map[string]int)
	out := make([]Point, 0, len(c.rules)+1)
	for _, tx := range txs {
		label := c.Categorize(tx.Description)
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, Point{Label: label, Value: decimal.Zero})
		}
		out[i].Value = out[i].Value.Add(tx.Amount)
	}
	return out
}
