// Package recurrence resolves free-form recurrence values to configured rules.
package recurrence

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// FuzzyThreshold is the highest accepted fuzzy score. Lower is stricter.
const FuzzyThreshold = 0.3

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Word characters, whitespace and the Arabic block used by Persian labels survive.
	strippedRe = regexp.MustCompile(`[^\w\s\x{0600}-\x{06FF}]`)
)

// Normalize prepares a value for comparison.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strippedRe.ReplaceAllString(s, "")
}

// Match is the outcome of a successful resolution.
type Match struct {
	Rule  Rule
	Exact bool
	// Score is 0 for exact matches; for fuzzy matches it is the edit
	// distance divided by the query length.
	Score float64
}

type indexed struct {
	rule   Rule
	fields []string
}

// Matcher resolves recurrence values against a fixed rule set. Build a new
// one whenever the rule set changes.
type Matcher struct {
	index []indexed
}

// NewMatcher indexes the enabled rules, keeping their order.
func NewMatcher(rules []Rule) *Matcher {
	m := &Matcher{}
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		m.index = append(m.index, indexed{
			rule:   r,
			fields: []string{Normalize(r.Key), Normalize(r.LabelEn), Normalize(r.LabelFa)},
		})
	}
	return m
}

// Rules returns the enabled rules the matcher was built from.
func (m *Matcher) Rules() []Rule {
	out := make([]Rule, 0, len(m.index))
	for _, ix := range m.index {
		out = append(out, ix.rule)
	}
	return out
}

// Resolve finds the rule raw refers to. An exact normalized match on key,
// English or Persian label wins; otherwise the best fuzzy candidate within
// FuzzyThreshold is returned.
func (m *Matcher) Resolve(raw string) (Match, bool) {
	query := Normalize(raw)
	if strings.TrimSpace(query) == "" {
		return Match{}, false
	}

	for _, ix := range m.index {
		for _, f := range ix.fields {
			if f != "" && f == query {
				return Match{Rule: ix.rule, Exact: true}, true
			}
		}
	}

	return m.fuzzy(query)
}

type candidate struct {
	pos   int
	score float64
}

func (m *Matcher) fuzzy(query string) (Match, bool) {
	var found []candidate
	for i, ix := range m.index {
		best := math.Inf(1)
		for _, f := range ix.fields {
			if f == "" {
				continue
			}
			if s := score(query, f); s < best {
				best = s
			}
		}
		if best <= FuzzyThreshold {
			found = append(found, candidate{pos: i, score: best})
		}
	}
	if len(found) == 0 {
		return Match{}, false
	}
	sort.SliceStable(found, func(a, b int) bool {
		return found[a].score < found[b].score
	})
	top := found[0]
	return Match{Rule: m.index[top.pos].rule, Score: top.score}, true
}

// score is the smallest edit distance between query and any substring of
// field, relative to the query length. Where the match sits in the field
// does not matter.
func score(query, field string) float64 {
	q := []rune(query)
	f := []rune(field)
	qLen := len(q)
	if qLen == 0 {
		return math.Inf(1)
	}

	maxErr := int(math.Floor(FuzzyThreshold * float64(qLen)))
	best := levenshtein.Distance(query, field, nil)
	minWin := qLen - maxErr
	if minWin < 1 {
		minWin = 1
	}
	for size := minWin; size <= qLen+maxErr && size <= len(f); size++ {
		for start := 0; start+size <= len(f); start++ {
			d := levenshtein.Distance(query, string(f[start:start+size]), nil)
			if d < best {
				best = d
			}
			if best == 0 {
				return 0
			}
		}
	}
	return float64(best) / float64(utf8.RuneCountInString(query))
}
