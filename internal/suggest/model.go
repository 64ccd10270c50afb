package suggest

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"fintrack/internal/core"
)

// Example is one labelled training record.
type Example struct {
	Description string
	Amount      core.Money
	Category    string
}

type classStats struct {
	docs   int
	tokens int
	counts map[string]int
}

// Model is a multinomial naive Bayes classifier over description tokens
// plus a coarse amount bucket token.
type Model struct {
	classes map[string]*classStats
	vocab   map[string]struct{}
	docs    int
}

// Train fits a model. Examples with an empty description, an empty
// category or a category reserved for the total budget are ignored. It
// returns nil when nothing usable remains.
func Train(examples []Example) *Model {
	m := &Model{classes: map[string]*classStats{}, vocab: map[string]struct{}{}}
	for _, ex := range examples {
		label := core.NormalizeCategory(ex.Category)
		tokens := features(ex.Description, ex.Amount)
		if label == "" || core.IsReservedCategory(label) || len(tokens) == 0 {
			continue
		}
		cs := m.classes[label]
		if cs == nil {
			cs = &classStats{counts: map[string]int{}}
			m.classes[label] = cs
		}
		cs.docs++
		m.docs++
		for _, tok := range tokens {
			cs.counts[tok]++
			cs.tokens++
			m.vocab[tok] = struct{}{}
		}
	}
	if m.docs == 0 {
		return nil
	}
	return m
}

// Predict returns the most probable category. Ties resolve to the
// alphabetically first label.
func (m *Model) Predict(description string, amount core.Money) (string, bool) {
	if m == nil || m.docs == 0 {
		return "", false
	}
	tokens := features(description, amount)

	labels := make([]string, 0, len(m.classes))
	for l := range m.classes {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	v := float64(len(m.vocab))
	best, bestScore := "", math.Inf(-1)
	for _, l := range labels {
		cs := m.classes[l]
		score := math.Log(float64(cs.docs) / float64(m.docs))
		for _, tok := range tokens {
			score += math.Log((float64(cs.counts[tok]) + 1) / (float64(cs.tokens) + v))
		}
		if score > bestScore {
			best, bestScore = l, score
		}
	}
	return best, true
}

// Classes returns the known labels, sorted.
func (m *Model) Classes() []string {
	if m == nil {
		return nil
	}
	out := make([]string, 0, len(m.classes))
	for l := range m.classes {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func features(description string, amount core.Money) []string {
	words := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(words)+1)
	for _, w := range words {
		if len([]rune(w)) > 1 {
			out = append(out, w)
		}
	}
	if len(out) == 0 {
		return out
	}
	return append(out, amountBucket(amount))
}

// amountBucket groups amounts by order of magnitude: "amt:10", "amt:100"...
func amountBucket(amount core.Money) string {
	f := math.Abs(amount.Amount.InexactFloat64())
	var limit int64 = 10
	for f >= float64(limit) && limit < 1_000_000 {
		limit *= 10
	}
	return "amt:" + strconv.FormatInt(limit, 10)
}
