// Package sentiment scores post text for polarity and subjectivity.
package sentiment

import (
	"fmt"
	"strings"

	"github.com/jonreiter/govader"
)

// Scorer maps text to a polarity in [-1, 1] and a subjectivity in [0, 1].
type Scorer interface {
	Score(text string) (polarity, subjectivity float64)
}

// ScorerFunc adapts a plain function to the Scorer interface.
type ScorerFunc func(text string) (float64, float64)

func (f ScorerFunc) Score(text string) (float64, float64) { return f(text) }

// Nop scores every text as neutral fact.
var Nop Scorer = ScorerFunc(func(string) (float64, float64) { return 0, 0 })

// VaderScorer scores text with the VADER lexicon.
type VaderScorer struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVaderScorer loads the VADER lexicon.
func NewVaderScorer() *VaderScorer {
	return &VaderScorer{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

// Score returns the VADER compound score as polarity and the share of
// non-neutral text as subjectivity.
func (v *VaderScorer) Score(text string) (float64, float64) {
	if strings.TrimSpace(text) == "" {
		return 0, 0
	}
	s := v.analyzer.PolarityScores(text)
	return clamp(s.Compound, -1, 1), clamp(1-s.Neutral, 0, 1)
}

// New returns the scorer registered under name ("vader", "none").
func New(name string) (Scorer, error) {
	switch strings.ToLower(name) {
	case "", "vader":
		return NewVaderScorer(), nil
	case "none", "nop":
		return Nop, nil
	default:
		return nil, fmt.Errorf("unknown sentiment backend: %s", name)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
