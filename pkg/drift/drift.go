// Package drift measures how far a repaired text moved semantically
// from the original request or its stated goal.
//
// A repair that zeroes the violation score by deleting the content that
// carried the request's meaning is not a fix; excess drift is itself a
// violation. The measurement is pluggable; the default is a lexical
// cosine over normalized token frequencies.
package drift

import (
	"math"
	"strings"

	"github.com/Mindburn-Labs/aegis/pkg/normalize"
)

// Similarity scores how alike two token sequences are, in [0,1].
// Implementations must be deterministic and symmetric.
type Similarity interface {
	Score(a, b []string) float64
}

// Cosine is the default similarity: cosine over token frequency
// vectors of the normalized texts.
type Cosine struct{}

// Score implements Similarity.
func (Cosine) Score(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	fa := frequencies(a)
	fb := frequencies(b)

	var dot, na, nb float64
	for tok, ca := range fa {
		na += ca * ca
		if cb, ok := fb[tok]; ok {
			dot += ca * cb
		}
	}
	for _, cb := range fb {
		nb += cb * cb
	}
	if na == 0 || nb == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func frequencies(tokens []string) map[string]float64 {
	f := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		f[t]++
	}
	return f
}

// Scorer computes drift, defined as 1 - similarity.
type Scorer struct {
	sim Similarity
}

// New builds a scorer. A nil similarity falls back to Cosine.
func New(sim Similarity) *Scorer {
	if sim == nil {
		sim = Cosine{}
	}
	return &Scorer{sim: sim}
}

// Distance returns the drift between the original and repaired texts,
// in [0,1]. An emptied repair scores maximal drift against a non-empty
// original.
func (s *Scorer) Distance(original, repaired string) float64 {
	a := normalize.Tokens(original)
	b := normalize.Tokens(repaired)
	return clamp01(1.0 - s.sim.Score(a, b))
}

// DistanceFromGoals measures the repaired text against the stated goals
// when the request carries them; the goals, not the raw phrasing, are
// what the repair must preserve.
func (s *Scorer) DistanceFromGoals(goals []string, repaired string) float64 {
	return s.Distance(strings.Join(goals, " "), repaired)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
