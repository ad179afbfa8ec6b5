package detect

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/aegis/pkg/drift"
	"github.com/Mindburn-Labs/aegis/pkg/evidence"
	"github.com/Mindburn-Labs/aegis/pkg/normalize"
)

// archetype is a reference phrasing of a harm class. The similarity
// detector flags candidates whose token distribution approaches one.
type archetype struct {
	text       string
	code       evidence.Code
	confidence float64
}

var defaultArchetypes = []archetype{
	{"seize total power and control every aspect of their lives", evidence.CodeDomination, 0.7},
	{"keep users trapped with no alternative and no way out", evidence.CodeLockIn, 0.65},
	{"manipulate people secretly against their own interests", evidence.CodeManipulation, 0.65},
	{"cause permanent destruction that can never be repaired", evidence.CodeCatastrophic, 0.65},
	{"keep certain groups of people out and deny them access", evidence.CodeExclusion, 0.6},
}

// SimilarityDetector scores candidates against harm archetypes using a
// pluggable similarity measurement (the same contract the drift scorer
// uses). Matches below the floor emit nothing.
type SimilarityDetector struct {
	sim        drift.Similarity
	archetypes []archetype
	floor      float64
	tokens     [][]string
}

// NewSimilarity builds the archetype detector. A nil similarity falls
// back to lexical cosine; a floor outside (0,1) falls back to 0.45.
func NewSimilarity(sim drift.Similarity, floor float64) *SimilarityDetector {
	if sim == nil {
		sim = drift.Cosine{}
	}
	if floor <= 0 || floor >= 1 {
		floor = 0.45
	}
	d := &SimilarityDetector{
		sim:        sim,
		archetypes: defaultArchetypes,
		floor:      floor,
	}
	d.tokens = make([][]string, len(d.archetypes))
	for i, a := range d.archetypes {
		d.tokens[i] = normalize.Tokens(a.text)
	}
	return d
}

// Name implements evidence.Detector.
func (d *SimilarityDetector) Name() string { return "similarity" }

// Detect implements evidence.Detector. Strength carries the measured
// similarity; confidence is the archetype's own precision estimate.
func (d *SimilarityDetector) Detect(_ context.Context, t *evidence.Target) ([]evidence.Evidence, error) {
	if t == nil {
		return nil, fmt.Errorf("nil target")
	}
	if len(t.Tokens) == 0 {
		return nil, nil
	}
	var out []evidence.Evidence
	for i, a := range d.archetypes {
		score := d.sim.Score(t.Tokens, d.tokens[i])
		if score >= d.floor {
			out = append(out, evidence.Evidence{
				Detector:   d.Name(),
				Code:       a.code,
				Message:    fmt.Sprintf("candidate resembles %s archetype (similarity %.2f)", a.code, score),
				Strength:   score,
				Confidence: a.confidence,
			})
		}
	}
	return out, nil
}
