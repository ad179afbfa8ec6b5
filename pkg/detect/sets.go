package detect

import (
	"fmt"

	"github.com/Mindburn-Labs/aegis/pkg/evidence"
)

// Option appends extra detectors to a built-in set.
type Option func(*[]evidence.Detector)

// WithDetector adds a custom detector (CEL rules, a WASM plugin, or
// anything implementing evidence.Detector).
func WithDetector(d evidence.Detector) Option {
	return func(ds *[]evidence.Detector) { *ds = append(*ds, d) }
}

// FullSet builds the thorough detector set used by the action stage:
// lexical + heuristic + similarity, plus any extras. A nil lexicon
// selects the built-in default.
func FullSet(lex *Lexicon, opts ...Option) (*evidence.Set, error) {
	lexical, err := NewLexical(lex)
	if err != nil {
		return nil, fmt.Errorf("full set: %w", err)
	}
	detectors := []evidence.Detector{
		lexical,
		NewHeuristic(),
		NewSimilarity(nil, 0),
	}
	for _, opt := range opts {
		opt(&detectors)
	}
	return evidence.NewSet("full", detectors...)
}

// IntentSet builds the reduced, cheap set used by the intention stage:
// lexical + heuristic only. Similarity scoring and plugins are skipped
// so stage 1 stays inexpensive enough to run before any reasoning work.
func IntentSet(lex *Lexicon, opts ...Option) (*evidence.Set, error) {
	lexical, err := NewLexical(lex)
	if err != nil {
		return nil, fmt.Errorf("intent set: %w", err)
	}
	detectors := []evidence.Detector{
		lexical,
		NewHeuristic(),
	}
	for _, opt := range opts {
		opt(&detectors)
	}
	return evidence.NewSet("intent", detectors...)
}
