package gate

import (
	"github.com/Mindburn-Labs/aegis/pkg/evidence"
	"github.com/Mindburn-Labs/aegis/pkg/normalize"
)

// Candidate is one unit submitted for evaluation. It is immutable: a
// repair produces a new text in the Result, never a mutated candidate.
// The auxiliary fields are explicitly optional; zero values mean the
// upstream pipeline did not supply them.
type Candidate struct {
	ID   string
	Text string

	// Lang is the BCP 47 language tag of Text. Empty means untagged;
	// language-scoped lexicon terms then fall back to the lexicon's
	// first declared language.
	Lang string

	// Rationale is the participant's stated reasoning for the proposal.
	Rationale string
	// Goals are the stated goal descriptions the proposal serves; drift
	// is measured against them when present.
	Goals []string
	// Pressure is the upstream numeric pressure snapshot.
	Pressure map[string]float64
	// StateSummary summarizes the participant's internal goal-state.
	StateSummary map[string]float64
}

// target prepares the detection view: canonical text and tokens plus
// the auxiliary context, computed once per check.
func (c Candidate) target() *evidence.Target {
	canonical := normalize.Canonical(c.Text)
	return &evidence.Target{
		ID:           c.ID,
		Text:         c.Text,
		Normalized:   canonical,
		Tokens:       normalize.TokensCanonical(canonical),
		Lang:         c.Lang,
		Rationale:    c.Rationale,
		Goals:        c.Goals,
		Pressure:     c.Pressure,
		StateSummary: c.StateSummary,
	}
}
