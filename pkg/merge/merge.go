// Package merge combines heterogeneous detector evidence into one
// reproducible outcome.
//
// Two rules are absolute: any hard-stop code rejects immediately, and
// detector failure is treated identically to a hard stop. Everything
// else flows through a soft aggregate compared against the configured
// thresholds.
//
// The soft aggregate is a noisy-OR over strength x confidence:
//
//	score = 1 - Π(1 - sᵢ·cᵢ)
//
// Noisy-OR was chosen over max and plain sum: it is commutative (the
// outcome cannot depend on detector iteration order), bounded to [0,1),
// and monotone: adding evidence, or strengthening existing evidence,
// never lowers the score.
package merge

import (
	"fmt"
	"strings"

	"github.com/Mindburn-Labs/aegis/pkg/evidence"
)

// Kind is the merged outcome class.
type Kind string

const (
	KindAllow      Kind = "ALLOW"
	KindReject     Kind = "REJECT"
	KindRepairable Kind = "REPAIRABLE"
)

// Outcome is the merger's verdict over one evidence list.
type Outcome struct {
	Kind     Kind
	Score    float64
	HardStop bool
	Reason   string
	Codes    []evidence.Code
}

// Merger applies hard-stop overrides and threshold aggregation. It is
// stateless and safe for concurrent use.
type Merger struct {
	tauReject float64
	tauRepair float64
}

// New builds a merger. Thresholds outside (0,1] fall back to the
// conservative defaults (reject 0.5, repair 0.25); a repair threshold
// above the reject threshold is clamped down to it.
func New(tauReject, tauRepair float64) *Merger {
	if tauReject <= 0 || tauReject > 1 {
		tauReject = 0.5
	}
	if tauRepair <= 0 || tauRepair > 1 {
		tauRepair = 0.25
	}
	if tauRepair > tauReject {
		tauRepair = tauReject
	}
	return &Merger{tauReject: tauReject, tauRepair: tauRepair}
}

// Merge reduces the evidence list to one outcome. The result is a pure
// function of the evidence multiset; iteration order cannot change it.
func (m *Merger) Merge(evs []evidence.Evidence) Outcome {
	codes := evidence.Codes(evs)

	for _, e := range evs {
		if e.Code == evidence.CodeDetectorFailure {
			return Outcome{
				Kind:     KindReject,
				Score:    1.0,
				HardStop: true,
				Reason:   fmt.Sprintf("detector failure treated as violation: %s", e.Message),
				Codes:    codes,
			}
		}
	}
	for _, e := range evs {
		if e.Code.IsHardStop() {
			return Outcome{
				Kind:     KindReject,
				Score:    1.0,
				HardStop: true,
				Reason:   fmt.Sprintf("hard-stop violation %s: %s", e.Code, e.Message),
				Codes:    codes,
			}
		}
	}

	if len(evs) == 0 {
		return Outcome{Kind: KindAllow}
	}

	score := Aggregate(evs)
	switch {
	case score >= m.tauReject:
		return Outcome{
			Kind:   KindReject,
			Score:  score,
			Reason: fmt.Sprintf("aggregate violation score %.3f >= reject threshold %.3f (%s)", score, m.tauReject, joinCodes(codes)),
			Codes:  codes,
		}
	case score >= m.tauRepair:
		return Outcome{
			Kind:   KindRepairable,
			Score:  score,
			Reason: fmt.Sprintf("aggregate violation score %.3f >= repair threshold %.3f (%s)", score, m.tauRepair, joinCodes(codes)),
			Codes:  codes,
		}
	default:
		// Below the repair threshold but not evidence-free. The gate
		// still rejects: ALLOW is reserved for candidates with no
		// evidence at all.
		return Outcome{
			Kind:   KindReject,
			Score:  score,
			Reason: fmt.Sprintf("residual violation evidence below repair threshold (%s)", joinCodes(codes)),
			Codes:  codes,
		}
	}
}

// TauRepair returns the configured repair threshold.
func (m *Merger) TauRepair() float64 { return m.tauRepair }

// TauReject returns the configured reject threshold.
func (m *Merger) TauReject() float64 { return m.tauReject }

// Aggregate computes the noisy-OR soft score. Hard-stop and failure
// entries are excluded; they never reach aggregation.
func Aggregate(evs []evidence.Evidence) float64 {
	surviveAll := 1.0
	for _, e := range evs {
		if e.Code.IsHardStop() || e.Code == evidence.CodeDetectorFailure {
			continue
		}
		surviveAll *= 1.0 - e.Weight()
	}
	return 1.0 - surviveAll
}

func joinCodes(codes []evidence.Code) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}
