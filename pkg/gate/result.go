package gate

import (
	"github.com/Mindburn-Labs/aegis/pkg/evidence"
	"github.com/Mindburn-Labs/aegis/pkg/repair"
)

// Result is the terminal outcome of one action-stage check.
//
// Invariants enforced by the orchestrator:
//   - REJECT and ESCALATE always carry a non-empty Explanation.
//   - ALLOW_WITH_REPAIR always carries RepairedText and a non-empty
//     RepairLog, and Repaired is true.
//   - Plain ALLOW carries neither explanation nor repair artifacts.
type Result struct {
	CandidateID string
	CheckID     string
	Decision    Decision

	// Evidence is the complete detection output for the original text.
	// Nothing is deduplicated away.
	Evidence []evidence.Evidence

	Repaired     bool
	RepairedText string
	RepairLog    []repair.Attempt

	// DriftScore is set only when the drift stage ran.
	DriftScore *float64

	Explanation string
}

// Codes returns the distinct violation codes that contributed.
func (r Result) Codes() []evidence.Code {
	return evidence.Codes(r.Evidence)
}
