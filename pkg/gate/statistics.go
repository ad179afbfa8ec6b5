package gate

import "sync/atomic"

// Statistics holds the per-instance counters. It is the only mutable
// state the gate shares across calls, updated atomically once per
// completed check, and it is observability only: nothing in the
// decision path ever reads it.
type Statistics struct {
	checks            atomic.Int64
	intentChecks      atomic.Int64
	allowed           atomic.Int64
	allowedWithRepair atomic.Int64
	rejected          atomic.Int64
	escalated         atomic.Int64
	repairAttempts    atomic.Int64
	repairSuccesses   atomic.Int64
	detectorFailures  atomic.Int64
}

// StatisticsSnapshot is an immutable copy of the counters.
type StatisticsSnapshot struct {
	Checks            int64 `json:"checks"`
	IntentChecks      int64 `json:"intent_checks"`
	Allowed           int64 `json:"allowed"`
	AllowedWithRepair int64 `json:"allowed_with_repair"`
	Rejected          int64 `json:"rejected"`
	Escalated         int64 `json:"escalated"`
	RepairAttempts    int64 `json:"repair_attempts"`
	RepairSuccesses   int64 `json:"repair_successes"`
	DetectorFailures  int64 `json:"detector_failures"`
}

// Snapshot copies the counters.
func (s *Statistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		Checks:            s.checks.Load(),
		IntentChecks:      s.intentChecks.Load(),
		Allowed:           s.allowed.Load(),
		AllowedWithRepair: s.allowedWithRepair.Load(),
		Rejected:          s.rejected.Load(),
		Escalated:         s.escalated.Load(),
		RepairAttempts:    s.repairAttempts.Load(),
		RepairSuccesses:   s.repairSuccesses.Load(),
		DetectorFailures:  s.detectorFailures.Load(),
	}
}

func (s *Statistics) recordDecision(d Decision) {
	switch d {
	case DecisionAllow:
		s.allowed.Add(1)
	case DecisionAllowWithRepair:
		s.allowedWithRepair.Add(1)
	case DecisionReject:
		s.rejected.Add(1)
	case DecisionEscalate:
		s.escalated.Add(1)
	}
}
