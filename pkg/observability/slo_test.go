package observability

import (
	"testing"
	"time"
)

func actionTarget() *SLOTarget {
	return &SLOTarget{
		SLOID:       "slo-action",
		Name:        "action stage decisiveness",
		Operation:   "action",
		LatencyP99:  100 * time.Millisecond,
		SuccessRate: 0.95,
		WindowHours: 24,
	}
}

func TestSLOTracker_NoObservationsIsCompliant(t *testing.T) {
	tracker := NewSLOTracker()
	tracker.SetTarget(actionTarget())

	status, err := tracker.Status("action")
	if err != nil {
		t.Fatal(err)
	}
	if !status.InCompliance {
		t.Error("empty window should be compliant")
	}
	if status.ErrorBudgetLeft != 100.0 {
		t.Errorf("budget = %f", status.ErrorBudgetLeft)
	}
	if status.ObservationCount != 0 {
		t.Errorf("count = %d", status.ObservationCount)
	}
}

func TestSLOTracker_UnknownOperation(t *testing.T) {
	tracker := NewSLOTracker()
	if _, err := tracker.Status("intention"); err == nil {
		t.Fatal("expected error for missing target")
	}
}

func TestSLOTracker_CompliantWindow(t *testing.T) {
	tracker := NewSLOTracker()
	tracker.SetTarget(actionTarget())

	for i := 0; i < 100; i++ {
		tracker.Record(SLOObservation{
			Operation: "action",
			Latency:   10 * time.Millisecond,
			Success:   true,
		})
	}

	status, err := tracker.Status("action")
	if err != nil {
		t.Fatal(err)
	}
	if !status.InCompliance {
		t.Errorf("expected compliance: %+v", status)
	}
	if status.CurrentSuccess != 1.0 {
		t.Errorf("success = %f", status.CurrentSuccess)
	}
	if status.BurnRate != 0 {
		t.Errorf("burn rate = %f", status.BurnRate)
	}
}

func TestSLOTracker_EscalationsBurnBudget(t *testing.T) {
	tracker := NewSLOTracker()
	tracker.SetTarget(actionTarget())

	// 10% escalations against a 5% budget: burn rate 2, out of compliance.
	for i := 0; i < 100; i++ {
		tracker.Record(SLOObservation{
			Operation: "action",
			Latency:   10 * time.Millisecond,
			Success:   i%10 != 0,
		})
	}

	status, err := tracker.Status("action")
	if err != nil {
		t.Fatal(err)
	}
	if status.InCompliance {
		t.Error("expected violation")
	}
	if status.BurnRate < 1.9 || status.BurnRate > 2.1 {
		t.Errorf("burn rate = %f, want ~2", status.BurnRate)
	}
	if status.ErrorBudgetLeft != 0 {
		t.Errorf("budget left = %f", status.ErrorBudgetLeft)
	}
}

func TestSLOTracker_LatencyViolation(t *testing.T) {
	tracker := NewSLOTracker()
	tracker.SetTarget(actionTarget())

	for i := 0; i < 100; i++ {
		tracker.Record(SLOObservation{
			Operation: "action",
			Latency:   500 * time.Millisecond,
			Success:   true,
		})
	}

	status, err := tracker.Status("action")
	if err != nil {
		t.Fatal(err)
	}
	if status.InCompliance {
		t.Error("p99 above target must violate")
	}
	if status.CurrentP99 != 500 {
		t.Errorf("p99 = %f ms", status.CurrentP99)
	}
}

func TestSLOTracker_WindowExcludesOldObservations(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tracker := NewSLOTracker().WithClock(func() time.Time { return now })
	tracker.SetTarget(actionTarget())

	// Failures two days ago fall outside the 24h window.
	tracker.Record(SLOObservation{
		Operation: "action",
		Latency:   10 * time.Millisecond,
		Success:   false,
		Timestamp: now.Add(-48 * time.Hour),
	})
	tracker.Record(SLOObservation{
		Operation: "action",
		Latency:   10 * time.Millisecond,
		Success:   true,
		Timestamp: now.Add(-time.Hour),
	})

	status, err := tracker.Status("action")
	if err != nil {
		t.Fatal(err)
	}
	if status.ObservationCount != 1 {
		t.Errorf("window count = %d", status.ObservationCount)
	}
	if !status.InCompliance {
		t.Error("stale failure must not count against the window")
	}
}

func TestSLOTracker_StagesTrackedIndependently(t *testing.T) {
	tracker := NewSLOTracker()
	tracker.SetTarget(actionTarget())
	tracker.SetTarget(&SLOTarget{
		SLOID: "slo-intent", Operation: "intention",
		LatencyP99: 50 * time.Millisecond, SuccessRate: 0.99, WindowHours: 24,
	})

	tracker.Record(SLOObservation{Operation: "action", Latency: time.Millisecond, Success: false})
	tracker.Record(SLOObservation{Operation: "intention", Latency: time.Millisecond, Success: true})

	intent, err := tracker.Status("intention")
	if err != nil {
		t.Fatal(err)
	}
	if !intent.InCompliance || intent.ObservationCount != 1 {
		t.Errorf("intention status polluted: %+v", intent)
	}
}
