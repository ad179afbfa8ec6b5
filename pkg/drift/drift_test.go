package drift

import (
	"math"
	"testing"
)

func TestCosine_Identical(t *testing.T) {
	c := Cosine{}
	got := c.Score([]string{"share", "the", "plan"}, []string{"share", "the", "plan"})
	if math.Abs(got-1.0) > 1e-9 {
		t.Errorf("identical token sets should score 1.0, got %f", got)
	}
}

func TestCosine_Disjoint(t *testing.T) {
	c := Cosine{}
	got := c.Score([]string{"alpha", "beta"}, []string{"gamma", "delta"})
	if got != 0.0 {
		t.Errorf("disjoint token sets should score 0.0, got %f", got)
	}
}

func TestCosine_EmptyCases(t *testing.T) {
	c := Cosine{}
	if got := c.Score(nil, nil); got != 1.0 {
		t.Errorf("both empty should score 1.0, got %f", got)
	}
	if got := c.Score([]string{"a"}, nil); got != 0.0 {
		t.Errorf("one empty should score 0.0, got %f", got)
	}
}

func TestCosine_Symmetric(t *testing.T) {
	c := Cosine{}
	a := []string{"increase", "welfare", "for", "all"}
	b := []string{"increase", "control", "for", "some"}
	if math.Abs(c.Score(a, b)-c.Score(b, a)) > 1e-12 {
		t.Error("cosine must be symmetric")
	}
}

func TestDistance_IdenticalTextIsZero(t *testing.T) {
	s := New(nil)
	if got := s.Distance("improve the schedule", "improve the schedule"); got != 0.0 {
		t.Errorf("identical text should have zero drift, got %f", got)
	}
}

func TestDistance_EmptiedRepairIsMaximal(t *testing.T) {
	s := New(nil)
	if got := s.Distance("improve the schedule", ""); got != 1.0 {
		t.Errorf("emptied repair should have maximal drift, got %f", got)
	}
}

func TestDistance_PartialOverlap(t *testing.T) {
	s := New(nil)
	got := s.Distance("improve the schedule for everyone", "improve the schedule")
	if got <= 0.0 || got >= 1.0 {
		t.Errorf("partial overlap should drift strictly between 0 and 1, got %f", got)
	}
}

func TestDistance_Normalizes(t *testing.T) {
	// Case and obfuscation differences disappear in the canonical form.
	s := New(nil)
	if got := s.Distance("Improve The Schedule", "improve the schedule"); got != 0.0 {
		t.Errorf("case differences should not count as drift, got %f", got)
	}
}

func TestDistanceFromGoals(t *testing.T) {
	s := New(nil)
	goals := []string{"increase shared welfare", "preserve exit options"}

	aligned := s.DistanceFromGoals(goals, "increase shared welfare and preserve exit options")
	unrelated := s.DistanceFromGoals(goals, "quarterly report formatting cleanup")
	if aligned >= unrelated {
		t.Errorf("aligned repair should drift less than unrelated: %f vs %f", aligned, unrelated)
	}
}

type fixedSim struct{ v float64 }

func (f fixedSim) Score(_, _ []string) float64 { return f.v }

func TestDistance_ClampsCustomSimilarity(t *testing.T) {
	// A misbehaving similarity above 1 must not produce negative drift.
	s := New(fixedSim{v: 1.5})
	if got := s.Distance("a", "b"); got != 0.0 {
		t.Errorf("expected drift clamped to 0, got %f", got)
	}
	s = New(fixedSim{v: -0.5})
	if got := s.Distance("a", "b"); got != 1.0 {
		t.Errorf("expected drift clamped to 1, got %f", got)
	}
}
