package evidence

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestCode_IsHardStop(t *testing.T) {
	if !CodeCatastrophic.IsHardStop() {
		t.Error("CATASTROPHIC_HARM must be a hard stop")
	}
	if !CodeDomination.IsHardStop() {
		t.Error("DOMINATION must be a hard stop")
	}
	if CodeManipulation.IsHardStop() {
		t.Error("MANIPULATION is not a hard stop")
	}
	if CodeDetectorFailure.IsHardStop() {
		t.Error("DETECTOR_FAILURE is handled separately, not via hardStops")
	}
}

func TestCode_Known(t *testing.T) {
	for _, c := range []Code{CodeCatastrophic, CodeDomination, CodeManipulation,
		CodeLockIn, CodeExclusion, CodeDetectorFailure} {
		if !c.Known() {
			t.Errorf("code %s should be known", c)
		}
	}
	if Code("MADE_UP").Known() {
		t.Error("unknown code accepted")
	}
}

func TestSpan_Valid(t *testing.T) {
	if !(Span{Start: 0, End: 5}).Valid(10) {
		t.Error("well-formed span rejected")
	}
	if (Span{Start: 5, End: 5}).Valid(10) {
		t.Error("empty span accepted")
	}
	if (Span{Start: -1, End: 3}).Valid(10) {
		t.Error("negative start accepted")
	}
	if (Span{Start: 2, End: 11}).Valid(10) {
		t.Error("span past end accepted")
	}
}

func TestEvidence_WeightClamped(t *testing.T) {
	e := Evidence{Strength: 1.5, Confidence: 2.0}
	if got := e.Weight(); got != 1.0 {
		t.Errorf("expected weight clamped to 1.0, got %f", got)
	}
	e = Evidence{Strength: -0.5, Confidence: 0.9}
	if got := e.Weight(); got != 0.0 {
		t.Errorf("expected negative strength clamped to 0, got %f", got)
	}
	e = Evidence{Strength: 0.5, Confidence: 0.5}
	if got := e.Weight(); got != 0.25 {
		t.Errorf("expected 0.25, got %f", got)
	}
}

func TestFailure_MaximalSeverity(t *testing.T) {
	e := Failure("lexical", errors.New("boom"))
	if e.Code != CodeDetectorFailure {
		t.Errorf("expected DETECTOR_FAILURE, got %s", e.Code)
	}
	if e.Strength != 1.0 || e.Confidence != 1.0 {
		t.Error("failure evidence must carry maximal strength and confidence")
	}
	if e.Detector != "lexical" {
		t.Errorf("expected detector name preserved, got %q", e.Detector)
	}
}

type stubDetector struct {
	name string
	evs  []Evidence
	err  error
	boom bool
}

func (d *stubDetector) Name() string { return d.name }

func (d *stubDetector) Detect(_ context.Context, _ *Target) ([]Evidence, error) {
	if d.boom {
		panic("detector exploded")
	}
	return d.evs, d.err
}

func TestNewSet_RejectsDuplicates(t *testing.T) {
	_, err := NewSet("s",
		&stubDetector{name: "a"},
		&stubDetector{name: "a"},
	)
	if err == nil {
		t.Fatal("expected error for duplicate detector names")
	}
}

func TestNewSet_RejectsNil(t *testing.T) {
	if _, err := NewSet("s", nil); err == nil {
		t.Fatal("expected error for nil detector")
	}
}

func TestSet_Run_ErrorBecomesFailureEvidence(t *testing.T) {
	set, err := NewSet("s",
		&stubDetector{name: "ok", evs: []Evidence{{Detector: "ok", Code: CodeManipulation, Strength: 0.5, Confidence: 0.5}}},
		&stubDetector{name: "broken", err: errors.New("timeout")},
	)
	if err != nil {
		t.Fatal(err)
	}

	evs := set.Run(context.Background(), &Target{Text: "x"})
	if len(evs) != 2 {
		t.Fatalf("expected 2 evidence entries, got %d", len(evs))
	}

	var sawFailure bool
	for _, e := range evs {
		if e.Code == CodeDetectorFailure && e.Detector == "broken" {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Error("detector error must surface as DETECTOR_FAILURE evidence")
	}
}

func TestSet_Run_PanicBecomesFailureEvidence(t *testing.T) {
	set, err := NewSet("s", &stubDetector{name: "panicky", boom: true})
	if err != nil {
		t.Fatal(err)
	}

	evs := set.Run(context.Background(), &Target{Text: "x"})
	if len(evs) != 1 {
		t.Fatalf("expected 1 evidence entry, got %d", len(evs))
	}
	if evs[0].Code != CodeDetectorFailure {
		t.Errorf("expected DETECTOR_FAILURE, got %s", evs[0].Code)
	}
}

func TestSet_Run_StableOrder(t *testing.T) {
	mk := func(names ...string) *Set {
		ds := make([]Detector, len(names))
		for i, n := range names {
			ds[i] = &stubDetector{name: n, evs: []Evidence{
				{Detector: n, Code: CodeManipulation, Strength: 0.3, Confidence: 0.3},
			}}
		}
		s, err := NewSet("s", ds...)
		if err != nil {
			t.Fatal(err)
		}
		return s
	}

	a := mk("alpha", "beta").Run(context.Background(), &Target{})
	b := mk("beta", "alpha").Run(context.Background(), &Target{})
	if !reflect.DeepEqual(a, b) {
		t.Error("evidence order must not depend on detector registration order")
	}
}

func TestCodes_DistinctSorted(t *testing.T) {
	evs := []Evidence{
		{Code: CodeManipulation},
		{Code: CodeDomination},
		{Code: CodeManipulation},
	}
	got := Codes(evs)
	want := []Code{CodeDomination, CodeManipulation}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Codes = %v, want %v", got, want)
	}
}

func TestHasHardStop(t *testing.T) {
	if HasHardStop([]Evidence{{Code: CodeManipulation}}) {
		t.Error("soft code is not a hard stop")
	}
	if !HasHardStop([]Evidence{{Code: CodeDomination}}) {
		t.Error("DOMINATION must register as hard stop")
	}
	if !HasHardStop([]Evidence{{Code: CodeDetectorFailure}}) {
		t.Error("detector failure must block ALLOW")
	}
}
