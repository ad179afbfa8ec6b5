package detect

import (
	"context"
	"testing"

	"github.com/Mindburn-Labs/aegis/pkg/evidence"
)

func TestCEL_RuleMatches(t *testing.T) {
	d, err := NewCEL([]CELRule{{
		Name:       "pressure_spike",
		Expr:       `"pressure" in pressure && pressure["pressure"] > 0.8`,
		Code:       evidence.CodeManipulation,
		Strength:   0.7,
		Confidence: 0.6,
		Message:    "pressure spike rule matched",
	}})
	if err != nil {
		t.Fatal(err)
	}

	tgt := target("routine update")
	tgt.Pressure = map[string]float64{"pressure": 0.95}
	evs, err := d.Detect(context.Background(), tgt)
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 1 || evs[0].Code != evidence.CodeManipulation {
		t.Fatalf("expected one manipulation hit, got %+v", evs)
	}
	if evs[0].Message != "pressure spike rule matched" {
		t.Errorf("unexpected message %q", evs[0].Message)
	}
}

func TestCEL_RuleNotMatching(t *testing.T) {
	d, err := NewCEL([]CELRule{{
		Name:     "token_flood",
		Expr:     `tokens.size() > 1000`,
		Code:     evidence.CodeManipulation,
		Strength: 0.5, Confidence: 0.5,
	}})
	if err != nil {
		t.Fatal(err)
	}

	evs, err := d.Detect(context.Background(), target("short text"))
	if err != nil {
		t.Fatal(err)
	}
	if len(evs) != 0 {
		t.Errorf("expected no hits, got %+v", evs)
	}
}

func TestCEL_TextRule(t *testing.T) {
	d, err := NewCEL([]CELRule{{
		Name:     "contains_monopolize",
		Expr:     `text.contains("monopolize")`,
		Code:     evidence.CodeDomination,
		Strength: 0.8, Confidence: 0.7,
	}})
	if err != nil {
		t.Fatal(err)
	}

	evs, err := d.Detect(context.Background(), target("Monopolize the distribution channel"))
	if err != nil {
		t.Fatal(err)
	}
	// Rules see the canonical (lowercased) text.
	if len(evs) != 1 {
		t.Fatalf("expected one hit on canonical text, got %+v", evs)
	}
}

func TestCEL_CompileErrorRefused(t *testing.T) {
	_, err := NewCEL([]CELRule{{
		Name: "broken", Expr: `this is not CEL ((`,
		Code: evidence.CodeManipulation, Strength: 0.5, Confidence: 0.5,
	}})
	if err == nil {
		t.Fatal("expected compile error")
	}
}

func TestCEL_UnknownCodeRefused(t *testing.T) {
	_, err := NewCEL([]CELRule{{
		Name: "bad-code", Expr: `true`,
		Code: "INVENTED", Strength: 0.5, Confidence: 0.5,
	}})
	if err == nil {
		t.Fatal("expected unknown code to be refused")
	}
}

func TestCEL_NonBoolResultErrors(t *testing.T) {
	d, err := NewCEL([]CELRule{{
		Name: "not-bool", Expr: `tokens.size()`,
		Code: evidence.CodeManipulation, Strength: 0.5, Confidence: 0.5,
	}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.Detect(context.Background(), target("x")); err == nil {
		t.Fatal("expected error for non-bool rule result")
	}
}

func TestCEL_ErrorFailsClosedThroughSet(t *testing.T) {
	d, err := NewCEL([]CELRule{{
		Name: "not-bool", Expr: `tokens.size()`,
		Code: evidence.CodeManipulation, Strength: 0.5, Confidence: 0.5,
	}})
	if err != nil {
		t.Fatal(err)
	}
	set, err := evidence.NewSet("s", d)
	if err != nil {
		t.Fatal(err)
	}

	evs := set.Run(context.Background(), target("x"))
	if len(evs) != 1 || evs[0].Code != evidence.CodeDetectorFailure {
		t.Fatalf("expected DETECTOR_FAILURE evidence, got %+v", evs)
	}
}
