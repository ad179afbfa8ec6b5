package normalize

import (
	"reflect"
	"testing"
)

func TestCanonical_Lowercases(t *testing.T) {
	got := Canonical("DOMINATE The Market")
	if got != "dominate the market" {
		t.Errorf("expected lowercased text, got %q", got)
	}
}

func TestCanonical_CyrillicHomoglyphs(t *testing.T) {
	// "dominate" with Cyrillic о, а, е.
	got := Canonical("dоminаtе")
	if got != "dominate" {
		t.Errorf("expected homoglyphs folded, got %q", got)
	}
}

func TestCanonical_ZeroWidthRemoved(t *testing.T) {
	got := Canonical("dom​inate")
	if got != "dominate" {
		t.Errorf("expected zero-width space removed, got %q", got)
	}
}

func TestCanonical_DiacriticsStripped(t *testing.T) {
	got := Canonical("dömïnàté")
	if got != "dominate" {
		t.Errorf("expected diacritics stripped, got %q", got)
	}
}

func TestCanonical_LeetInsideWords(t *testing.T) {
	got := Canonical("d0minat3")
	if got != "dominate" {
		t.Errorf("expected leet folded, got %q", got)
	}
}

func TestCanonical_NumbersSurvive(t *testing.T) {
	// Digits with no letter neighbours are real numbers, not leet.
	got := Canonical("allocate 100 units")
	if got != "allocate 100 units" {
		t.Errorf("expected numbers untouched, got %q", got)
	}
}

func TestCanonical_SeparatorInsertions(t *testing.T) {
	cases := map[string]string{
		"d-o-m-i-n-a-t-e": "dominate",
		"d o m i n a t e": "dominate",
		"d.o.m.i.n.a.t.e": "dominate",
	}
	for in, want := range cases {
		if got := Canonical(in); got != want {
			t.Errorf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCanonical_ShortRunsNotCollapsed(t *testing.T) {
	// Two single letters are a legitimate phrase, not an insertion run.
	got := Canonical("plan b")
	if got != "plan b" {
		t.Errorf("expected short run preserved, got %q", got)
	}
}

func TestCanonical_ApostrophesDropped(t *testing.T) {
	if got := Canonical("can't"); got != "cant" {
		t.Errorf("expected apostrophe dropped, got %q", got)
	}
	if got := Canonical("can’t"); got != "cant" {
		t.Errorf("expected curly apostrophe dropped, got %q", got)
	}
}

func TestCanonical_WhitespaceSqueezed(t *testing.T) {
	got := Canonical("  seize   all \t power \n")
	if got != "seize all power" {
		t.Errorf("expected whitespace squeezed, got %q", got)
	}
}

func TestCanonical_Idempotent(t *testing.T) {
	inputs := []string{
		"D-o-m-i-n-a-t-e everyone",
		"tаke  absolute   c0ntrol",
		"plain benign text",
		"",
	}
	for _, in := range inputs {
		once := Canonical(in)
		twice := Canonical(once)
		if once != twice {
			t.Errorf("Canonical not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestCanonical_Deterministic(t *testing.T) {
	in := "sub-j-u-g-a-t-e the рopulation"
	first := Canonical(in)
	for i := 0; i < 10; i++ {
		if got := Canonical(in); got != first {
			t.Fatalf("Canonical not deterministic: %q vs %q", got, first)
		}
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("Seize, ALL power!")
	want := []string{"seize", "all", "power"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tokens = %v, want %v", got, want)
	}
}

func TestCanonical_PunctuationLeetInteriorOnly(t *testing.T) {
	if got := Canonical("m@nipulate"); got != "manipulate" {
		t.Errorf("expected interior @ folded, got %q", got)
	}
	// Trailing punctuation is not leet.
	if got := Canonical("stop!"); got != "stop!" {
		t.Errorf("expected trailing ! preserved, got %q", got)
	}
}

func TestTokensCanonical(t *testing.T) {
	got := TokensCanonical("dominate the market")
	want := []string{"dominate", "the", "market"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("TokensCanonical = %v, want %v", got, want)
	}
}

func TestCanonical_EmptyInput(t *testing.T) {
	if got := Canonical(""); got != "" {
		t.Errorf("expected empty canonical form, got %q", got)
	}
	if got := Tokens(""); len(got) != 0 {
		t.Errorf("expected no tokens, got %v", got)
	}
}
