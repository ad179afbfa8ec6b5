// Package normalize canonicalizes candidate text before detection.
//
// Detection operates on the canonical form only: lookalike characters are
// folded to their Latin counterparts, obfuscating separators injected
// inside words are collapsed, diacritics are stripped, and the result is
// case-folded NFKC. A candidate that spells "d-o-m-i-n-a-t-e" or uses
// Cyrillic homoglyphs matches the same lexicon entries as plain text.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// confusables maps common lookalike characters to canonical Latin forms.
// The table covers the Cyrillic and Greek homoglyphs seen in obfuscated
// submissions; fullwidth forms are already handled by NFKC.
var confusables = map[rune]rune{
	// Cyrillic
	'а': 'a', 'е': 'e', 'о': 'o', 'р': 'p', 'с': 'c', 'х': 'x',
	'у': 'y', 'і': 'i', 'ѕ': 's', 'ј': 'j', 'һ': 'h', 'к': 'k',
	'м': 'm', 'т': 't', 'в': 'b', 'н': 'h',
	'А': 'a', 'Е': 'e', 'О': 'o', 'Р': 'p', 'С': 'c', 'Х': 'x',
	'У': 'y', 'І': 'i', 'Ѕ': 's', 'Ј': 'j', 'К': 'k', 'М': 'm',
	'Т': 't', 'В': 'b', 'Н': 'h',
	// Greek
	'α': 'a', 'ο': 'o', 'ν': 'v', 'ι': 'i', 'ρ': 'p', 'τ': 't',
	'υ': 'u', 'κ': 'k', 'η': 'n',
	'Α': 'a', 'Β': 'b', 'Ε': 'e', 'Ζ': 'z', 'Η': 'h', 'Ι': 'i',
	'Κ': 'k', 'Μ': 'm', 'Ν': 'n', 'Ο': 'o', 'Ρ': 'p', 'Τ': 't',
	'Υ': 'y', 'Χ': 'x',
	// Misc lookalikes
	'¡': 'i', 'ø': 'o', 'Ø': 'o', '€': 'e', '£': 'l',
}

// leet digit substitutions apply next to a letter, so legitimate
// numbers pass through untouched.
var leetDigits = map[rune]rune{
	'0': 'o', '1': 'l', '3': 'e', '4': 'a', '5': 's', '7': 't',
}

// leet punctuation substitutions apply only between letters; at word
// edges these characters are ordinary punctuation ("power!", "$5").
var leetPunct = map[rune]rune{
	'@': 'a', '$': 's', '!': 'i',
}

// zero-width and joiner characters are dropped entirely.
var zeroWidth = runes.In(&unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x200B, Hi: 0x200D, Stride: 1}, // ZWSP, ZWNJ, ZWJ
		{Lo: 0x2060, Hi: 0x2060, Stride: 1}, // word joiner
		{Lo: 0xFEFF, Hi: 0xFEFF, Stride: 1}, // BOM
	},
})

// separators are the characters attackers inject between letters of a
// flagged term. They are only collapsed when they sit between single
// letters; normal word boundaries survive.
func isSeparator(r rune) bool {
	switch r {
	case '-', '_', '.', '*', '+', '~', '/', '\\', '|':
		return true
	}
	return unicode.IsSpace(r)
}

var (
	foldChain = transform.Chain(
		norm.NFKD,
		runes.Remove(zeroWidth),
		runes.Remove(runes.In(unicode.Mn)), // strip diacritics
		norm.NFC,
	)
	lower = cases.Lower(language.Und)
)

// Canonical returns the canonical detection form of s: NFKC-compatible
// folding, zero-width removal, diacritic stripping, homoglyph folding,
// lowercasing, separator collapse, and whitespace squeezing.
//
// Canonical is deterministic and idempotent: Canonical(Canonical(s)) ==
// Canonical(s).
func Canonical(s string) string {
	folded, _, err := transform.String(foldChain, s)
	if err != nil {
		// Fold failure must not widen the gate: fall back to the raw
		// string so lexical detectors still see something to match.
		folded = s
	}
	folded = lower.String(folded)

	rs := []rune(folded)
	var b strings.Builder
	b.Grow(len(folded))
	for i, r := range rs {
		// Apostrophes vanish so "can't" and "cant" share one canonical
		// form.
		if r == '\'' || r == '’' || r == '`' {
			continue
		}
		if c, ok := confusables[r]; ok {
			r = c
		} else if c, ok := leetDigits[r]; ok && hasLetterNeighbor(rs, i) {
			r = c
		} else if c, ok := leetPunct[r]; ok && betweenLetters(rs, i) {
			r = c
		}
		b.WriteRune(r)
	}

	collapsed := collapseInsertions(b.String())
	return squeezeSpaces(collapsed)
}

func hasLetterNeighbor(rs []rune, i int) bool {
	if i > 0 && unicode.IsLetter(rs[i-1]) {
		return true
	}
	if i+1 < len(rs) && unicode.IsLetter(rs[i+1]) {
		return true
	}
	return false
}

func betweenLetters(rs []rune, i int) bool {
	return i > 0 && i+1 < len(rs) &&
		unicode.IsLetter(rs[i-1]) && unicode.IsLetter(rs[i+1])
}

// collapseInsertions removes separators injected between single letters:
// "d-o-m-i-n-a-t-e" and "d o m i n a t e" become "dominate". A run only
// collapses when at least three single-letter segments alternate with
// separators, so ordinary short words ("a b") are left alone.
func collapseInsertions(s string) string {
	rs := []rune(s)
	var out []rune
	i := 0
	for i < len(rs) {
		if !unicode.IsLetter(rs[i]) {
			out = append(out, rs[i])
			i++
			continue
		}
		// Candidate run: letter (sep letter)+ with single-letter segments.
		j := i
		letters := []rune{rs[j]}
		j++
		for j+1 < len(rs) && isSeparator(rs[j]) && unicode.IsLetter(rs[j+1]) {
			// The letter after the separator must itself be a single
			// letter segment (followed by separator, end, or non-letter).
			if j+2 < len(rs) && unicode.IsLetter(rs[j+2]) {
				break
			}
			letters = append(letters, rs[j+1])
			j += 2
		}
		if len(letters) >= 3 {
			out = append(out, letters...)
			i = j
			continue
		}
		out = append(out, rs[i])
		i++
	}
	return string(out)
}

func squeezeSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Tokens splits canonical text into lowercase word tokens. Non-letter,
// non-digit runes are boundaries.
func Tokens(s string) []string {
	return strings.FieldsFunc(Canonical(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// TokensCanonical tokenizes text that is already in canonical form.
func TokensCanonical(canonical string) []string {
	return strings.FieldsFunc(canonical, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
