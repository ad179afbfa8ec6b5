// Package detect provides the concrete violation detectors that ship
// with the gate: lexical, heuristic, similarity-based, CEL-rule and
// WASM-sandboxed. All of them implement evidence.Detector and operate
// on normalized text, so obfuscation is handled before they run.
package detect

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/aegis/pkg/evidence"
	"github.com/Mindburn-Labs/aegis/pkg/normalize"
)

// lexiconCompat is the semver range of lexicon file formats this build
// understands. Files outside the range are refused at load time.
const lexiconCompat = ">= 1.0.0, < 2.0.0"

// Term is one lexicon entry. Phrases are stored as written and matched
// in canonical form.
type Term struct {
	Phrase     string  `yaml:"phrase"`
	Code       string  `yaml:"code"`
	Strength   float64 `yaml:"strength"`
	Confidence float64 `yaml:"confidence"`
	Lang       string  `yaml:"lang,omitempty"`
}

// Lexicon is a versioned, multi-language collection of flagged phrases.
type Lexicon struct {
	Version   string   `yaml:"version"`
	Languages []string `yaml:"languages,omitempty"`
	Terms     []Term   `yaml:"terms"`
}

// LoadLexicon reads and validates a lexicon YAML file. Version
// incompatibility and malformed entries are load errors: a lexicon
// that cannot be trusted is not silently partially applied.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load lexicon: %w", err)
	}
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return &lex, nil
}

// Validate checks version compatibility and entry sanity.
func (l *Lexicon) Validate() error {
	v, err := semver.NewVersion(l.Version)
	if err != nil {
		return fmt.Errorf("lexicon version %q: %w", l.Version, err)
	}
	compat, err := semver.NewConstraint(lexiconCompat)
	if err != nil {
		return fmt.Errorf("lexicon constraint: %w", err)
	}
	if !compat.Check(v) {
		return fmt.Errorf("lexicon version %s outside supported range %s", l.Version, lexiconCompat)
	}
	for i, t := range l.Terms {
		if strings.TrimSpace(t.Phrase) == "" {
			return fmt.Errorf("lexicon term %d: empty phrase", i)
		}
		if !evidence.Code(t.Code).Known() {
			return fmt.Errorf("lexicon term %d: unknown code %q", i, t.Code)
		}
		if t.Strength < 0 || t.Strength > 1 || t.Confidence < 0 || t.Confidence > 1 {
			return fmt.Errorf("lexicon term %d: strength/confidence outside [0,1]", i)
		}
		if t.Lang != "" {
			if _, err := language.Parse(t.Lang); err != nil {
				return fmt.Errorf("lexicon term %d: bad language tag %q: %w", i, t.Lang, err)
			}
		}
	}
	return nil
}

// Tags parses the declared lexicon languages into BCP 47 tags.
// Unparseable entries are skipped.
func (l *Lexicon) Tags() []language.Tag {
	var tags []language.Tag
	for _, s := range l.Languages {
		if tag, err := language.Parse(s); err == nil {
			tags = append(tags, tag)
		}
	}
	return tags
}

// DefaultLexicon is the built-in English lexicon covering the core
// taxonomy. Deployments layer their own files on top of it.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Version:   "1.0.0",
		Languages: []string{"en"},
		Terms: []Term{
			{Phrase: "absolute control", Code: "DOMINATION", Strength: 0.95, Confidence: 0.9},
			{Phrase: "total control over", Code: "DOMINATION", Strength: 0.9, Confidence: 0.85},
			{Phrase: "dominate", Code: "DOMINATION", Strength: 0.8, Confidence: 0.75},
			{Phrase: "subjugate", Code: "DOMINATION", Strength: 0.9, Confidence: 0.85},
			{Phrase: "strip their autonomy", Code: "DOMINATION", Strength: 0.9, Confidence: 0.85},
			{Phrase: "irreversible damage", Code: "CATASTROPHIC_HARM", Strength: 0.85, Confidence: 0.8},
			{Phrase: "cannot be undone", Code: "CATASTROPHIC_HARM", Strength: 0.7, Confidence: 0.6},
			{Phrase: "catastrophic", Code: "CATASTROPHIC_HARM", Strength: 0.6, Confidence: 0.5},
			{Phrase: "without their knowledge", Code: "MANIPULATION", Strength: 0.8, Confidence: 0.75},
			{Phrase: "without consent", Code: "MANIPULATION", Strength: 0.85, Confidence: 0.8},
			{Phrase: "trick users into", Code: "MANIPULATION", Strength: 0.85, Confidence: 0.8},
			{Phrase: "dark pattern", Code: "MANIPULATION", Strength: 0.75, Confidence: 0.7},
			{Phrase: "cant function without", Code: "LOCK_IN", Strength: 0.75, Confidence: 0.7},
			{Phrase: "cannot function without", Code: "LOCK_IN", Strength: 0.75, Confidence: 0.7},
			{Phrase: "no way to leave", Code: "LOCK_IN", Strength: 0.8, Confidence: 0.75},
			{Phrase: "impossible to switch", Code: "LOCK_IN", Strength: 0.8, Confidence: 0.75},
			{Phrase: "make them dependent", Code: "LOCK_IN", Strength: 0.65, Confidence: 0.6},
			{Phrase: "exclude disabled users", Code: "EXCLUSION", Strength: 0.85, Confidence: 0.8},
			{Phrase: "only for the privileged", Code: "EXCLUSION", Strength: 0.7, Confidence: 0.65},
			{Phrase: "deny access to", Code: "EXCLUSION", Strength: 0.5, Confidence: 0.45},
		},
	}
}

// compiledTerm is a lexicon entry with its canonical match form.
type compiledTerm struct {
	canonical  string
	code       evidence.Code
	strength   float64
	confidence float64
	lang       language.Tag // Und for terms that apply in every language
}

// Lexical matches canonical lexicon phrases against canonical candidate
// text and emits one evidence entry per occurrence, with the span.
//
// Terms tagged with a language only apply when the target's language
// tag resolves to that language; untagged terms apply everywhere. An
// absent or unknown target tag falls back to the lexicon's first
// declared language, never to "match nothing".
type Lexical struct {
	terms     []compiledTerm
	languages []language.Tag
	version   string
}

// NewLexical compiles a lexicon into a detector.
func NewLexical(lex *Lexicon) (*Lexical, error) {
	if lex == nil {
		lex = DefaultLexicon()
	}
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	terms := make([]compiledTerm, 0, len(lex.Terms))
	for _, t := range lex.Terms {
		ct := compiledTerm{
			canonical:  normalize.Canonical(t.Phrase),
			code:       evidence.Code(t.Code),
			strength:   t.Strength,
			confidence: t.Confidence,
		}
		if t.Lang != "" {
			// Validated above; a parse failure cannot reach this point.
			ct.lang, _ = language.Parse(t.Lang)
		}
		terms = append(terms, ct)
	}
	langs := lex.Tags()
	if len(langs) == 0 {
		langs = termLanguages(terms)
	}
	return &Lexical{terms: terms, languages: langs, version: lex.Version}, nil
}

// termLanguages derives the supported language list from tagged terms
// when the lexicon declares none, preserving first-seen order.
func termLanguages(terms []compiledTerm) []language.Tag {
	seen := make(map[language.Tag]bool)
	var tags []language.Tag
	for _, t := range terms {
		if t.lang == language.Und || seen[t.lang] {
			continue
		}
		seen[t.lang] = true
		tags = append(tags, t.lang)
	}
	return tags
}

// Name implements evidence.Detector.
func (d *Lexical) Name() string { return "lexical" }

// Version returns the loaded lexicon version.
func (d *Lexical) Version() string { return d.version }

// Detect implements evidence.Detector.
func (d *Lexical) Detect(_ context.Context, t *evidence.Target) ([]evidence.Evidence, error) {
	if t == nil {
		return nil, fmt.Errorf("nil target")
	}
	chosen := normalize.MatchLexicon(d.languages, t.Lang)
	chosenBase, _ := chosen.Base()
	var out []evidence.Evidence
	for _, term := range d.terms {
		if term.lang != language.Und {
			if base, _ := term.lang.Base(); base != chosenBase {
				continue
			}
		}
		for _, span := range occurrences(t.Normalized, term.canonical) {
			span := span
			out = append(out, evidence.Evidence{
				Detector:   d.Name(),
				Code:       term.code,
				Message:    fmt.Sprintf("lexicon phrase matched (%s)", term.code),
				Strength:   term.strength,
				Confidence: term.confidence,
				Span:       &span,
			})
		}
	}
	return out, nil
}

// occurrences finds all non-overlapping matches of phrase in text.
func occurrences(text, phrase string) []evidence.Span {
	if phrase == "" {
		return nil
	}
	var spans []evidence.Span
	offset := 0
	for {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return spans
		}
		start := offset + i
		spans = append(spans, evidence.Span{Start: start, End: start + len(phrase)})
		offset = start + len(phrase)
	}
}
