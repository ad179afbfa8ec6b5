package evidence

import (
	"context"
	"fmt"
	"sort"
)

// Target is the prepared view of one candidate that detectors inspect.
// Text is the original; Normalized and Tokens come from the normalizer,
// so obfuscation has already been collapsed before any detector runs.
// The auxiliary fields are explicitly optional; zero values mean absent.
type Target struct {
	ID         string
	Text       string
	Normalized string
	Tokens     []string
	// Lang is the BCP 47 tag of Text; empty means untagged.
	Lang string

	Rationale    string
	Goals        []string
	Pressure     map[string]float64
	StateSummary map[string]float64
}

// Detector inspects one target and returns zero or more findings.
//
// A detector must never signal "safe" by returning an error: errors and
// panics are converted by the Set into CodeDetectorFailure evidence.
// Detectors are independent and must not hold cross-call state that
// makes detection depend on call order.
type Detector interface {
	Name() string
	Detect(ctx context.Context, t *Target) ([]Evidence, error)
}

// Set is a static, ordered collection of detectors built at startup.
// Ordering is fixed for reproducible audit output only; the merged
// decision must not depend on it.
type Set struct {
	name      string
	detectors []Detector
}

// NewSet builds a named detector set. Detector names must be unique.
func NewSet(name string, detectors ...Detector) (*Set, error) {
	seen := make(map[string]bool, len(detectors))
	for _, d := range detectors {
		if d == nil {
			return nil, fmt.Errorf("set %q: nil detector", name)
		}
		if seen[d.Name()] {
			return nil, fmt.Errorf("set %q: duplicate detector %q", name, d.Name())
		}
		seen[d.Name()] = true
	}
	ds := make([]Detector, len(detectors))
	copy(ds, detectors)
	return &Set{name: name, detectors: ds}, nil
}

// Name returns the set's name.
func (s *Set) Name() string { return s.name }

// Size returns the number of detectors in the set.
func (s *Set) Size() int { return len(s.detectors) }

// Detectors returns the detectors in registration order.
func (s *Set) Detectors() []Detector {
	out := make([]Detector, len(s.detectors))
	copy(out, s.detectors)
	return out
}

// Run executes every detector against the target and returns all
// evidence. Failures (errors or panics) become CodeDetectorFailure
// entries: the caller always gets a complete evidence list, never a
// partial one hidden behind an error.
//
// Output is sorted by (detector, code, span) so that downstream
// consumers see a stable order regardless of map iteration or detector
// registration order.
func (s *Set) Run(ctx context.Context, t *Target) []Evidence {
	var all []Evidence
	for _, d := range s.detectors {
		all = append(all, runOne(ctx, d, t)...)
	}
	sortEvidence(all)
	return all
}

func runOne(ctx context.Context, d Detector, t *Target) (out []Evidence) {
	defer func() {
		if r := recover(); r != nil {
			out = []Evidence{Failure(d.Name(), fmt.Errorf("panic: %v", r))}
		}
	}()

	found, err := d.Detect(ctx, t)
	if err != nil {
		return []Evidence{Failure(d.Name(), err)}
	}
	return found
}

func sortEvidence(evs []Evidence) {
	sort.SliceStable(evs, func(i, j int) bool {
		a, b := evs[i], evs[j]
		if a.Detector != b.Detector {
			return a.Detector < b.Detector
		}
		if a.Code != b.Code {
			return a.Code < b.Code
		}
		as, bs := spanStart(a.Span), spanStart(b.Span)
		if as != bs {
			return as < bs
		}
		return a.Message < b.Message
	})
}

func spanStart(s *Span) int {
	if s == nil {
		return -1
	}
	return s.Start
}

// Codes extracts the distinct violation codes present in the evidence,
// sorted, for audit records.
func Codes(evs []Evidence) []Code {
	seen := make(map[Code]bool)
	var out []Code
	for _, e := range evs {
		if !seen[e.Code] {
			seen[e.Code] = true
			out = append(out, e.Code)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// HasHardStop reports whether any evidence carries a hard-stop code.
// Detector failure counts: a broken detector can never yield ALLOW.
func HasHardStop(evs []Evidence) bool {
	for _, e := range evs {
		if e.Code.IsHardStop() || e.Code == CodeDetectorFailure {
			return true
		}
	}
	return false
}
