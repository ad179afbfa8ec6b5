// Package evidence defines the shared violation vocabulary for the gate:
// the cross-detector code taxonomy, the Evidence record every detector
// emits, and the fail-closed detector contract.
package evidence

import "fmt"

// Code is a short, stable taxonomy key shared by all detectors.
// Codes identify the class of harm, never the detector that found it.
type Code string

const (
	// CodeCatastrophic covers irreversible or catastrophic harm.
	CodeCatastrophic Code = "CATASTROPHIC_HARM"
	// CodeDomination covers domination and loss-of-autonomy patterns.
	CodeDomination Code = "DOMINATION"
	// CodeManipulation covers non-consensual manipulation.
	CodeManipulation Code = "MANIPULATION"
	// CodeLockIn covers lock-in / no-exit designs.
	CodeLockIn Code = "LOCK_IN"
	// CodeExclusion covers exclusion and accessibility harm.
	CodeExclusion Code = "EXCLUSION"
	// CodeDetectorFailure is synthesized when a detector errors or panics.
	// A broken detector is evidence, never silence.
	CodeDetectorFailure Code = "DETECTOR_FAILURE"
)

// hardStops force REJECT regardless of strength, confidence, repair
// settings, or the rhetorical register of the candidate.
var hardStops = map[Code]bool{
	CodeCatastrophic: true,
	CodeDomination:   true,
}

// IsHardStop reports whether the code forces an immediate REJECT.
func (c Code) IsHardStop() bool { return hardStops[c] }

// Known reports whether the code belongs to the published taxonomy.
func (c Code) Known() bool {
	switch c {
	case CodeCatastrophic, CodeDomination, CodeManipulation, CodeLockIn,
		CodeExclusion, CodeDetectorFailure:
		return true
	}
	return false
}

// Span locates the offending text inside the normalized candidate,
// as byte offsets. Repair uses spans to target rewrites.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Valid reports whether the span is well-formed for a text of length n.
func (s Span) Valid(n int) bool {
	return s.Start >= 0 && s.End > s.Start && s.End <= n
}

// Evidence is one detector's finding about one candidate.
//
// Strength measures pattern-match intensity; Confidence measures
// true-positive certainty. The two are independent: a weak fuzzy match
// from a precise detector carries low strength and high confidence.
// Evidence is never deduplicated: every finding is retained for audit.
type Evidence struct {
	Detector   string  `json:"detector"`
	Code       Code    `json:"code"`
	Message    string  `json:"message"`
	Strength   float64 `json:"strength"`
	Confidence float64 `json:"confidence"`
	Span       *Span   `json:"span,omitempty"`
}

// Weight is the soft-aggregation contribution, strength x confidence,
// clamped to [0,1].
func (e Evidence) Weight() float64 {
	w := clamp01(e.Strength) * clamp01(e.Confidence)
	return w
}

// Failure builds the synthetic maximal-severity evidence for a broken
// detector. Message carries the failure, not the candidate content.
func Failure(detector string, cause error) Evidence {
	msg := "detector failed"
	if cause != nil {
		msg = fmt.Sprintf("detector failed: %v", cause)
	}
	return Evidence{
		Detector:   detector,
		Code:       CodeDetectorFailure,
		Message:    msg,
		Strength:   1.0,
		Confidence: 1.0,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
