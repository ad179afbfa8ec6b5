// Package audit exports every gate verdict as a flat, serializable
// record for the downstream trace layer.
//
// The hard rule, independent of outcome: no raw candidate or repaired
// content ever enters an audit payload. Records carry only content
// lengths and short fingerprints, computed at construction so a caller
// cannot accidentally smuggle text through.
package audit

import (
	"time"

	"github.com/Mindburn-Labs/aegis/pkg/canonicalize"
)

// Record is the flat trace form of one completed check.
type Record struct {
	Stage       string   `json:"stage"`
	CheckID     string   `json:"check_id"`
	CandidateID string   `json:"candidate_id,omitempty"`
	Decision    string   `json:"decision"`
	Codes       []string `json:"codes,omitempty"`

	ReasonCount     int `json:"reason_count"`
	RequiredChanges int `json:"required_changes"`

	DriftScore *float64 `json:"drift_score,omitempty"`

	ContentLength      int    `json:"content_length"`
	ContentFingerprint string `json:"content_fingerprint"`
	// Repaired* are zero/empty when no repair text was produced.
	RepairedLength      int    `json:"repaired_length,omitempty"`
	RepairedFingerprint string `json:"repaired_fingerprint,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// RecordParams is the construction input. The texts are consumed for
// length and fingerprint only and are not retained.
type RecordParams struct {
	Stage        string
	CheckID      string
	CandidateID  string
	Decision     string
	Codes        []string
	ReasonCount  int
	Changes      int
	DriftScore   *float64
	OriginalText string
	RepairedText string
}

// NewRecord builds the flat record, reducing all content to length and
// fingerprint.
func NewRecord(p RecordParams) Record {
	rec := Record{
		Stage:              p.Stage,
		CheckID:            p.CheckID,
		CandidateID:        p.CandidateID,
		Decision:           p.Decision,
		Codes:              p.Codes,
		ReasonCount:        p.ReasonCount,
		RequiredChanges:    p.Changes,
		DriftScore:         p.DriftScore,
		ContentLength:      len(p.OriginalText),
		ContentFingerprint: canonicalize.Fingerprint(p.OriginalText),
		Timestamp:          time.Now().UTC(),
	}
	if p.RepairedText != "" {
		rec.RepairedLength = len(p.RepairedText)
		rec.RepairedFingerprint = canonicalize.Fingerprint(p.RepairedText)
	}
	return rec
}
