// Package repair rewrites reparable candidates by removing the spans
// responsible for soft violation evidence, re-running detection after
// each attempt.
//
// Repair is bounded and fail-closed: exhausted attempts, a no-op
// rewrite, or a hard-stop code surfacing mid-repair all terminate in
// rejection. Every attempt, successful or not, lands in the repair
// log with enough detail to reconstruct the change without retaining
// the text itself.
package repair

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Mindburn-Labs/aegis/pkg/canonicalize"
	"github.com/Mindburn-Labs/aegis/pkg/evidence"
	"github.com/Mindburn-Labs/aegis/pkg/merge"
	"github.com/Mindburn-Labs/aegis/pkg/normalize"
)

// AttemptOutcome classifies one repair attempt.
type AttemptOutcome string

const (
	OutcomeReduced      AttemptOutcome = "REDUCED"      // score fell below the repair threshold
	OutcomeInsufficient AttemptOutcome = "INSUFFICIENT" // rewrite applied, score still too high
	OutcomeNoOp         AttemptOutcome = "NO_OP"        // rewrite changed nothing
	OutcomeHardStop     AttemptOutcome = "HARD_STOP"    // hard-stop code appeared after rewrite
)

// Attempt is one entry in the repair log. Fingerprints and lengths
// stand in for the text so the log can travel into audit payloads.
type Attempt struct {
	Index             int            `json:"index"`
	RemovedSpans      []evidence.Span `json:"removed_spans"`
	BeforeLength      int            `json:"before_length"`
	AfterLength       int            `json:"after_length"`
	BeforeFingerprint string         `json:"before_fingerprint"`
	AfterFingerprint  string         `json:"after_fingerprint"`
	Score             float64        `json:"score"`
	Outcome           AttemptOutcome `json:"outcome"`
}

// Result is the terminal state of a repair run.
type Result struct {
	Success  bool
	Repaired string
	Evidence []evidence.Evidence // re-detection evidence for the final text
	Log      []Attempt
	Reason   string
}

// Engine performs bounded automatic repair against a detector set.
// Stateless across calls; safe for concurrent use.
type Engine struct {
	set         *evidence.Set
	maxAttempts int
	tauRepair   float64
}

// New builds a repair engine. maxAttempts is clamped to [0,5]; zero
// means repair is disabled and every run fails immediately.
func New(set *evidence.Set, maxAttempts int, tauRepair float64) *Engine {
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	if maxAttempts > 5 {
		maxAttempts = 5
	}
	if tauRepair <= 0 || tauRepair > 1 {
		tauRepair = 0.25
	}
	return &Engine{set: set, maxAttempts: maxAttempts, tauRepair: tauRepair}
}

// Repair attempts to neutralize the soft evidence on the target. The
// passed evidence must be the detection output for target.Normalized.
func (e *Engine) Repair(ctx context.Context, target *evidence.Target, evs []evidence.Evidence) Result {
	if e.maxAttempts == 0 {
		return Result{Reason: "repair disabled (max_repairs = 0)"}
	}

	text := target.Normalized
	current := evs

	var log []Attempt
	for i := 1; i <= e.maxAttempts; i++ {
		spans := softSpans(current, len(text))
		rewritten := excise(text, spans)

		attempt := Attempt{
			Index:             i,
			RemovedSpans:      spans,
			BeforeLength:      len(text),
			AfterLength:       len(rewritten),
			BeforeFingerprint: canonicalize.Fingerprint(text),
			AfterFingerprint:  canonicalize.Fingerprint(rewritten),
		}

		if rewritten == text {
			attempt.Outcome = OutcomeNoOp
			log = append(log, attempt)
			return Result{
				Log:    log,
				Reason: fmt.Sprintf("repair attempt %d was a no-op", i),
			}
		}

		redetected := e.set.Run(ctx, retarget(target, rewritten))
		score := merge.Aggregate(redetected)
		attempt.Score = score

		if evidence.HasHardStop(redetected) {
			attempt.Outcome = OutcomeHardStop
			log = append(log, attempt)
			return Result{
				Log:    log,
				Reason: fmt.Sprintf("hard-stop violation surfaced during repair attempt %d", i),
			}
		}

		if score < e.tauRepair {
			attempt.Outcome = OutcomeReduced
			log = append(log, attempt)
			return Result{
				Success:  true,
				Repaired: rewritten,
				Evidence: redetected,
				Log:      log,
			}
		}

		attempt.Outcome = OutcomeInsufficient
		log = append(log, attempt)
		// Re-detected spans index into the canonical form of the rewrite;
		// carry that form forward so the next excision cuts the right bytes.
		text = normalize.Canonical(rewritten)
		current = redetected
	}

	return Result{
		Log:    log,
		Reason: fmt.Sprintf("repair attempts exhausted (%d) with score still above threshold", e.maxAttempts),
	}
}

// retarget rebuilds a detection target for rewritten text, carrying the
// original auxiliary context forward unchanged.
func retarget(t *evidence.Target, rewritten string) *evidence.Target {
	canonical := normalize.Canonical(rewritten)
	return &evidence.Target{
		ID:           t.ID,
		Text:         rewritten,
		Normalized:   canonical,
		Tokens:       normalize.TokensCanonical(canonical),
		Lang:         t.Lang,
		Rationale:    t.Rationale,
		Goals:        t.Goals,
		Pressure:     t.Pressure,
		StateSummary: t.StateSummary,
	}
}

// softSpans collects the valid spans behind non-hard-stop evidence,
// merged and sorted. Evidence without spans contributes nothing; if no
// evidence carries spans the rewrite is a no-op and repair terminates.
func softSpans(evs []evidence.Evidence, textLen int) []evidence.Span {
	var spans []evidence.Span
	for _, ev := range evs {
		if ev.Code.IsHardStop() || ev.Code == evidence.CodeDetectorFailure {
			continue
		}
		if ev.Span != nil && ev.Span.Valid(textLen) {
			spans = append(spans, *ev.Span)
		}
	}
	return mergeSpans(spans)
}

// mergeSpans sorts and coalesces overlapping spans.
func mergeSpans(spans []evidence.Span) []evidence.Span {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End < spans[j].End
	})
	out := []evidence.Span{spans[0]}
	for _, s := range spans[1:] {
		last := &out[len(out)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// excise removes the given (merged, sorted) spans from text and
// squeezes the seams.
func excise(text string, spans []evidence.Span) string {
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	prev := 0
	for _, s := range spans {
		if s.Start > prev {
			b.WriteString(text[prev:s.Start])
		}
		prev = s.End
	}
	if prev < len(text) {
		b.WriteString(text[prev:])
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
