package gate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/aegis/pkg/audit"
	"github.com/Mindburn-Labs/aegis/pkg/drift"
	"github.com/Mindburn-Labs/aegis/pkg/evidence"
	"github.com/Mindburn-Labs/aegis/pkg/merge"
	"github.com/Mindburn-Labs/aegis/pkg/repair"
)

// Recorder receives the flat audit record of every completed check.
// Implementations must not block the decision path for long; the record
// already excludes all raw content.
type Recorder interface {
	Record(ctx context.Context, rec audit.Record) error
}

// MetricsHook mirrors check outcomes into a metrics backend.
type MetricsHook interface {
	ObserveCheck(ctx context.Context, stage string, decision string, elapsed time.Duration)
}

// Gate is the two-stage policy gate. It is synchronous, stateless
// across calls except for Statistics, and re-entrant: one instance is
// designed to be shared by concurrent callers.
type Gate struct {
	cfg      Config
	full     *evidence.Set
	intent   *evidence.Set
	merger   *merge.Merger
	repairer *repair.Engine
	drifter  *drift.Scorer
	stats    *Statistics
	logger   *slog.Logger
	recorder Recorder
	metrics  MetricsHook
}

// Option configures optional collaborators.
type Option func(*Gate)

// WithIntentSet installs the reduced detector set for the intention
// stage. Without it, stage 1 runs the full set.
func WithIntentSet(set *evidence.Set) Option {
	return func(g *Gate) {
		if set != nil {
			g.intent = set
		}
	}
}

// WithRecorder installs the audit recorder.
func WithRecorder(r Recorder) Option {
	return func(g *Gate) { g.recorder = r }
}

// WithMetrics installs the metrics hook.
func WithMetrics(m MetricsHook) Option {
	return func(g *Gate) { g.metrics = m }
}

// WithSimilarity overrides the drift similarity measurement.
func WithSimilarity(sim drift.Similarity) Option {
	return func(g *Gate) { g.drifter = drift.New(sim) }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// New constructs a gate over the given full detector set. The config is
// normalized once here and fixed for the instance's lifetime.
func New(cfg Config, full *evidence.Set, opts ...Option) (*Gate, error) {
	if full == nil || full.Size() == 0 {
		return nil, fmt.Errorf("gate: detector set is required")
	}
	cfg = cfg.Normalize()
	g := &Gate{
		cfg:      cfg,
		full:     full,
		intent:   full,
		merger:   merge.New(cfg.TauReject, cfg.TauRepair),
		repairer: repair.New(full, cfg.MaxRepairs, cfg.TauRepair),
		drifter:  drift.New(nil),
		stats:    &Statistics{},
		logger:   slog.Default().With("component", "gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Config returns the normalized policy in effect.
func (g *Gate) Config() Config { return g.cfg }

// Statistics returns the live counters.
func (g *Gate) Statistics() *Statistics { return g.stats }

// Check runs the full action-stage pipeline on one candidate and fully
// resolves a Decision before returning. Any internal panic degrades to
// REJECT: a broken gate refuses everything, it never allows anything.
func (g *Gate) Check(ctx context.Context, c Candidate) (res Result) {
	start := time.Now()
	checkID := uuid.New().String()

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("check panicked, failing closed",
				"check_id", checkID, "candidate_id", c.ID, "panic", fmt.Sprint(r))
			res = Result{
				CandidateID: c.ID,
				CheckID:     checkID,
				Decision:    DecisionReject,
				Explanation: fmt.Sprintf("internal gate failure: %v", r),
			}
		}
		g.finish(ctx, StageAction, c, res, start)
	}()

	res = g.evaluate(ctx, checkID, c)
	return res
}

// CheckBatch evaluates candidates independently. Results are positionally
// aligned with the input and identical to issuing the same candidates
// individually in any order; no candidate's evaluation observes another's.
func (g *Gate) CheckBatch(ctx context.Context, cs []Candidate) []Result {
	out := make([]Result, len(cs))
	for i, c := range cs {
		out[i] = g.Check(ctx, c)
	}
	return out
}

func (g *Gate) evaluate(ctx context.Context, checkID string, c Candidate) Result {
	target := c.target()
	evs := g.full.Run(ctx, target)
	g.countFailures(evs)

	outcome := g.merger.Merge(evs)

	switch outcome.Kind {
	case merge.KindAllow:
		return Result{
			CandidateID: c.ID,
			CheckID:     checkID,
			Decision:    DecisionAllow,
			Evidence:    evs,
		}

	case merge.KindReject:
		return Result{
			CandidateID: c.ID,
			CheckID:     checkID,
			Decision:    DecisionReject,
			Evidence:    evs,
			Explanation: outcome.Reason,
		}
	}

	// Reparable: bounded rewrite loop, then the drift check.
	rres := g.repairer.Repair(ctx, target, evs)
	g.stats.repairAttempts.Add(int64(len(rres.Log)))

	if !rres.Success {
		return Result{
			CandidateID: c.ID,
			CheckID:     checkID,
			Decision:    DecisionReject,
			Evidence:    evs,
			RepairLog:   rres.Log,
			Explanation: fmt.Sprintf("repair failed: %s", rres.Reason),
		}
	}
	g.stats.repairSuccesses.Add(1)

	d := g.driftFor(c, rres.Repaired)
	base := Result{
		CandidateID:  c.ID,
		CheckID:      checkID,
		Decision:     DecisionAllowWithRepair,
		Evidence:     evs,
		Repaired:     true,
		RepairedText: rres.Repaired,
		RepairLog:    rres.Log,
		DriftScore:   &d,
	}

	switch {
	case d >= g.cfg.TauDriftReject:
		base.Decision = DecisionReject
		base.Repaired = false
		base.RepairedText = ""
		base.Explanation = fmt.Sprintf("repair drifted too far from the stated goal (drift %.3f >= %.3f)", d, g.cfg.TauDriftReject)
	case d >= g.cfg.TauDriftEscalate:
		if g.cfg.StrictNoEscalate {
			base.Decision = DecisionReject
			base.Repaired = false
			base.RepairedText = ""
			base.Explanation = fmt.Sprintf("repair drift %.3f requires review; strict mode rejects instead of escalating", d)
		} else {
			base.Decision = DecisionEscalate
			base.Explanation = fmt.Sprintf("repair drift %.3f in review band [%.3f, %.3f)", d, g.cfg.TauDriftEscalate, g.cfg.TauDriftReject)
		}
	}
	return base
}

// driftFor measures against the stated goals when present, otherwise
// against the original text.
func (g *Gate) driftFor(c Candidate, repaired string) float64 {
	if len(c.Goals) > 0 {
		return g.drifter.DistanceFromGoals(c.Goals, repaired)
	}
	return g.drifter.Distance(c.Text, repaired)
}

func (g *Gate) countFailures(evs []evidence.Evidence) {
	for _, e := range evs {
		if e.Code == evidence.CodeDetectorFailure {
			g.stats.detectorFailures.Add(1)
		}
	}
}

// finish updates statistics, metrics and the audit trail for one
// completed check. Audit problems are logged, never propagated into the
// decision.
func (g *Gate) finish(ctx context.Context, stage string, c Candidate, res Result, start time.Time) {
	if stage == StageIntention {
		g.stats.intentChecks.Add(1)
	} else {
		g.stats.checks.Add(1)
	}
	g.stats.recordDecision(res.Decision)

	elapsed := time.Since(start)
	if g.metrics != nil {
		g.metrics.ObserveCheck(ctx, stage, string(res.Decision), elapsed)
	}
	if g.recorder != nil {
		rec := audit.NewRecord(audit.RecordParams{
			Stage:        stage,
			CheckID:      res.CheckID,
			CandidateID:  c.ID,
			Decision:     string(res.Decision),
			Codes:        codeStrings(res.Codes()),
			ReasonCount:  reasonCount(res),
			Changes:      len(res.RepairLog),
			DriftScore:   res.DriftScore,
			OriginalText: c.Text,
			RepairedText: res.RepairedText,
		})
		if err := g.recorder.Record(ctx, rec); err != nil {
			g.logger.Error("audit record failed", "check_id", res.CheckID, "error", err)
		}
	}

	g.logger.Info("check complete",
		"stage", stage,
		"check_id", res.CheckID,
		"candidate_id", c.ID,
		"decision", res.Decision,
		"evidence", len(res.Evidence),
		"repair_attempts", len(res.RepairLog),
		"elapsed", elapsed,
	)
}

func codeStrings(codes []evidence.Code) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}

func reasonCount(res Result) int {
	n := len(res.Evidence)
	if res.Explanation != "" {
		n++
	}
	return n
}
