package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/aegis/pkg/evidence"
	"github.com/Mindburn-Labs/aegis/pkg/merge"
)

// Stage names shared by statistics, metrics and audit records.
const (
	StageIntention = "intention"
	StageAction    = "action"
)

// IntentInput is the stage-1 payload: a short intent description before
// any expensive multi-participant reasoning runs.
type IntentInput struct {
	Description  string
	Lang         string
	Goals        []string
	StateSummary map[string]float64
}

// IntentVerdict is the stage-1 outcome. The intention stage never
// repairs and never escalates: its Decision is ALLOW or REJECT.
type IntentVerdict struct {
	CheckID  string
	Approved bool
	Decision Decision
	Reason   string
	Evidence []evidence.Evidence
}

// Codes returns the distinct violation codes that contributed.
func (v IntentVerdict) Codes() []evidence.Code {
	return evidence.Codes(v.Evidence)
}

// CheckIntent runs the reduced detector set over the intent description
// and stated goals. A reject here short-circuits the request before any
// downstream reasoning work is spent on it.
//
// Stage 1 rejects on hard stops, detector failure and aggregate scores
// at or above the reject threshold. Scores in the repairable band pass:
// the concrete output will face the full action-stage pipeline anyway.
func (g *Gate) CheckIntent(ctx context.Context, in IntentInput) (v IntentVerdict) {
	start := time.Now()
	checkID := uuid.New().String()

	text := in.Description
	if len(in.Goals) > 0 {
		text = text + " " + strings.Join(in.Goals, " ")
	}
	c := Candidate{
		ID:           checkID,
		Text:         text,
		Lang:         in.Lang,
		Goals:        in.Goals,
		StateSummary: in.StateSummary,
	}

	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("intent check panicked, failing closed",
				"check_id", checkID, "panic", fmt.Sprint(r))
			v = IntentVerdict{
				CheckID:  checkID,
				Decision: DecisionReject,
				Reason:   fmt.Sprintf("internal gate failure: %v", r),
			}
		}
		res := Result{
			CandidateID: c.ID,
			CheckID:     checkID,
			Decision:    v.Decision,
			Evidence:    v.Evidence,
			Explanation: v.Reason,
		}
		g.finish(ctx, StageIntention, c, res, start)
	}()

	evs := g.intent.Run(ctx, c.target())
	g.countFailures(evs)

	outcome := g.merger.Merge(evs)
	switch outcome.Kind {
	case merge.KindAllow:
		return IntentVerdict{
			CheckID:  checkID,
			Approved: true,
			Decision: DecisionAllow,
			Evidence: evs,
		}
	case merge.KindRepairable:
		return IntentVerdict{
			CheckID:  checkID,
			Approved: true,
			Decision: DecisionAllow,
			Reason:   fmt.Sprintf("intent passed with residual score %.3f; action stage will re-examine the concrete output", outcome.Score),
			Evidence: evs,
		}
	default:
		return IntentVerdict{
			CheckID:  checkID,
			Decision: DecisionReject,
			Reason:   outcome.Reason,
			Evidence: evs,
		}
	}
}
