package detect

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/Mindburn-Labs/aegis/pkg/evidence"
)

// CELRule is an operator-authored detection rule: a CEL expression over
// candidate features that, when true, emits the configured evidence.
type CELRule struct {
	Name       string
	Expr       string
	Code       evidence.Code
	Strength   float64
	Confidence float64
	Message    string
}

// compiledRule pairs a rule with its compiled program.
type compiledRule struct {
	rule CELRule
	prg  cel.Program
}

// CELDetector evaluates operator rules against candidate features.
// Rules are compiled once at construction with a hard cost limit;
// evaluation errors at runtime fail closed through the detector set.
type CELDetector struct {
	rules []compiledRule
}

// NewCEL compiles the given rules. A rule that fails to compile is a
// construction error; a gate never starts with half a rulebook.
func NewCEL(rules []CELRule) (*CELDetector, error) {
	env, err := cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("tokens", cel.ListType(cel.StringType)),
		cel.Variable("rationale", cel.StringType),
		cel.Variable("pressure", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable("state", cel.MapType(cel.StringType, cel.DoubleType)),
	)
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}

	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		if !r.Code.Known() {
			return nil, fmt.Errorf("cel rule %q: unknown code %q", r.Name, r.Code)
		}
		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("cel rule %q: compile: %w", r.Name, issues.Err())
		}
		prg, err := env.Program(ast,
			cel.InterruptCheckFrequency(100),
			cel.CostLimit(10000),
		)
		if err != nil {
			return nil, fmt.Errorf("cel rule %q: program: %w", r.Name, err)
		}
		compiled = append(compiled, compiledRule{rule: r, prg: prg})
	}
	return &CELDetector{rules: compiled}, nil
}

// Name implements evidence.Detector.
func (d *CELDetector) Name() string { return "cel_rules" }

// Detect implements evidence.Detector. Any evaluation error aborts the
// whole run with an error; the set converts it to failure evidence.
func (d *CELDetector) Detect(_ context.Context, t *evidence.Target) ([]evidence.Evidence, error) {
	if t == nil {
		return nil, fmt.Errorf("nil target")
	}
	input := map[string]any{
		"text":      t.Normalized,
		"tokens":    t.Tokens,
		"rationale": t.Rationale,
		"pressure":  nonNil(t.Pressure),
		"state":     nonNil(t.StateSummary),
	}

	var out []evidence.Evidence
	for _, cr := range d.rules {
		val, _, err := cr.prg.Eval(input)
		if err != nil {
			return nil, fmt.Errorf("rule %q: eval: %w", cr.rule.Name, err)
		}
		matched, ok := val.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("rule %q: result not bool", cr.rule.Name)
		}
		if matched {
			msg := cr.rule.Message
			if msg == "" {
				msg = fmt.Sprintf("rule %s matched", cr.rule.Name)
			}
			out = append(out, evidence.Evidence{
				Detector:   d.Name(),
				Code:       cr.rule.Code,
				Message:    msg,
				Strength:   cr.rule.Strength,
				Confidence: cr.rule.Confidence,
			})
		}
	}
	return out, nil
}

func nonNil(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
