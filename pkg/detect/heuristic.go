package detect

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Mindburn-Labs/aegis/pkg/evidence"
)

// pattern is one structural heuristic. Patterns match the underlying
// construction, not its register: rhetorical, fictional or philosophical
// framing around a domination imperative still matches.
type pattern struct {
	name       string
	re         *regexp.Regexp
	code       evidence.Code
	strength   float64
	confidence float64
	message    string
}

var heuristicPatterns = []pattern{
	{
		name:       "domination_imperative",
		re:         regexp.MustCompile(`\b(dominate|subjugate|subdue|crush|enslave)\b[^.?!]{0,60}\b(users?|people|competitors?|the weak|everyone|them)\b`),
		code:       evidence.CodeDomination,
		strength:   0.9,
		confidence: 0.85,
		message:    "imperative domination framing",
	},
	{
		name:       "control_over_behavior",
		re:         regexp.MustCompile(`\b(full|complete|absolute|total)\s+(control|power|authority)\s+over\b`),
		code:       evidence.CodeDomination,
		strength:   0.9,
		confidence: 0.8,
		message:    "totalizing control construction",
	},
	{
		name:       "no_exit",
		re:         regexp.MustCompile(`\b(so|such that|until)\b[^.?!]{0,80}\b(cant|cannot|can not|unable to)\s+(function|leave|switch|exit|opt out|escape)\b`),
		code:       evidence.CodeLockIn,
		strength:   0.8,
		confidence: 0.75,
		message:    "engineered no-exit dependency",
	},
	{
		name:       "forced_dependence",
		re:         regexp.MustCompile(`\bmake\b[^.?!]{0,60}\b(essential|indispensable|unavoidable|mandatory)\b[^.?!]{0,60}\b(daily|every|all)\b`),
		code:       evidence.CodeLockIn,
		strength:   0.65,
		confidence: 0.6,
		message:    "manufactured dependence on the platform",
	},
	{
		name:       "covert_influence",
		re:         regexp.MustCompile(`\b(without)\s+(their|the users?|user)\s+(knowledge|awareness|consent|permission)\b`),
		code:       evidence.CodeManipulation,
		strength:   0.85,
		confidence: 0.8,
		message:    "covert influence without consent",
	},
	{
		name:       "consent_bypass",
		re:         regexp.MustCompile(`\b(bypass|circumvent|override|ignore)\b[^.?!]{0,40}\b(consent|objections?|refusal|opt.?outs?)\b`),
		code:       evidence.CodeManipulation,
		strength:   0.85,
		confidence: 0.8,
		message:    "consent bypass construction",
	},
	{
		name:       "irreversible_harm",
		re:         regexp.MustCompile(`\b(irreversibl[ey]|permanently|beyond (repair|recovery))\b[^.?!]{0,60}\b(destroy|damage|harm|eliminate|erase)`),
		code:       evidence.CodeCatastrophic,
		strength:   0.9,
		confidence: 0.8,
		message:    "irreversible harm construction",
	},
	{
		name:       "group_exclusion",
		re:         regexp.MustCompile(`\b(exclude|shut out|lock out|bar)\b[^.?!]{0,50}\b(disabled|elderly|blind|deaf|poor|minorit\w+)\b`),
		code:       evidence.CodeExclusion,
		strength:   0.8,
		confidence: 0.75,
		message:    "group exclusion construction",
	},
}

// Heuristic flags structural harm patterns in canonical text. It is
// stateless: the compiled patterns are package-level and read-only.
type Heuristic struct{}

// NewHeuristic builds the structural pattern detector.
func NewHeuristic() *Heuristic { return &Heuristic{} }

// Name implements evidence.Detector.
func (d *Heuristic) Name() string { return "heuristic" }

// Detect implements evidence.Detector.
func (d *Heuristic) Detect(_ context.Context, t *evidence.Target) ([]evidence.Evidence, error) {
	if t == nil {
		return nil, fmt.Errorf("nil target")
	}
	var out []evidence.Evidence
	for _, p := range heuristicPatterns {
		for _, loc := range p.re.FindAllStringIndex(t.Normalized, -1) {
			out = append(out, evidence.Evidence{
				Detector:   d.Name(),
				Code:       p.code,
				Message:    p.message,
				Strength:   p.strength,
				Confidence: p.confidence,
				Span:       &evidence.Span{Start: loc[0], End: loc[1]},
			})
		}
	}
	return out, nil
}
