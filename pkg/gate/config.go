// Package gate composes the normalizer, detector sets, merger, repair
// engine and drift scorer into the two-stage safety gate: a cheap
// intention check before reasoning starts and a thorough action check
// on the concrete output it produces.
package gate

// Decision is the terminal outcome of one check. Both stages share this
// vocabulary.
type Decision string

const (
	DecisionAllow           Decision = "ALLOW"
	DecisionAllowWithRepair Decision = "ALLOW_WITH_REPAIR"
	DecisionReject          Decision = "REJECT"
	DecisionEscalate        Decision = "ESCALATE"
)

// Conservative defaults. Anything malformed in a supplied Config is
// pulled back to these rather than failing construction; a broken
// configuration narrows the gate, it never opens it.
const (
	DefaultTauReject        = 0.5
	DefaultTauRepair        = 0.25
	DefaultMaxRepairs       = 3
	DefaultTauDriftReject   = 0.6
	DefaultTauDriftEscalate = 0.35

	// MaxRepairCeiling bounds repair retries regardless of configuration.
	MaxRepairCeiling = 5
)

// Config fixes the gate's policy thresholds for the lifetime of the
// instance. There is no per-call override: changing policy means
// constructing a new gate.
type Config struct {
	// TauReject is the aggregate-evidence threshold for outright
	// rejection of non-hard-stop candidates.
	TauReject float64 `yaml:"tau_reject" json:"tau_reject"`
	// TauRepair is the threshold above which repair is attempted.
	TauRepair float64 `yaml:"tau_repair" json:"tau_repair"`
	// MaxRepairs bounds automatic rewrite attempts; 0 disables repair.
	MaxRepairs int `yaml:"max_repairs" json:"max_repairs"`
	// TauDriftReject rejects repairs that moved meaning too far.
	TauDriftReject float64 `yaml:"tau_drift_reject" json:"tau_drift_reject"`
	// TauDriftEscalate escalates repairs in the grey drift band.
	TauDriftEscalate float64 `yaml:"tau_drift_escalate" json:"tau_drift_escalate"`
	// StrictNoEscalate turns every would-be ESCALATE into REJECT.
	StrictNoEscalate bool `yaml:"strict_no_escalate" json:"strict_no_escalate"`
}

// DefaultConfig returns the conservative built-in policy.
func DefaultConfig() Config {
	return Config{
		TauReject:        DefaultTauReject,
		TauRepair:        DefaultTauRepair,
		MaxRepairs:       DefaultMaxRepairs,
		TauDriftReject:   DefaultTauDriftReject,
		TauDriftEscalate: DefaultTauDriftEscalate,
	}
}

// Normalize returns a copy with malformed values replaced by the
// conservative defaults and ordering constraints enforced
// (repair <= reject, escalate <= reject drift).
func (c Config) Normalize() Config {
	out := c
	if out.TauReject <= 0 || out.TauReject > 1 {
		out.TauReject = DefaultTauReject
	}
	if out.TauRepair <= 0 || out.TauRepair > 1 {
		out.TauRepair = DefaultTauRepair
	}
	if out.TauRepair > out.TauReject {
		out.TauRepair = out.TauReject
	}
	if out.MaxRepairs < 0 {
		out.MaxRepairs = 0
	}
	if out.MaxRepairs > MaxRepairCeiling {
		out.MaxRepairs = MaxRepairCeiling
	}
	if out.TauDriftReject <= 0 || out.TauDriftReject > 1 {
		out.TauDriftReject = DefaultTauDriftReject
	}
	if out.TauDriftEscalate <= 0 || out.TauDriftEscalate > 1 {
		out.TauDriftEscalate = DefaultTauDriftEscalate
	}
	if out.TauDriftEscalate > out.TauDriftReject {
		out.TauDriftEscalate = out.TauDriftReject
	}
	return out
}
