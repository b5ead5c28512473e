package domain

import "fmt"

// Decision is the outcome the gateway hands to the execution layer. The
// zero value is the most restrictive decision.
type Decision uint8

const (
	DecisionReject Decision = iota
	DecisionRequireHumanApproval
	DecisionApproveWithLogging
	DecisionAllow
)

func (d Decision) String() string {
	switch d {
	case DecisionReject:
		return "REJECT"
	case DecisionRequireHumanApproval:
		return "REQUIRE_HUMAN_APPROVAL"
	case DecisionApproveWithLogging:
		return "APPROVE_WITH_LOGGING"
	case DecisionAllow:
		return "ALLOW"
	default:
		return fmt.Sprintf("Decision(%d)", uint8(d))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decision) UnmarshalText(text []byte) error {
	parsed, err := ParseDecision(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDecision accepts the canonical upper-case names.
func ParseDecision(name string) (Decision, error) {
	for _, d := range []Decision{DecisionReject, DecisionRequireHumanApproval, DecisionApproveWithLogging, DecisionAllow} {
		if d.String() == name {
			return d, nil
		}
	}
	return DecisionReject, fmt.Errorf("unknown decision %q", name)
}

// Escalation records one argument rule that raised the level of a call.
type Escalation struct {
	Rule string    `json:"rule"`
	From RiskLevel `json:"from"`
	To   RiskLevel `json:"to"`
}

// Verdict is recomputed for every invocation and never persisted as a
// source of truth.
type Verdict struct {
	Decision           Decision     `json:"decision"`
	Reason             string       `json:"reason"`
	Alternative        string       `json:"alternative,omitempty"`
	StoredLevel        RiskLevel    `json:"stored_level"`
	EffectiveLevel     RiskLevel    `json:"effective_level"`
	Escalations        []Escalation `json:"escalations,omitempty"`
	IntegrityViolation bool         `json:"integrity_violation,omitempty"`
}

// HasAlternative reports whether a safer substitute was suggested.
func (v Verdict) HasAlternative() bool {
	return v.Alternative != ""
}
