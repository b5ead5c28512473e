package domain

import "time"

// DecisionRecord is one journal entry written after a decision was served.
type DecisionRecord struct {
	ID                 string    `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	Command            string    `json:"command"`
	Args               []string  `json:"args"`
	Decision           Decision  `json:"decision"`
	StoredLevel        RiskLevel `json:"stored_level"`
	EffectiveLevel     RiskLevel `json:"effective_level"`
	Reason             string    `json:"reason"`
	Alternative        string    `json:"alternative,omitempty"`
	IntegrityViolation bool      `json:"integrity_violation"`
}

// NewDecisionRecord projects a verdict into a journal entry.
func NewDecisionRecord(id string, at time.Time, command string, args []string, v Verdict) DecisionRecord {
	return DecisionRecord{
		ID:                 id,
		Timestamp:          at,
		Command:            command,
		Args:               append([]string(nil), args...),
		Decision:           v.Decision,
		StoredLevel:        v.StoredLevel,
		EffectiveLevel:     v.EffectiveLevel,
		Reason:             v.Reason,
		Alternative:        v.Alternative,
		IntegrityViolation: v.IntegrityViolation,
	}
}
