package domain

import (
	"fmt"
	"strings"
)

// RiskLevel is the ordered five-value risk scale. The numeric value is the
// on-wire encoding, so the order of the constants must never change.
type RiskLevel uint8

const (
	RiskSafe RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

// MaxRiskLevel is the highest valid level.
const MaxRiskLevel = RiskCritical

var riskLevelNames = [...]string{
	RiskSafe:     "SAFE",
	RiskLow:      "LOW_RISK",
	RiskMedium:   "MEDIUM_RISK",
	RiskHigh:     "HIGH_RISK",
	RiskCritical: "CRITICAL",
}

// String returns the canonical upper-case name.
func (l RiskLevel) String() string {
	if !l.Valid() {
		return fmt.Sprintf("RiskLevel(%d)", uint8(l))
	}
	return riskLevelNames[l]
}

// Valid reports whether l is one of the five defined levels.
func (l RiskLevel) Valid() bool {
	return l <= MaxRiskLevel
}

// MoreSevere reports whether l ranks strictly above other.
func (l RiskLevel) MoreSevere(other RiskLevel) bool {
	return l > other
}

// MaxLevel returns the more severe of a and b.
func MaxLevel(a, b RiskLevel) RiskLevel {
	if a.MoreSevere(b) {
		return a
	}
	return b
}

// ParseRiskLevel accepts canonical names as well as the short forms used in
// YAML rule files (safe, low, medium, high, critical).
func ParseRiskLevel(value string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "safe":
		return RiskSafe, nil
	case "low", "low_risk":
		return RiskLow, nil
	case "medium", "medium_risk":
		return RiskMedium, nil
	case "high", "high_risk":
		return RiskHigh, nil
	case "critical":
		return RiskCritical, nil
	default:
		return RiskSafe, fmt.Errorf("unknown risk level %q", value)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l RiskLevel) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid risk level %d", uint8(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *RiskLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
