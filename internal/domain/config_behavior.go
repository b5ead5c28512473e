package domain

import (
	"fmt"
	"strings"
)

// Store drivers understood by the container.
const (
	StoreDriverSQLite   = "sqlite"
	StoreDriverPostgres = "postgres"
	StoreDriverRedis    = "redis"
	StoreDriverMemory   = "memory"
)

// DefaultThresholds are the documented level boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Low:      DefaultLowThreshold,
		Medium:   DefaultMediumThreshold,
		High:     DefaultHighThreshold,
		Critical: DefaultCriticalThreshold,
	}
}

// IsZero reports whether no threshold was configured.
func (t Thresholds) IsZero() bool {
	return t == Thresholds{}
}

// Validate requires 0 < low < medium < high < critical <= 1.
func (t Thresholds) Validate() error {
	if !(t.Low > 0 && t.Low < t.Medium && t.Medium < t.High && t.High < t.Critical && t.Critical <= 1) {
		return fmt.Errorf("thresholds must satisfy 0 < low < medium < high < critical <= 1, got %+v", t)
	}
	return nil
}

// LevelFor maps a score to a level. Monotonic in score.
func (t Thresholds) LevelFor(score float64) RiskLevel {
	switch {
	case score >= t.Critical:
		return RiskCritical
	case score >= t.High:
		return RiskHigh
	case score >= t.Medium:
		return RiskMedium
	case score >= t.Low:
		return RiskLow
	default:
		return RiskSafe
	}
}

// ConsensusRatio returns the configured ratio, defaulting to a strict majority.
func (f FamilyConfig) ConsensusRatio() (num, den int) {
	if f.ConsensusNumerator <= 0 || f.ConsensusDenominator <= 0 || f.ConsensusNumerator >= f.ConsensusDenominator {
		return 1, 2
	}
	return f.ConsensusNumerator, f.ConsensusDenominator
}

// NormalizedDriver lower-cases the driver name and applies the default.
func (s StoreSettings) NormalizedDriver() string {
	driver := strings.ToLower(strings.TrimSpace(s.Driver))
	switch driver {
	case "", "sqlite3":
		return StoreDriverSQLite
	case "postgresql", "pg":
		return StoreDriverPostgres
	default:
		return driver
	}
}

// EffectiveThresholds returns the config override when present, else fallback.
func (c *Config) EffectiveThresholds(fallback Thresholds) Thresholds {
	if c.Classifier.Thresholds.IsZero() {
		return fallback
	}
	return c.Classifier.Thresholds
}
