package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/doeshing/riskgate/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if err := validateClassifier(cfg.Classifier); err != nil {
		return err
	}
	if err := validateFamily(cfg.Family); err != nil {
		return err
	}
	if err := validateDecision(cfg.Decision); err != nil {
		return err
	}
	if err := validateStore(cfg.Store); err != nil {
		return err
	}
	if err := validateClassify(cfg.Classify); err != nil {
		return err
	}
	if err := validateHistory(cfg.History); err != nil {
		return err
	}
	return validateTelemetry(cfg.Telemetry)
}

func validateClassifier(c domain.ClassifierConfig) error {
	if c.Thresholds.IsZero() {
		return nil
	}
	if err := c.Thresholds.Validate(); err != nil {
		return fmt.Errorf("classifier.thresholds: %w", err)
	}
	return nil
}

func validateFamily(f domain.FamilyConfig) error {
	if f.ConsensusNumerator == 0 && f.ConsensusDenominator == 0 {
		return nil
	}
	if f.ConsensusNumerator <= 0 || f.ConsensusDenominator <= 0 || f.ConsensusNumerator >= f.ConsensusDenominator {
		return fmt.Errorf("family consensus must satisfy 0 < numerator < denominator, got %d/%d",
			f.ConsensusNumerator, f.ConsensusDenominator)
	}
	return nil
}

func validateDecision(d domain.DecisionConfig) error {
	if strings.ContainsAny(d.QuarantineDir, "'\"\n") {
		return fmt.Errorf("decision.quarantine_dir must not contain quotes or newlines")
	}
	return nil
}

func validateStore(s domain.StoreSettings) error {
	switch s.NormalizedDriver() {
	case domain.StoreDriverSQLite, domain.StoreDriverMemory:
	case domain.StoreDriverPostgres:
		if s.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the postgres driver")
		}
	case domain.StoreDriverRedis:
		if s.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr must be set for the redis driver")
		}
		if s.RedisDB < 0 {
			return fmt.Errorf("store.redis_db must be >= 0")
		}
	default:
		return fmt.Errorf("store.driver must be sqlite|postgres|redis|memory, got %s", s.Driver)
	}
	return nil
}

func validateClassify(c domain.ClassifySettings) error {
	if c.Workers < 0 {
		return fmt.Errorf("classify.workers must be >= 0")
	}
	if c.RatePerSecond < 0 {
		return fmt.Errorf("classify.rate_per_second must be >= 0")
	}
	if c.Burst < 0 {
		return fmt.Errorf("classify.burst must be >= 0")
	}
	return nil
}

func validateHistory(history domain.HistorySettings) error {
	if history.RetentionDays < 0 {
		return fmt.Errorf("history.retention_days must be >= 0")
	}
	return nil
}

func validateTelemetry(t domain.TelemetrySettings) error {
	if !t.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(t.OTLPEndpoint); err != nil {
		return fmt.Errorf("telemetry.otlp_endpoint must be host:port: %w", err)
	}
	return nil
}
