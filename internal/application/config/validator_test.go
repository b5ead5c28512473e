package config

import (
	"testing"

	"github.com/doeshing/riskgate/internal/domain"
)

func validConfig() domain.Config {
	return domain.Config{
		Store:     domain.StoreSettings{Driver: "sqlite"},
		Classify:  domain.ClassifySettings{Workers: 4, Burst: 1},
		History:   domain.HistorySettings{Enabled: true, RetentionDays: 30},
		Telemetry: domain.TelemetrySettings{Enabled: true, OTLPEndpoint: "localhost:4317"},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*domain.Config){
		"thresholds out of order": func(c *domain.Config) {
			c.Classifier.Thresholds = domain.Thresholds{Low: 0.5, Medium: 0.4, High: 0.6, Critical: 0.8}
		},
		"consensus above one":   func(c *domain.Config) { c.Family = domain.FamilyConfig{ConsensusNumerator: 3, ConsensusDenominator: 2} },
		"postgres without dsn":  func(c *domain.Config) { c.Store = domain.StoreSettings{Driver: "postgres"} },
		"redis without addr":    func(c *domain.Config) { c.Store = domain.StoreSettings{Driver: "redis"} },
		"unknown driver":        func(c *domain.Config) { c.Store.Driver = "etcd" },
		"negative workers":      func(c *domain.Config) { c.Classify.Workers = -1 },
		"negative retention":    func(c *domain.Config) { c.History.RetentionDays = -1 },
		"endpoint without port": func(c *domain.Config) { c.Telemetry.OTLPEndpoint = "collector" },
		"quoted quarantine":     func(c *domain.Config) { c.Decision.QuarantineDir = "a'b" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			if err := Validate(cfg); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
