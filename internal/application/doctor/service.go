package doctor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	appconfig "github.com/doeshing/riskgate/internal/application/config"
	"github.com/doeshing/riskgate/internal/application/registry"
	"github.com/doeshing/riskgate/internal/classifier"
	"github.com/doeshing/riskgate/internal/decision"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/infrastructure/store"
	"github.com/doeshing/riskgate/internal/ports"
)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	Store          ports.Store
	Registry       *registry.Registry
	Journal        ports.DecisionJournal
}

// Run executes checks and returns a report.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := appconfig.Validate(cfg); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("format %s, store %s", cfg.ConfigFormatVersion, cfg.Store.NormalizedDriver())))
	}

	checks = append(checks, classifierCheck(cfg))
	checks = append(checks, decisionCheck(cfg))

	if s.Store != nil {
		checks = append(checks, integrityCheck(ctx, s.Store))
	} else {
		checks = append(checks, warn("Descriptor store", "store not initialized"))
	}

	if s.Registry != nil {
		checks = append(checks, staleCheck(s.Registry.Stale()))
	}

	if s.Journal == nil {
		checks = append(checks, warn("Decision journal", "disabled"))
	} else if _, err := s.Journal.Recent(ctx, 1); err != nil {
		checks = append(checks, warn("Decision journal", err.Error()))
	} else {
		checks = append(checks, ok("Decision journal", "readable"))
	}

	return domain.HealthReport{Checks: checks}, nil
}

func classifierCheck(cfg domain.Config) domain.HealthCheck {
	table, err := classifier.LoadRules(cfg.Classifier.RulesFile)
	if err != nil {
		return fail("Classifier rules", err.Error())
	}
	if _, err := table.WithThresholds(cfg.EffectiveThresholds(table.Thresholds())); err != nil {
		return fail("Classifier rules", err.Error())
	}
	return ok("Classifier rules", fmt.Sprintf("%d flag rules", table.RuleCount()))
}

func decisionCheck(cfg domain.Config) domain.HealthCheck {
	set, err := decision.LoadRuleSet(cfg.Decision.RulesFile)
	if err != nil {
		return fail("Decision rules", err.Error())
	}
	engine, err := decision.NewEngine(set)
	if err != nil {
		return fail("Decision rules", err.Error())
	}
	return ok("Decision rules", fmt.Sprintf("%d escalation rules", len(engine.RuleNames())))
}

func integrityCheck(ctx context.Context, s ports.Store) domain.HealthCheck {
	report, err := store.Scan(ctx, s)
	if err != nil {
		return fail("Descriptor store", err.Error())
	}
	if !report.Clean() {
		names := make([]string, 0, len(report.Findings))
		for _, f := range report.Findings {
			names = append(names, f.Kind+" "+f.Name)
		}
		return fail("Descriptor store", fmt.Sprintf("%d record(s) failed validation, re-classify: %s",
			len(report.Findings), strings.Join(names, ", ")))
	}
	return ok("Descriptor store", fmt.Sprintf("%d descriptors, %d families verified", report.Descriptors, report.Families))
}

func staleCheck(stale map[string]error) domain.HealthCheck {
	if len(stale) == 0 {
		return ok("Families", "all families expand")
	}
	names := make([]string, 0, len(stale))
	for name := range stale {
		names = append(names, name)
	}
	sort.Strings(names)
	return warn("Families", "stale, recompress: "+strings.Join(names, ", "))
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
