package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	appconfig "github.com/doeshing/riskgate/internal/application/config"
	"github.com/doeshing/riskgate/internal/application/classify"
	"github.com/doeshing/riskgate/internal/application/doctor"
	"github.com/doeshing/riskgate/internal/application/gateway"
	"github.com/doeshing/riskgate/internal/application/registry"
	"github.com/doeshing/riskgate/internal/classifier"
	"github.com/doeshing/riskgate/internal/decision"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/family"
	"github.com/doeshing/riskgate/internal/infrastructure/config"
	"github.com/doeshing/riskgate/internal/infrastructure/history"
	"github.com/doeshing/riskgate/internal/infrastructure/store"
	"github.com/doeshing/riskgate/internal/infrastructure/telemetry"
	"github.com/doeshing/riskgate/internal/pkg/logger"
	"github.com/doeshing/riskgate/internal/ports"
	"github.com/doeshing/riskgate/internal/version"
)

// Options selects the config file and log verbosity.
type Options struct {
	ConfigPath string
	Verbose    bool
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config          domain.Config
	ConfigLoader    *config.FileLoader
	Logger          ports.Logger
	Store           ports.Store
	Registry        *registry.Registry
	Classifier      *classifier.Classifier
	Compressor      *family.Compressor
	Engine          *decision.Engine
	Journal         ports.DecisionJournal
	Telemetry       *telemetry.Provider
	Gateway         *gateway.Service
	ClassifyService *classify.Service
	DoctorService   *doctor.Service
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := appconfig.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgLoader.Path(), err)
	}

	log := logger.NewStd(opts.Verbose)

	metrics, err := telemetry.New(ctx, cfg.Telemetry, version.Version)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	table, err := classifier.LoadRules(cfg.Classifier.RulesFile)
	if err != nil {
		return nil, err
	}
	table, err = table.WithThresholds(cfg.EffectiveThresholds(table.Thresholds()))
	if err != nil {
		return nil, err
	}
	cls := classifier.New(table)

	ruleSet, err := decision.LoadRuleSet(cfg.Decision.RulesFile)
	if err != nil {
		return nil, err
	}
	engine, err := decision.NewEngine(ruleSet,
		decision.WithLogger(log),
		decision.WithMetrics(metrics),
		decision.WithQuarantineDir(cfg.Decision.QuarantineDir),
	)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, domain.DefaultStoreTimeout)
	defer cancel()
	backend, err := store.Open(storeCtx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.NormalizedDriver(), err)
	}

	compressor := family.NewCompressor(cfg.Family)
	reg := registry.New(backend, compressor, log)
	if err := reg.Load(storeCtx); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("load registry: %w", err)
	}

	journal := history.Open(cfg.History)
	if journal != nil && cfg.History.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -cfg.History.RetentionDays)
		if n, err := journal.Prune(ctx, cutoff); err != nil {
			log.Warn("journal prune failed", map[string]interface{}{"error": err.Error()})
		} else if n > 0 {
			log.Debug("journal pruned", map[string]interface{}{"removed": n})
		}
	}

	return &Container{
		Config:       cfg,
		ConfigLoader: cfgLoader,
		Logger:       log,
		Store:        backend,
		Registry:     reg,
		Classifier:   cls,
		Compressor:   compressor,
		Engine:       engine,
		Journal:      journal,
		Telemetry:    metrics,
		Gateway: &gateway.Service{
			Registry: reg,
			Engine:   engine,
			Journal:  journal,
			Metrics:  metrics,
			Logger:   log,
		},
		ClassifyService: &classify.Service{
			Classifier: cls,
			Registry:   reg,
			Metrics:    metrics,
			Logger:     log,
			Workers:    cfg.Classify.Workers,
			Limiter:    classify.NewLimiter(cfg.Classify),
		},
		DoctorService: &doctor.Service{
			ConfigProvider: cfgLoader,
			Store:          backend,
			Registry:       reg,
			Journal:        journal,
		},
	}, nil
}

// Close releases the store, the journal and flushes telemetry.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.Store != nil {
		errs = append(errs, c.Store.Close())
	}
	if closer, ok := c.Journal.(interface{ Close() error }); ok {
		errs = append(errs, closer.Close())
	}
	if c.Telemetry != nil {
		errs = append(errs, c.Telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
