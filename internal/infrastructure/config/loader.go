package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/riskgate/assets"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/pkg/filesystem"
	"github.com/doeshing/riskgate/internal/ports"
)

// EnvConfigPath overrides the config location.
const EnvConfigPath = "RISKGATE_CONFIG"

// FileLoader loads YAML configuration from ~/.riskgate/config.yaml (overridable via RISKGATE_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader. An empty path uses the default lookup.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider. The embedded defaults are written
// on first run.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if err := writeDefault(path); err != nil {
				return domain.Config{}, err
			}
			return DefaultConfig()
		}
		return domain.Config{}, err
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return hydrateDefaults(cfg), nil
}

// Path is the file Load reads.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv(EnvConfigPath); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filepath.Join(filesystem.StateDir(), "config.yaml")
}

// DefaultConfig parses the embedded default configuration.
func DefaultConfig() (domain.Config, error) {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse embedded config: %w", err)
	}
	return cfg, nil
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
}

func writeDefault(path string) error {
	return os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions)
}

// hydrateDefaults fills fields a hand-edited file may have dropped.
func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.Decision.QuarantineDir == "" {
		cfg.Decision.QuarantineDir = domain.DefaultQuarantineDir
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = domain.StoreDriverSQLite
	}
	if cfg.Store.NormalizedDriver() == domain.StoreDriverSQLite && cfg.Store.DSN == "" {
		cfg.Store.DSN = "~/.riskgate/descriptors.db"
	}
	if cfg.Store.KeyPrefix == "" {
		cfg.Store.KeyPrefix = "riskgate"
	}
	if cfg.Classify.Workers == 0 {
		cfg.Classify.Workers = domain.DefaultClassifyWorkers
	}
	if cfg.Classify.Burst == 0 {
		cfg.Classify.Burst = domain.DefaultClassifyBurst
	}
	if cfg.History.RetentionDays == 0 {
		cfg.History.RetentionDays = domain.DefaultHistoryRetainDays
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "riskgate"
	}
	return cfg
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
