package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/riskgate/internal/domain"
)

func TestLoadWritesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, domain.StoreDriverSQLite, cfg.Store.NormalizedDriver())
	assert.Equal(t, 4, cfg.Classify.Workers)
	assert.Equal(t, ".riskgate_quarantine", cfg.Decision.QuarantineDir)

	_, err = os.Stat(path)
	assert.NoError(t, err, "default config must be written")
}

func TestLoadHydratesMissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: memory\n"), 0o600))

	cfg, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Empty(t, cfg.Store.DSN)
	assert.Equal(t, domain.DefaultClassifyWorkers, cfg.Classify.Workers)
	assert.Equal(t, domain.DefaultHistoryRetainDays, cfg.History.RetentionDays)
	assert.Equal(t, "riskgate", cfg.Telemetry.ServiceName)
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [\n"), 0o600))
	_, err := NewFileLoader(path).Load(context.Background())
	assert.Error(t, err)
}

func TestPathHonorsEnvironment(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv(EnvConfigPath, custom)
	assert.Equal(t, custom, NewFileLoader("").Path())
}
