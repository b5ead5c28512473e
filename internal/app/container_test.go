package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/riskgate/internal/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestBuildContainerWithMemoryStore(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, `
classifier:
  rules_file: `+filepath.Join(dir, "rules.yaml")+`
decision:
  rules_file: `+filepath.Join(dir, "decision.yaml")+`
store:
  driver: memory
history:
  enabled: true
  path: `+filepath.Join(dir, "history.jsonl")+`
`)
	c, err := BuildContainer(context.Background(), Options{ConfigPath: path})
	require.NoError(t, err)
	defer c.Close(context.Background())

	assert.NotNil(t, c.Gateway)
	assert.NotNil(t, c.ClassifyService)
	assert.NotNil(t, c.Journal)

	v := c.Gateway.Decide(context.Background(), "unknown-tool", nil)
	assert.Equal(t, domain.DecisionRequireHumanApproval, v.Decision)
	recent, err := c.Journal.Recent(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestBuildContainerRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "store:\n  driver: etcd\n")
	_, err := BuildContainer(context.Background(), Options{ConfigPath: path})
	assert.ErrorContains(t, err, "store.driver")
}
