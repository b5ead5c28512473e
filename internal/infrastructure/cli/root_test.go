package cli

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rmEvidence = `{
  "command": "rm",
  "version": "9.4",
  "family": "coreutils",
  "perf": {"exec_ms": 12, "memory_bytes": 4096, "output_bytes": 0},
  "evidence": [
    {"category": "destructive-capability", "rationale": "removes files permanently", "risk_contribution": 0.95, "confidence": 0.9}
  ]
}`

type workspace struct {
	dir    string
	config string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	body := "classifier:\n  rules_file: " + filepath.Join(dir, "rules.yaml") +
		"\ndecision:\n  rules_file: " + filepath.Join(dir, "decision.yaml") +
		"\n  quarantine_dir: " + filepath.Join(dir, "quarantine") +
		"\nstore:\n  driver: sqlite\n  dsn: " + filepath.Join(dir, "descriptors.db") +
		"\nhistory:\n  enabled: true\n  path: " + filepath.Join(dir, "history.jsonl") + "\n"
	require.NoError(t, os.WriteFile(cfg, []byte(body), 0o600))
	return workspace{dir: dir, config: cfg}
}

func (w workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root, cleanup := NewRootCmd(Options{ConfigPath: w.config})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	require.NoError(t, cleanup(context.Background()))
	return out.String(), err
}

func (w workspace) evidence(t *testing.T) string {
	t.Helper()
	path := filepath.Join(w.dir, "rm.json")
	require.NoError(t, os.WriteFile(path, []byte(rmEvidence), 0o600))
	return path
}

func TestClassifyThenDecide(t *testing.T) {
	w := newWorkspace(t)

	out, err := w.run(t, "classify", "-o", "json", w.evidence(t))
	require.NoError(t, err, out)
	var classified []struct {
		Command string `json:"command"`
		Level   string `json:"level"`
		Record  string `json:"record"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &classified))
	require.Len(t, classified, 1)
	assert.Equal(t, "rm", classified[0].Command)
	assert.Equal(t, "CRITICAL", classified[0].Level)

	out, err = w.run(t, "decide", "-o", "json", "rm", "-rf", "build")
	require.NoError(t, err, out)
	var decided struct {
		Args    []string `json:"args"`
		Verdict struct {
			Decision string `json:"decision"`
		} `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decided))
	assert.Equal(t, "REJECT", decided.Verdict.Decision)
	assert.Equal(t, []string{"-rf", "build"}, decided.Args)

	out, err = w.run(t, "history", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "rm -rf build")

	out, err = w.run(t, "explain", "rm")
	require.NoError(t, err)
	assert.Contains(t, out, "CRITICAL")
	assert.Contains(t, out, "removes files permanently", "evidence survives the round trip through the store")
}

func TestDecideStrictFailsForUnknownCommand(t *testing.T) {
	w := newWorkspace(t)
	out, err := w.run(t, "decide", "--strict", "never-classified")
	assert.Error(t, err)
	assert.Contains(t, out, "REQUIRE_HUMAN_APPROVAL")
}

func TestVerifyDetectsTampering(t *testing.T) {
	w := newWorkspace(t)
	out, err := w.run(t, "classify", "-o", "json", w.evidence(t))
	require.NoError(t, err, out)
	var classified []struct {
		Record string `json:"record"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &classified))
	record := classified[0].Record

	out, err = w.run(t, "verify", "--command", "rm", record)
	require.NoError(t, err, out)
	assert.Contains(t, out, "record is intact")

	_, err = w.run(t, "verify", "--command", "ls", record)
	assert.Error(t, err)

	raw, err := hex.DecodeString(record)
	require.NoError(t, err)
	raw[10] ^= 0xFF
	out, err = w.run(t, "verify", hex.EncodeToString(raw))
	assert.Error(t, err)
	assert.Contains(t, out, "checksum check failed")

	out, err = w.run(t, "verify", "abcd")
	assert.Error(t, err)
	assert.Contains(t, out, "length check failed")
}

func TestVerifyAndVersionSkipContainer(t *testing.T) {
	root, cleanup := NewRootCmd(Options{ConfigPath: filepath.Join(t.TempDir(), "missing", "config.yaml")})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.ExecuteContext(context.Background()))
	require.NoError(t, cleanup(context.Background()))
	assert.Contains(t, out.String(), "riskgate version")
}

func TestConfigGet(t *testing.T) {
	w := newWorkspace(t)
	out, err := w.run(t, "config", "get", "store.driver")
	require.NoError(t, err)
	assert.Equal(t, "sqlite\n", out)

	_, err = w.run(t, "config", "get", "store.nope")
	assert.Error(t, err)
}
