package evidence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/riskgate/internal/domain"
)

const rmJSON = `{
  "command": "rm",
  "version": "9.4",
  "family": "coreutils",
  "perf": {"exec_ms": 12, "memory_bytes": 4096, "output_bytes": 0},
  "evidence": [
    {"category": "destructive-capability", "rationale": "removes files", "risk_contribution": 0.95, "confidence": 0.9}
  ]
}`

const listYAML = `- command: ls
  evidence:
    - category: file-operation
      rationale: lists directory contents
      risk_contribution: 0.05
      confidence: 1
- command: curl
  evidence: []
`

func TestParseJSONDocument(t *testing.T) {
	docs, err := Parse([]byte(rmJSON), FormatJSON)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	doc := docs[0]
	assert.Equal(t, "rm", doc.Command)
	assert.Equal(t, "9.4", doc.ToolVersion)
	assert.Equal(t, "coreutils", doc.Family)
	assert.Equal(t, 12*time.Millisecond, doc.Perf.ExecTime)
	assert.Equal(t, uint64(4096), doc.Perf.MemoryBytes)
	require.Len(t, doc.Evidence, 1)
	assert.Equal(t, domain.CategoryDestructiveCapability, doc.Evidence[0].Category)
	assert.Equal(t, 0.95, doc.Evidence[0].RiskContribution)
}

func TestParseYAMLList(t *testing.T) {
	docs, err := Parse([]byte(listYAML), FormatYAML)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "ls", docs[0].Command)
	assert.Equal(t, "curl", docs[1].Command)
	assert.Empty(t, docs[1].Evidence)
}

func TestParseRejectsSchemaViolations(t *testing.T) {
	tests := map[string]string{
		"missing evidence": `{"command": "rm"}`,
		"unknown category": `{"command": "rm", "evidence": [{"category": "vibes", "rationale": "x", "risk_contribution": 0.1, "confidence": 0.1}]}`,
		"risk above one":   `{"command": "rm", "evidence": [{"category": "file-operation", "rationale": "x", "risk_contribution": 1.5, "confidence": 0.1}]}`,
		"blank command":    `{"command": "  ", "evidence": []}`,
		"unexpected field": `{"command": "rm", "evidence": [], "danger": true}`,
		"not json":         `{"command": `,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(content), FormatJSON)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedEvidence), "got %v", err)
		})
	}
}

func TestFileSourceReadsAllFiles(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "rm.json")
	yamlPath := filepath.Join(dir, "list.yml")
	require.NoError(t, os.WriteFile(jsonPath, []byte(rmJSON), 0o600))
	require.NoError(t, os.WriteFile(yamlPath, []byte(listYAML), 0o600))

	docs, err := FileSource{Paths: []string{jsonPath, yamlPath}}.Documents(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"rm", "ls", "curl"}, []string{docs[0].Command, docs[1].Command, docs[2].Command})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = FileSource{Paths: []string{jsonPath}}.Documents(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = ReadFile(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
