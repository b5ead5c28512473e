package audit

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/riskgate/internal/domain"
)

func sample() domain.ClassificationResult {
	return domain.ClassificationResult{
		Command:         "rm",
		Level:           domain.RiskCritical,
		Score:           0.8555,
		Destructiveness: 0.855,
		Flags:           domain.NewFlagSet(domain.FlagDestructive, domain.FlagDeletesFiles),
		Evidence: []domain.EvidenceItem{
			{Category: domain.CategoryDestructiveCapability, Rationale: "removes files", RiskContribution: 0.95, Confidence: 0.9},
			{Category: domain.CategoryDocumentedNote, Rationale: "prints usage", RiskContribution: 0.01, Confidence: 0.5},
		},
		Contributions: []float64{0.855, 0.0025},
	}
}

func TestRenderListsEveryEvidenceItem(t *testing.T) {
	out := Render(sample(), 0xdeadbeef)

	for _, want := range []string{
		"command:         rm",
		"level:           CRITICAL",
		"flags:           destructive|deletes-files",
		"checksum:        0xdeadbeef",
		"[0] destructive-capability",
		"contribution=0.8550",
		"removes files",
		"[1] documented-note",
		"prints usage",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderJSONIsCanonical(t *testing.T) {
	out, err := RenderJSON(sample(), 0xdeadbeef)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(out), `{"checksum":"deadbeef","command":"rm","destructiveness":0.855`), string(out))
	assert.NotContains(t, string(out), "\n")

	var decoded Report
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, Build(sample(), 0xdeadbeef), decoded)
}

func TestFingerprintTracksClassifierState(t *testing.T) {
	a, err := Fingerprint(sample(), 1)
	require.NoError(t, err)
	b, err := Fingerprint(sample(), 1)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	changed := sample()
	changed.Evidence[1].Confidence = 0.6
	c, err := Fingerprint(changed, 1)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestParseRestoresStoredReport(t *testing.T) {
	out, err := RenderJSON(sample(), 0xdeadbeef)
	require.NoError(t, err)

	r, err := Parse(out)
	require.NoError(t, err)
	assert.Equal(t, Render(sample(), 0xdeadbeef), r.Text())
	assert.Len(t, r.Evidence, 2)
	assert.True(t, r.Describes("rm", 0xdeadbeef))
	assert.False(t, r.Describes("rm", 0xdeadbeee))
	assert.False(t, r.Describes("ls", 0xdeadbeef))
}

func TestParseRejectsNonCanonicalInput(t *testing.T) {
	_, err := Parse([]byte(`{"command": "rm", "checksum": "deadbeef"}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestTextWithoutFlags(t *testing.T) {
	result := sample()
	result.Flags = 0
	assert.Contains(t, Render(result, 1), "flags:           none")
}
