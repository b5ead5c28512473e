package domain_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/riskgate/internal/domain"
)

func TestRiskLevelOrderingAndText(t *testing.T) {
	levels := []domain.RiskLevel{domain.RiskSafe, domain.RiskLow, domain.RiskMedium, domain.RiskHigh, domain.RiskCritical}
	for i := 1; i < len(levels); i++ {
		assert.True(t, levels[i].MoreSevere(levels[i-1]), "%v should outrank %v", levels[i], levels[i-1])
	}

	for _, level := range levels {
		text, err := level.MarshalText()
		require.NoError(t, err)
		var back domain.RiskLevel
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, level, back)
	}

	parsed, err := domain.ParseRiskLevel("high")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskHigh, parsed)

	_, err = domain.ParseRiskLevel("catastrophic")
	assert.Error(t, err)
	assert.False(t, domain.RiskLevel(5).Valid())
}

func TestFlagSetOperations(t *testing.T) {
	set := domain.NewFlagSet(domain.FlagDestructive, domain.FlagNetworkAccess)
	assert.True(t, set.Has(domain.FlagDestructive))
	assert.False(t, set.Has(domain.FlagRecursive))
	assert.Equal(t, 2, set.Len())
	assert.Equal(t, "destructive|network-access", set.String())

	set = set.Without(domain.FlagDestructive)
	assert.Equal(t, []string{"network-access"}, set.Names())
	assert.Equal(t, "none", domain.FlagSet(0).String())

	flag, err := domain.ParseCapabilityFlag("REQUIRES_ELEVATED_PRIVILEGE")
	require.NoError(t, err)
	assert.Equal(t, domain.FlagRequiresElevatedPrivilege, flag)

	_, err = domain.ParseCapabilityFlag("reserved-14")
	assert.Error(t, err)
}

func TestEvidenceItemValidate(t *testing.T) {
	valid := domain.EvidenceItem{
		Category:         domain.CategoryFileOperation,
		Rationale:        "writes output files",
		RiskContribution: 0.3,
		Confidence:       0.8,
	}
	require.NoError(t, valid.Validate(0))

	tests := []struct {
		name  string
		edit  func(*domain.EvidenceItem)
		field string
	}{
		{"missing category", func(e *domain.EvidenceItem) { e.Category = "" }, "category"},
		{"unknown category", func(e *domain.EvidenceItem) { e.Category = "vibes" }, "category"},
		{"blank rationale", func(e *domain.EvidenceItem) { e.Rationale = "  " }, "rationale"},
		{"risk above one", func(e *domain.EvidenceItem) { e.RiskContribution = 1.5 }, "risk_contribution"},
		{"negative confidence", func(e *domain.EvidenceItem) { e.Confidence = -0.1 }, "confidence"},
		{"nan risk", func(e *domain.EvidenceItem) { e.RiskContribution = math.NaN() }, "risk_contribution"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := valid
			tt.edit(&item)
			err := item.Validate(3)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrMalformedEvidence))
			var malformed *domain.MalformedEvidenceError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, 3, malformed.Index)
			assert.Equal(t, tt.field, malformed.Field)
		})
	}
}

func TestFamilyReconstructionErrorUnwrapsBoth(t *testing.T) {
	cause := &domain.ChecksumMismatchError{Stored: 1, Computed: 2}
	err := &domain.FamilyReconstructionError{Family: "git", Member: "git push", Err: cause}
	assert.True(t, errors.Is(err, domain.ErrFamilyReconstruction))
	assert.True(t, errors.Is(err, domain.ErrChecksumMismatch))
	assert.Contains(t, err.Error(), "git push")
}

func TestDecisionTextRoundTrip(t *testing.T) {
	for _, d := range []domain.Decision{domain.DecisionReject, domain.DecisionRequireHumanApproval, domain.DecisionApproveWithLogging, domain.DecisionAllow} {
		text, err := d.MarshalText()
		require.NoError(t, err)
		var back domain.Decision
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, d, back)
	}
	_, err := domain.ParseDecision("MAYBE")
	assert.Error(t, err)
}
