//go:build property
// +build property

package classifier_test

import (
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/doeshing/riskgate/internal/classifier"
	"github.com/doeshing/riskgate/internal/domain"
)

func mustClassifier(t *testing.T) *classifier.Classifier {
	table, err := classifier.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules error: %v", err)
	}
	return classifier.New(table)
}

func items(risks, confidences []float64) []domain.EvidenceItem {
	out := make([]domain.EvidenceItem, 0, len(risks))
	for i := 0; i < len(risks) && i < len(confidences); i++ {
		out = append(out, domain.EvidenceItem{
			Category:         domain.EvidenceCategories[i%len(domain.EvidenceCategories)],
			Rationale:        "generated finding",
			RiskContribution: risks[i],
			Confidence:       confidences[i],
		})
	}
	return out
}

// TestScoreMonotonicity verifies raising one item's risk never lowers score or level.
// Property: risk' >= risk => score' >= score && level' >= level
func TestScoreMonotonicity(t *testing.T) {
	c := mustClassifier(t)
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	properties.Property("raising a contribution never lowers the result", prop.ForAll(
		func(risks, confidences []float64, pick int, bump float64) bool {
			base := items(risks, confidences)
			if len(base) == 0 {
				return true
			}
			before, err := c.Classify("tool", base)
			if err != nil {
				return false
			}
			raised := append([]domain.EvidenceItem(nil), base...)
			idx := pick % len(raised)
			raised[idx].RiskContribution = math.Min(1, raised[idx].RiskContribution+bump*(1-raised[idx].RiskContribution))
			after, err := c.Classify("tool", raised)
			if err != nil {
				return false
			}
			return after.Score >= before.Score && after.Level >= before.Level
		},
		gen.SliceOf(gen.Float64Range(0, 1)),
		gen.SliceOf(gen.Float64Range(0, 1)),
		gen.IntRange(0, 1000),
		gen.Float64Range(0, 1),
	))

	properties.Property("score is bounded by the largest contribution and 1", prop.ForAll(
		func(risks, confidences []float64) bool {
			base := items(risks, confidences)
			result, err := c.Classify("tool", base)
			if err != nil {
				return false
			}
			for _, contribution := range result.Contributions {
				if result.Score < contribution {
					return false
				}
			}
			return result.Score >= 0 && result.Score <= 1
		},
		gen.SliceOf(gen.Float64Range(0, 1)),
		gen.SliceOf(gen.Float64Range(0, 1)),
	))

	properties.TestingRun(t)
}

// TestClassifyDeterminism verifies identical input yields identical output.
func TestClassifyDeterminism(t *testing.T) {
	c := mustClassifier(t)
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("classify is a pure function", prop.ForAll(
		func(risks, confidences []float64) bool {
			base := items(risks, confidences)
			a, errA := c.Classify("tool", base)
			b, errB := c.Classify("tool", base)
			if errA != nil || errB != nil {
				return false
			}
			return a.Score == b.Score && a.Level == b.Level && a.Flags == b.Flags &&
				a.Destructiveness == b.Destructiveness
		},
		gen.SliceOf(gen.Float64Range(0, 1)),
		gen.SliceOf(gen.Float64Range(0, 1)),
	))

	properties.TestingRun(t)
}
