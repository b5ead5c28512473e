// Package classifier turns documentation-derived evidence into a risk level,
// a score, and a set of capability flags.
//
// Contributions are combined with a noisy-OR, score = 1 - prod(1 - c_i), so a
// single severe finding dominates, adding or strengthening evidence never
// lowers the score, and the score never exceeds 1.
package classifier

import (
	"github.com/doeshing/riskgate/internal/domain"
)

// Classifier is safe for concurrent use; it holds no mutable state.
type Classifier struct {
	table RuleTable
}

// New builds a classifier over a compiled rule table.
func New(table RuleTable) *Classifier {
	return &Classifier{table: table}
}

// NewFromFile loads the rule table at path (or the embedded defaults).
func NewFromFile(path string) (*Classifier, error) {
	table, err := LoadRules(path)
	if err != nil {
		return nil, err
	}
	return New(table), nil
}

// Rules exposes the compiled table.
func (c *Classifier) Rules() RuleTable {
	return c.table
}

// Classify scores a command. Malformed input yields *domain.MalformedEvidenceError
// and no result. The returned evidence slice is a copy of items.
func (c *Classifier) Classify(command string, items []domain.EvidenceItem) (domain.ClassificationResult, error) {
	name := domain.NormalizeCommand(command)
	if name == "" {
		return domain.ClassificationResult{}, &domain.MalformedEvidenceError{Index: -1, Field: "command", Reason: "empty command name"}
	}
	for i, item := range items {
		if err := item.Validate(i); err != nil {
			if malformed, ok := err.(*domain.MalformedEvidenceError); ok {
				malformed.Command = name
			}
			return domain.ClassificationResult{}, err
		}
	}

	th := c.table.Thresholds()
	if len(items) == 0 {
		return domain.ClassificationResult{
			Command: name,
			Level:   domain.RiskLow,
			Score:   th.Low,
			Flags:   domain.NewFlagSet(domain.FlagUnverified),
			Evidence: []domain.EvidenceItem{{
				Category:         domain.CategoryDocumentedNote,
				Rationale:        domain.NoEvidenceRationale,
				RiskContribution: th.Low,
				Confidence:       1,
			}},
			Contributions: []float64{th.Low},
		}, nil
	}

	evidence := make([]domain.EvidenceItem, len(items))
	copy(evidence, items)
	contributions := make([]float64, len(items))

	safe, intact := 1.0, 1.0
	var flags domain.FlagSet
	for i, item := range evidence {
		ci := clamp01(c.table.Weight(item.Category) * item.Weighted())
		contributions[i] = ci
		safe *= 1 - ci
		if item.Category == domain.CategoryDestructiveCapability {
			intact *= 1 - ci
		}
		flags |= c.table.flagsFor(item)
	}
	score := clamp01(1 - safe)

	return domain.ClassificationResult{
		Command:         name,
		Level:           th.LevelFor(score),
		Score:           score,
		Destructiveness: clamp01(1 - intact),
		Flags:           flags,
		Evidence:        evidence,
		Contributions:   contributions,
	}, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
