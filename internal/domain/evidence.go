package domain

import (
	"fmt"
	"math"
	"strings"
)

// EvidenceCategory classifies one documentation-derived finding.
type EvidenceCategory string

const (
	CategoryNamePattern           EvidenceCategory = "name-pattern"
	CategoryDestructiveCapability EvidenceCategory = "destructive-capability"
	CategoryNetworkAccess         EvidenceCategory = "network-access"
	CategoryFileOperation         EvidenceCategory = "file-operation"
	CategorySystemOperation       EvidenceCategory = "system-operation"
	CategoryDocumentedNote        EvidenceCategory = "documented-note"
)

// EvidenceCategories lists every category in a stable order.
var EvidenceCategories = []EvidenceCategory{
	CategoryNamePattern,
	CategoryDestructiveCapability,
	CategoryNetworkAccess,
	CategoryFileOperation,
	CategorySystemOperation,
	CategoryDocumentedNote,
}

// Valid reports whether c is a known category.
func (c EvidenceCategory) Valid() bool {
	for _, known := range EvidenceCategories {
		if c == known {
			return true
		}
	}
	return false
}

// EvidenceItem is one discrete finding supporting a risk judgment.
type EvidenceItem struct {
	Category         EvidenceCategory `json:"category" yaml:"category"`
	Rationale        string           `json:"rationale" yaml:"rationale"`
	RiskContribution float64          `json:"risk_contribution" yaml:"risk_contribution"`
	Confidence       float64          `json:"confidence" yaml:"confidence"`
}

// Weighted returns risk_contribution x confidence.
func (e EvidenceItem) Weighted() float64 {
	return e.RiskContribution * e.Confidence
}

// Validate checks the required fields. index is reported in the error.
func (e EvidenceItem) Validate(index int) error {
	switch {
	case e.Category == "":
		return &MalformedEvidenceError{Index: index, Field: "category", Reason: "missing"}
	case !e.Category.Valid():
		return &MalformedEvidenceError{Index: index, Field: "category", Reason: fmt.Sprintf("unknown category %q", e.Category)}
	case strings.TrimSpace(e.Rationale) == "":
		return &MalformedEvidenceError{Index: index, Field: "rationale", Reason: "missing"}
	}
	if reason := unitIntervalProblem(e.RiskContribution); reason != "" {
		return &MalformedEvidenceError{Index: index, Field: "risk_contribution", Reason: reason}
	}
	if reason := unitIntervalProblem(e.Confidence); reason != "" {
		return &MalformedEvidenceError{Index: index, Field: "confidence", Reason: reason}
	}
	return nil
}

func unitIntervalProblem(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "not a finite number"
	}
	if v < 0 || v > 1 {
		return fmt.Sprintf("%g outside [0,1]", v)
	}
	return ""
}

// EvidenceDocument is the ingestion unit produced by the external extractor:
// one command, optionally grouped into a family, with its findings.
type EvidenceDocument struct {
	Command     string         `json:"command" yaml:"command"`
	ToolVersion string         `json:"version,omitempty" yaml:"version,omitempty"`
	Family      string         `json:"family,omitempty" yaml:"family,omitempty"`
	Perf        PerfEstimate   `json:"perf" yaml:"perf"`
	Evidence    []EvidenceItem `json:"evidence" yaml:"evidence"`
}
