// Package audit projects a classification into a human-readable report and
// a canonical JSON document. It never recomputes anything the classifier
// decided.
package audit

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gowebpki/jcs"

	"github.com/doeshing/riskgate/internal/domain"
)

// Item is one evidence line of a report.
type Item struct {
	Index        int     `json:"index"`
	Category     string  `json:"category"`
	Rationale    string  `json:"rationale"`
	Risk         float64 `json:"risk_contribution"`
	Confidence   float64 `json:"confidence"`
	Contribution float64 `json:"contribution"`
}

// Report is the serializable projection of a classification.
type Report struct {
	Command         string   `json:"command"`
	Level           string   `json:"level"`
	Score           float64  `json:"score"`
	Destructiveness float64  `json:"destructiveness"`
	Flags           []string `json:"flags"`
	Checksum        string   `json:"checksum"`
	Evidence        []Item   `json:"evidence"`
}

// Build projects result and the checksum of its encoded descriptor.
func Build(result domain.ClassificationResult, checksum uint32) Report {
	r := Report{
		Command:         result.Command,
		Level:           result.Level.String(),
		Score:           result.Score,
		Destructiveness: result.Destructiveness,
		Flags:           result.Flags.Names(),
		Checksum:        fmt.Sprintf("%08x", checksum),
		Evidence:        make([]Item, len(result.Evidence)),
	}
	for i, e := range result.Evidence {
		item := Item{
			Index:      i,
			Category:   string(e.Category),
			Rationale:  e.Rationale,
			Risk:       e.RiskContribution,
			Confidence: e.Confidence,
		}
		if i < len(result.Contributions) {
			item.Contribution = result.Contributions[i]
		}
		r.Evidence[i] = item
	}
	return r
}

// Render formats a plain-text audit report.
func Render(result domain.ClassificationResult, checksum uint32) string {
	return Build(result, checksum).Text()
}

// Text formats the report as Render does.
func (r Report) Text() string {
	flags := "none"
	if len(r.Flags) > 0 {
		flags = strings.Join(r.Flags, "|")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "command:         %s\n", r.Command)
	fmt.Fprintf(&b, "level:           %s\n", r.Level)
	fmt.Fprintf(&b, "score:           %.4f\n", r.Score)
	fmt.Fprintf(&b, "destructiveness: %.4f\n", r.Destructiveness)
	fmt.Fprintf(&b, "flags:           %s\n", flags)
	fmt.Fprintf(&b, "checksum:        0x%s\n", r.Checksum)
	fmt.Fprintf(&b, "evidence:        %d item(s)\n", len(r.Evidence))
	for _, item := range r.Evidence {
		fmt.Fprintf(&b, "  [%d] %-22s risk=%.2f confidence=%.2f contribution=%.4f\n",
			item.Index, item.Category, item.Risk, item.Confidence, item.Contribution)
		fmt.Fprintf(&b, "      %s\n", item.Rationale)
	}
	return b.String()
}

// Describes reports whether the report was built for the descriptor of
// command sealed with checksum.
func (r Report) Describes(command string, checksum uint32) bool {
	return r.Command == command && r.Checksum == fmt.Sprintf("%08x", checksum)
}

// Parse reads a report written by RenderJSON and rejects input that is not
// in canonical form.
func Parse(data []byte) (Report, error) {
	canonical, err := jcs.Transform(data)
	if err != nil {
		return Report{}, fmt.Errorf("canonicalize audit report: %w", err)
	}
	if !bytes.Equal(canonical, data) {
		return Report{}, errors.New("audit report is not in canonical form")
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return Report{}, fmt.Errorf("parse audit report: %w", err)
	}
	return r, nil
}

// RenderJSON returns the RFC 8785 canonical JSON form of the report.
func RenderJSON(result domain.ClassificationResult, checksum uint32) ([]byte, error) {
	raw, err := json.Marshal(Build(result, checksum))
	if err != nil {
		return nil, fmt.Errorf("marshal audit report: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("canonicalize audit report: %w", err)
	}
	return canonical, nil
}

// Fingerprint is the hex SHA-256 of the canonical JSON. Two audits with the
// same fingerprint describe the same classifier state.
func Fingerprint(result domain.ClassificationResult, checksum uint32) (string, error) {
	canonical, err := RenderJSON(result, checksum)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
