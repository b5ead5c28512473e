package assets

import (
	_ "embed"
)

// DefaultConfigYAML contains the embedded default configuration.
//
//go:embed defaults/config.yaml
var DefaultConfigYAML []byte

// DefaultRulesYAML contains the embedded classifier rule table.
//
//go:embed defaults/rules.yaml
var DefaultRulesYAML []byte

// DefaultDecisionYAML contains the embedded escalation and substitution rules.
//
//go:embed defaults/decision.yaml
var DefaultDecisionYAML []byte

// EvidenceSchemaJSON is the JSON Schema every evidence document must satisfy.
//
//go:embed defaults/evidence.schema.json
var EvidenceSchemaJSON []byte
