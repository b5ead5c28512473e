package decision

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/riskgate/assets"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/pkg/filesystem"
)

// EscalationRule raises the effective level of a call whose arguments match
// Expr. It applies only when the stored level is at least MinLevel.
type EscalationRule struct {
	Name       string           `yaml:"name"`
	Expr       string           `yaml:"expr"`
	MinLevel   domain.RiskLevel `yaml:"min_level"`
	EscalateTo domain.RiskLevel `yaml:"escalate_to"`
}

// Substitution actions.
const (
	ActionQuarantine = "quarantine"
	ActionNone       = "none"
	ActionReplace    = "replace"
	ActionRewriteArg = "rewrite_arg"
)

// Substitution maps a dangerous command to a safer alternative.
type Substitution struct {
	Commands    []string `yaml:"commands"`
	Prefixes    []string `yaml:"prefixes,omitempty"`
	Action      string   `yaml:"action"`
	Template    string   `yaml:"template,omitempty"`
	WhenArg     string   `yaml:"when_arg,omitempty"`
	ReplaceWith string   `yaml:"replace_with,omitempty"`
	Note        string   `yaml:"note,omitempty"`
}

// RuleSet is the YAML schema root.
type RuleSet struct {
	Decision struct {
		EscalationRules []EscalationRule `yaml:"escalation_rules"`
		Substitutions   []Substitution   `yaml:"substitutions"`
	} `yaml:"decision"`
}

// DefaultRulesPath is where user overrides live.
func DefaultRulesPath() string {
	return filepath.Join(filesystem.StateDir(), "decision.yaml")
}

// LoadRuleSet reads the decision rules, falling back to the embedded set
// when the file is absent. Empty sections are taken from the embedded set.
func LoadRuleSet(path string) (RuleSet, error) {
	if path == "" {
		path = DefaultRulesPath()
	}
	data, err := os.ReadFile(filesystem.ExpandPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultRuleSet()
		}
		return RuleSet{}, fmt.Errorf("read decision rules %s: %w", path, err)
	}
	return ParseRuleSet(data)
}

// DefaultRuleSet parses the embedded rules.
func DefaultRuleSet() (RuleSet, error) {
	var set RuleSet
	if err := yaml.Unmarshal(assets.DefaultDecisionYAML, &set); err != nil {
		return RuleSet{}, fmt.Errorf("parse embedded decision rules: %w", err)
	}
	return set, nil
}

// ParseRuleSet parses YAML rules and fills empty sections from the defaults.
func ParseRuleSet(data []byte) (RuleSet, error) {
	var set RuleSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return RuleSet{}, fmt.Errorf("parse decision rules: %w", err)
	}
	if len(set.Decision.EscalationRules) > 0 && len(set.Decision.Substitutions) > 0 {
		return set, nil
	}
	defaults, err := DefaultRuleSet()
	if err != nil {
		return RuleSet{}, err
	}
	if len(set.Decision.EscalationRules) == 0 {
		set.Decision.EscalationRules = defaults.Decision.EscalationRules
	}
	if len(set.Decision.Substitutions) == 0 {
		set.Decision.Substitutions = defaults.Decision.Substitutions
	}
	return set, nil
}

func (s Substitution) validate(i int) error {
	if len(s.Commands) == 0 && len(s.Prefixes) == 0 {
		return fmt.Errorf("substitution %d: no commands", i)
	}
	switch s.Action {
	case ActionQuarantine, ActionNone:
	case ActionReplace:
		if strings.TrimSpace(s.Template) == "" {
			return fmt.Errorf("substitution %d: replace requires a template", i)
		}
	case ActionRewriteArg:
		if s.WhenArg == "" || s.ReplaceWith == "" {
			return fmt.Errorf("substitution %d: rewrite_arg requires when_arg and replace_with", i)
		}
	default:
		return fmt.Errorf("substitution %d: unknown action %q", i, s.Action)
	}
	return nil
}

func (s Substitution) matches(command string) bool {
	for _, c := range s.Commands {
		if c == command {
			return true
		}
	}
	for _, p := range s.Prefixes {
		if strings.HasPrefix(command, p) {
			return true
		}
	}
	return false
}
