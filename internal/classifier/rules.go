package classifier

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/riskgate/assets"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/pkg/filesystem"
)

// FlagRule sets Flag on every evidence item of Category whose rationale
// matches Pattern. An empty pattern matches every item of the category.
type FlagRule struct {
	Category domain.EvidenceCategory `yaml:"category"`
	Pattern  string                  `yaml:"pattern,omitempty"`
	Flag     string                  `yaml:"flag"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules struct {
		Thresholds      domain.Thresholds                   `yaml:"thresholds"`
		CategoryWeights map[domain.EvidenceCategory]float64 `yaml:"category_weights"`
		FlagRules       []FlagRule                          `yaml:"flag_rules"`
	} `yaml:"rules"`
}

type compiledRule struct {
	category domain.EvidenceCategory
	re       *regexp.Regexp
	flag     domain.CapabilityFlag
}

// RuleTable is a validated, compiled RulesFile.
type RuleTable struct {
	thresholds domain.Thresholds
	weights    map[domain.EvidenceCategory]float64
	rules      []compiledRule
}

// DefaultRulesPath is where user overrides live.
func DefaultRulesPath() string {
	return filepath.Join(filesystem.StateDir(), "rules.yaml")
}

// LoadRules reads a rules file, falling back to the embedded defaults when
// the file does not exist or declares no flag rules.
func LoadRules(path string) (RuleTable, error) {
	if path == "" {
		path = DefaultRulesPath()
	}
	data, err := os.ReadFile(filesystem.ExpandPath(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultRules()
		}
		return RuleTable{}, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// DefaultRules compiles the embedded rule table.
func DefaultRules() (RuleTable, error) {
	return ParseRules(assets.DefaultRulesYAML)
}

// ParseRules compiles a YAML rule table. Missing sections are filled from
// the embedded defaults.
func ParseRules(data []byte) (RuleTable, error) {
	var file RulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return RuleTable{}, fmt.Errorf("parse rules: %w", err)
	}
	if len(file.Rules.FlagRules) == 0 {
		defaults, err := DefaultRules()
		if err != nil {
			return RuleTable{}, err
		}
		return defaults.merge(file)
	}
	return compileRules(file)
}

func (t RuleTable) merge(file RulesFile) (RuleTable, error) {
	out := RuleTable{thresholds: t.thresholds, weights: map[domain.EvidenceCategory]float64{}, rules: t.rules}
	for k, v := range t.weights {
		out.weights[k] = v
	}
	if !file.Rules.Thresholds.IsZero() {
		if err := file.Rules.Thresholds.Validate(); err != nil {
			return RuleTable{}, err
		}
		out.thresholds = file.Rules.Thresholds
	}
	for k, v := range file.Rules.CategoryWeights {
		if err := validateWeight(k, v); err != nil {
			return RuleTable{}, err
		}
		out.weights[k] = v
	}
	return out, nil
}

func compileRules(file RulesFile) (RuleTable, error) {
	table := RuleTable{
		thresholds: file.Rules.Thresholds,
		weights:    defaultWeights(),
	}
	if table.thresholds.IsZero() {
		table.thresholds = domain.DefaultThresholds()
	}
	if err := table.thresholds.Validate(); err != nil {
		return RuleTable{}, err
	}
	for k, v := range file.Rules.CategoryWeights {
		if err := validateWeight(k, v); err != nil {
			return RuleTable{}, err
		}
		table.weights[k] = v
	}
	for i, rule := range file.Rules.FlagRules {
		if !rule.Category.Valid() {
			return RuleTable{}, fmt.Errorf("flag rule %d: unknown category %q", i, rule.Category)
		}
		flag, err := domain.ParseCapabilityFlag(rule.Flag)
		if err != nil {
			return RuleTable{}, fmt.Errorf("flag rule %d: %w", i, err)
		}
		if flag == domain.FlagUnverified {
			return RuleTable{}, fmt.Errorf("flag rule %d: %s is reserved for results without evidence", i, flag)
		}
		compiled := compiledRule{category: rule.Category, flag: flag}
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return RuleTable{}, fmt.Errorf("flag rule %d: %w", i, err)
			}
			compiled.re = re
		}
		table.rules = append(table.rules, compiled)
	}
	return table, nil
}

func defaultWeights() map[domain.EvidenceCategory]float64 {
	weights := make(map[domain.EvidenceCategory]float64, len(domain.EvidenceCategories))
	for _, c := range domain.EvidenceCategories {
		weights[c] = 1.0
	}
	weights[domain.CategoryDocumentedNote] = domain.DefaultNoteWeight
	return weights
}

func validateWeight(c domain.EvidenceCategory, w float64) error {
	if !c.Valid() {
		return fmt.Errorf("category weight: unknown category %q", c)
	}
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return fmt.Errorf("category weight %s: %g must be a finite non-negative number", c, w)
	}
	return nil
}

// Thresholds returns the level boundaries.
func (t RuleTable) Thresholds() domain.Thresholds {
	return t.thresholds
}

// Weight returns the multiplier for a category.
func (t RuleTable) Weight(c domain.EvidenceCategory) float64 {
	if w, ok := t.weights[c]; ok {
		return w
	}
	return 1.0
}

// RuleCount returns the number of flag rules.
func (t RuleTable) RuleCount() int {
	return len(t.rules)
}

// WithThresholds returns a copy using th. th must validate.
func (t RuleTable) WithThresholds(th domain.Thresholds) (RuleTable, error) {
	if err := th.Validate(); err != nil {
		return RuleTable{}, err
	}
	t.thresholds = th
	return t, nil
}

func (t RuleTable) flagsFor(item domain.EvidenceItem) domain.FlagSet {
	var set domain.FlagSet
	for _, rule := range t.rules {
		if rule.category != item.Category {
			continue
		}
		if rule.re == nil || rule.re.MatchString(item.Rationale) {
			set = set.With(rule.flag)
		}
	}
	return set
}
