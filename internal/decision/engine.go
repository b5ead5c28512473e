// Package decision turns a stored descriptor and a concrete invocation into
// a verdict. It never mutates the descriptor: argument rules only raise the
// level of the call being judged.
package decision

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/pkg/logger"
	"github.com/doeshing/riskgate/internal/ports"
)

// celCostLimit bounds the work a single rule may do per evaluation.
const celCostLimit = 100000

// Request is one attempted invocation.
type Request struct {
	Command string
	Args    []string
}

type compiledRule struct {
	rule    EscalationRule
	program cel.Program
}

// Engine is safe for concurrent use once built.
type Engine struct {
	rules         []compiledRule
	substitutions []Substitution
	quarantineDir string
	logger        ports.Logger
	metrics       ports.Metrics
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger routes integrity violations to log.
func WithLogger(log ports.Logger) Option {
	return func(e *Engine) { e.logger = log }
}

// WithMetrics records decisions and integrity violations.
func WithMetrics(m ports.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithQuarantineDir sets the directory used by quarantine alternatives.
func WithQuarantineDir(dir string) Option {
	return func(e *Engine) {
		if dir != "" {
			e.quarantineDir = dir
		}
	}
}

// NewEngine compiles every escalation rule. A rule that does not compile to
// a boolean expression is a configuration error.
func NewEngine(set RuleSet, opts ...Option) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("command", cel.StringType),
		cel.Variable("args", cel.ListType(cel.StringType)),
		cel.Variable("level", cel.StringType),
		cel.Variable("flags", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	e := &Engine{
		quarantineDir: domain.DefaultQuarantineDir,
		logger:        logger.Nop{},
	}
	for _, opt := range opts {
		opt(e)
	}

	seen := map[string]bool{}
	for i, rule := range set.Decision.EscalationRules {
		if rule.Name == "" || rule.Expr == "" {
			return nil, fmt.Errorf("escalation rule %d: name and expr are required", i)
		}
		if seen[rule.Name] {
			return nil, fmt.Errorf("escalation rule %q: duplicate name", rule.Name)
		}
		seen[rule.Name] = true
		if !rule.MinLevel.Valid() || !rule.EscalateTo.Valid() {
			return nil, fmt.Errorf("escalation rule %q: invalid level", rule.Name)
		}
		ast, issues := env.Compile(rule.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("escalation rule %q: CEL compile error: %w", rule.Name, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("escalation rule %q: expression must return bool, got %s", rule.Name, ast.OutputType())
		}
		program, err := env.Program(ast, cel.CostLimit(celCostLimit))
		if err != nil {
			return nil, fmt.Errorf("escalation rule %q: CEL program error: %w", rule.Name, err)
		}
		e.rules = append(e.rules, compiledRule{rule: rule, program: program})
	}

	for i, sub := range set.Decision.Substitutions {
		if err := sub.validate(i); err != nil {
			return nil, err
		}
	}
	e.substitutions = append([]Substitution(nil), set.Decision.Substitutions...)
	return e, nil
}

// RuleNames lists the escalation rules in evaluation order.
func (e *Engine) RuleNames() []string {
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.rule.Name
	}
	return names
}

// Decide judges req against the raw stored record.
func (e *Engine) Decide(record []byte, req Request) domain.Verdict {
	return e.DecideContext(context.Background(), record, req)
}

// DecideContext is Decide with a context for metrics export.
func (e *Engine) DecideContext(ctx context.Context, record []byte, req Request) domain.Verdict {
	start := time.Now()
	v := e.decide(ctx, record, req)
	if e.metrics != nil {
		e.metrics.RecordDecision(ctx, v.Decision, time.Since(start))
	}
	return v
}

// DecideCorrupt is the verdict for a command whose stored record already
// failed its integrity check with cause.
func (e *Engine) DecideCorrupt(ctx context.Context, command string, cause error) domain.Verdict {
	start := time.Now()
	v := e.integrityViolation(ctx, domain.NormalizeCommand(command), cause)
	if e.metrics != nil {
		e.metrics.RecordDecision(ctx, v.Decision, time.Since(start))
	}
	return v
}

func (e *Engine) integrityViolation(ctx context.Context, name string, err error) domain.Verdict {
	e.logger.Error("descriptor failed integrity check", err, map[string]interface{}{
		"event":   "integrity_violation",
		"command": name,
	})
	if e.metrics != nil {
		e.metrics.RecordIntegrityViolation(ctx, name)
	}
	return domain.Verdict{
		Decision:           domain.DecisionReject,
		Reason:             "integrity violation: " + err.Error(),
		EffectiveLevel:     domain.RiskCritical,
		StoredLevel:        domain.RiskCritical,
		IntegrityViolation: true,
	}
}

func (e *Engine) decide(ctx context.Context, record []byte, req Request) domain.Verdict {
	name := domain.NormalizeCommand(req.Command)
	base := path.Base(name)
	d, err := descriptor.Decode(record)
	if err == nil && name != "" && !d.MatchesCommand(base) && !d.MatchesCommand(name) {
		err = fmt.Errorf("descriptor hash %08x does not belong to %q", d.CommandHash, name)
	}
	if err != nil {
		return e.integrityViolation(ctx, name, err)
	}

	effective, escalations := e.escalate(base, req.Args, d)
	v := domain.Verdict{
		StoredLevel:    d.Level,
		EffectiveLevel: effective,
		Escalations:    escalations,
	}
	v.Decision = DecisionFor(effective, d.Flags.Has(domain.FlagUnverified))
	v.Reason = reason(v, d.Flags)
	if v.Decision == domain.DecisionReject {
		if s, ok := e.suggest(base, req.Args); ok {
			v.Alternative = s.Command
			if s.Note != "" {
				v.Reason += "; " + s.Note
			}
		}
	}
	return v
}

// DecideUnknown is the verdict for a command without any descriptor.
func (e *Engine) DecideUnknown(command string) domain.Verdict {
	return domain.Verdict{
		Decision:       domain.DecisionRequireHumanApproval,
		Reason:         fmt.Sprintf("unknown command %q: no descriptor on record", domain.NormalizeCommand(command)),
		StoredLevel:    domain.RiskHigh,
		EffectiveLevel: domain.RiskHigh,
	}
}

// Suggest returns the safer substitute for a call regardless of its level.
func (e *Engine) Suggest(command string, args []string) (Suggestion, bool) {
	return e.suggest(path.Base(domain.NormalizeCommand(command)), args)
}

func (e *Engine) escalate(command string, args []string, d descriptor.Descriptor) (domain.RiskLevel, []domain.Escalation) {
	if args == nil {
		args = []string{}
	}
	activation := map[string]interface{}{
		"command": command,
		"args":    args,
		"level":   d.Level.String(),
		"flags":   d.Flags.Names(),
	}

	current := d.Level
	var escalations []domain.Escalation
	for _, r := range e.rules {
		if current < r.rule.MinLevel {
			continue
		}
		matched := true
		out, _, err := r.program.Eval(activation)
		if err != nil {
			e.logger.Warn("escalation rule failed, treating as matched", map[string]interface{}{
				"rule":  r.rule.Name,
				"error": err.Error(),
			})
		} else if b, ok := out.Value().(bool); ok {
			matched = b
		}
		if !matched {
			continue
		}
		next := domain.MaxLevel(current, r.rule.EscalateTo)
		if next != current {
			escalations = append(escalations, domain.Escalation{Rule: r.rule.Name, From: current, To: next})
			current = next
		}
	}
	return current, escalations
}

// DecisionFor maps an effective level to a decision. Results built without
// evidence are never silently allowed.
func DecisionFor(level domain.RiskLevel, unverified bool) domain.Decision {
	switch {
	case level >= domain.RiskCritical:
		return domain.DecisionReject
	case level == domain.RiskHigh:
		return domain.DecisionRequireHumanApproval
	case level == domain.RiskMedium:
		return domain.DecisionApproveWithLogging
	case unverified:
		return domain.DecisionApproveWithLogging
	default:
		return domain.DecisionAllow
	}
}

func reason(v domain.Verdict, flags domain.FlagSet) string {
	msg := fmt.Sprintf("level %s", v.EffectiveLevel)
	if len(v.Escalations) > 0 {
		msg = fmt.Sprintf("stored level %s escalated to %s", v.StoredLevel, v.EffectiveLevel)
		for _, esc := range v.Escalations {
			msg += fmt.Sprintf(" [%s]", esc.Rule)
		}
	}
	if flags.Has(domain.FlagUnverified) && v.EffectiveLevel <= domain.RiskLow {
		msg += "; no documentation evidence, logging required"
	}
	return msg
}
