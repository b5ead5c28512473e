package decision

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/domain"
)

type recordingMetrics struct {
	mu         sync.Mutex
	decisions  []domain.Decision
	violations []string
}

func (m *recordingMetrics) RecordDecision(_ context.Context, d domain.Decision, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions = append(m.decisions, d)
}

func (m *recordingMetrics) RecordIntegrityViolation(_ context.Context, command string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations = append(m.violations, command)
}

func (m *recordingMetrics) RecordClassification(context.Context, domain.RiskLevel) {}

type recordingLogger struct {
	mu     sync.Mutex
	errors []map[string]interface{}
}

func (l *recordingLogger) Debug(string, map[string]interface{}) {}
func (l *recordingLogger) Info(string, map[string]interface{})  {}
func (l *recordingLogger) Warn(string, map[string]interface{})  {}
func (l *recordingLogger) Error(_ string, _ error, fields map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fields)
}

func defaultEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	set, err := DefaultRuleSet()
	require.NoError(t, err)
	engine, err := NewEngine(set, opts...)
	require.NoError(t, err)
	return engine
}

func record(t *testing.T, command string, level domain.RiskLevel, flags ...domain.CapabilityFlag) []byte {
	t.Helper()
	rec, err := descriptor.Encode(domain.ClassificationResult{
		Command: command,
		Level:   level,
		Score:   0.5,
		Flags:   domain.NewFlagSet(flags...),
	}, domain.PerfEstimate{})
	require.NoError(t, err)
	return rec[:]
}

func TestDecisionForMapping(t *testing.T) {
	tests := []struct {
		level      domain.RiskLevel
		unverified bool
		want       domain.Decision
	}{
		{domain.RiskCritical, false, domain.DecisionReject},
		{domain.RiskHigh, false, domain.DecisionRequireHumanApproval},
		{domain.RiskMedium, false, domain.DecisionApproveWithLogging},
		{domain.RiskLow, false, domain.DecisionAllow},
		{domain.RiskSafe, false, domain.DecisionAllow},
		{domain.RiskLow, true, domain.DecisionApproveWithLogging},
		{domain.RiskSafe, true, domain.DecisionApproveWithLogging},
		{domain.RiskHigh, true, domain.DecisionRequireHumanApproval},
	}
	for _, tt := range tests {
		if got := DecisionFor(tt.level, tt.unverified); got != tt.want {
			t.Fatalf("DecisionFor(%v, %v) = %v, want %v", tt.level, tt.unverified, got, tt.want)
		}
	}
}

func TestDecideUnverifiedLowRiskRequiresLogging(t *testing.T) {
	engine := defaultEngine(t)
	v := engine.Decide(record(t, "mystery-tool", domain.RiskLow, domain.FlagUnverified), Request{Command: "mystery-tool"})
	assert.Equal(t, domain.DecisionApproveWithLogging, v.Decision)
	assert.Equal(t, domain.RiskLow, v.EffectiveLevel)
	assert.Contains(t, v.Reason, "no documentation evidence")
}

func TestDecideCriticalRejectsWithQuarantine(t *testing.T) {
	engine := defaultEngine(t)
	v := engine.Decide(record(t, "rm", domain.RiskCritical, domain.FlagDestructive, domain.FlagDeletesFiles),
		Request{Command: "rm", Args: []string{"build", "notes.txt"}})
	assert.Equal(t, domain.DecisionReject, v.Decision)
	assert.False(t, v.IntegrityViolation)
	assert.Equal(t, "mkdir -p .riskgate_quarantine && mv build notes.txt .riskgate_quarantine/", v.Alternative)
}

func TestDecideEscalatesCallNotDescriptor(t *testing.T) {
	engine := defaultEngine(t)
	rec := record(t, "cp", domain.RiskMedium, domain.FlagModifiesFiles)

	v := engine.Decide(rec, Request{Command: "cp", Args: []string{"-r", "src", "dst"}})
	assert.Equal(t, domain.DecisionRequireHumanApproval, v.Decision)
	assert.Equal(t, domain.RiskMedium, v.StoredLevel)
	assert.Equal(t, domain.RiskHigh, v.EffectiveLevel)
	require.Len(t, v.Escalations, 1)
	assert.Equal(t, "recursive-or-force", v.Escalations[0].Rule)

	d, err := descriptor.Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, domain.RiskMedium, d.Level, "stored descriptor is untouched")

	plain := engine.Decide(rec, Request{Command: "cp", Args: []string{"a", "b"}})
	assert.Equal(t, domain.DecisionApproveWithLogging, plain.Decision)
	assert.Empty(t, plain.Escalations)
}

func TestDecideChainsEscalations(t *testing.T) {
	engine := defaultEngine(t)
	v := engine.Decide(record(t, "rm", domain.RiskMedium, domain.FlagDestructive),
		Request{Command: "/bin/rm", Args: []string{"-rf", "/"}})
	assert.Equal(t, domain.DecisionReject, v.Decision)
	assert.Equal(t, domain.RiskCritical, v.EffectiveLevel)
	require.Len(t, v.Escalations, 2)
	assert.Equal(t, "recursive-or-force", v.Escalations[0].Rule)
	assert.Equal(t, "root-target", v.Escalations[1].Rule)
}

func TestDecideNoPreserveRootNeedsHighLevel(t *testing.T) {
	engine := defaultEngine(t)
	args := []string{"--no-preserve-root", "x"}

	high := engine.Decide(record(t, "chown", domain.RiskHigh), Request{Command: "chown", Args: args})
	assert.Equal(t, domain.RiskCritical, high.EffectiveLevel)

	low := engine.Decide(record(t, "chown", domain.RiskLow), Request{Command: "chown", Args: args})
	assert.Equal(t, domain.RiskLow, low.EffectiveLevel)
	assert.Equal(t, domain.DecisionAllow, low.Decision)
}

func TestDecideRejectsCorruptRecord(t *testing.T) {
	log := &recordingLogger{}
	metrics := &recordingMetrics{}
	engine := defaultEngine(t, WithLogger(log), WithMetrics(metrics))

	rec := record(t, "ls", domain.RiskSafe)
	rec[descriptor.OffsetLevel] = byte(domain.RiskSafe) ^ 0x01

	v := engine.Decide(rec, Request{Command: "ls"})
	assert.Equal(t, domain.DecisionReject, v.Decision)
	assert.Equal(t, domain.RiskCritical, v.EffectiveLevel)
	assert.True(t, v.IntegrityViolation)
	assert.True(t, strings.HasPrefix(v.Reason, "integrity violation"))

	require.Len(t, log.errors, 1)
	assert.Equal(t, "integrity_violation", log.errors[0]["event"])
	assert.Equal(t, []string{"ls"}, metrics.violations)
	assert.Equal(t, []domain.Decision{domain.DecisionReject}, metrics.decisions)

	truncated := engine.Decide(rec[:10], Request{Command: "ls"})
	assert.True(t, truncated.IntegrityViolation)
}

func TestDecideRejectsRecordOfAnotherCommand(t *testing.T) {
	engine := defaultEngine(t)
	v := engine.Decide(record(t, "ls", domain.RiskSafe), Request{Command: "rm", Args: []string{"-rf", "/"}})
	assert.Equal(t, domain.DecisionReject, v.Decision)
	assert.True(t, v.IntegrityViolation)
}

func TestDecideCorruptRejects(t *testing.T) {
	log := &recordingLogger{}
	metrics := &recordingMetrics{}
	engine := defaultEngine(t, WithLogger(log), WithMetrics(metrics))

	v := engine.DecideCorrupt(context.Background(), " dd ", &domain.ChecksumMismatchError{Stored: 1, Computed: 2})
	assert.Equal(t, domain.DecisionReject, v.Decision)
	assert.Equal(t, domain.RiskCritical, v.EffectiveLevel)
	assert.True(t, v.IntegrityViolation)
	assert.Contains(t, v.Reason, "checksum")
	require.Len(t, log.errors, 1)
	assert.Equal(t, []string{"dd"}, metrics.violations)
	assert.Equal(t, []domain.Decision{domain.DecisionReject}, metrics.decisions)
}

func TestFailingRuleFailsClosed(t *testing.T) {
	var set RuleSet
	set.Decision.EscalationRules = []EscalationRule{{
		Name:       "numeric-first-arg",
		Expr:       "int(args[0]) > 10",
		MinLevel:   domain.RiskSafe,
		EscalateTo: domain.RiskCritical,
	}}
	engine, err := NewEngine(set)
	require.NoError(t, err)

	rec := record(t, "sleep", domain.RiskSafe)
	assert.Equal(t, domain.DecisionAllow, engine.Decide(rec, Request{Command: "sleep", Args: []string{"5"}}).Decision)
	assert.Equal(t, domain.DecisionReject, engine.Decide(rec, Request{Command: "sleep", Args: []string{"soon"}}).Decision)
	assert.Equal(t, domain.DecisionReject, engine.Decide(rec, Request{Command: "sleep"}).Decision)
}

func TestNewEngineRejectsBadRules(t *testing.T) {
	tests := map[string]EscalationRule{
		"syntax":   {Name: "broken", Expr: "args.exists(a, ", EscalateTo: domain.RiskHigh},
		"non-bool": {Name: "count", Expr: "args.size()", EscalateTo: domain.RiskHigh},
		"unknown":  {Name: "env", Expr: "env == 'prod'", EscalateTo: domain.RiskHigh},
		"unnamed":  {Expr: "true", EscalateTo: domain.RiskHigh},
	}
	for name, rule := range tests {
		t.Run(name, func(t *testing.T) {
			var set RuleSet
			set.Decision.EscalationRules = []EscalationRule{rule}
			_, err := NewEngine(set)
			assert.Error(t, err)
		})
	}

	var set RuleSet
	set.Decision.Substitutions = []Substitution{{Commands: []string{"x"}, Action: "teleport"}}
	_, err := NewEngine(set)
	assert.Error(t, err)
}

func TestDecideUnknown(t *testing.T) {
	v := defaultEngine(t).DecideUnknown("frobnicate")
	assert.Equal(t, domain.DecisionRequireHumanApproval, v.Decision)
	assert.Contains(t, v.Reason, "unknown command")
}

func TestSuggestions(t *testing.T) {
	engine := defaultEngine(t, WithQuarantineDir("/tmp/q"))
	tests := []struct {
		command string
		args    []string
		want    string
		found   bool
	}{
		{"rm", []string{"-f", "my file"}, "mkdir -p /tmp/q && mv 'my file' /tmp/q/", true},
		{"shred", []string{"secret.key"}, "mkdir -p /tmp/q && mv secret.key /tmp/q/", true},
		{"dd", []string{"if=/dev/zero", "of=/dev/sda"}, "", true},
		{"mkfs.ext4", []string{"/dev/sdb1"}, "", true},
		{"fdisk", []string{"/dev/sda"}, "fdisk -l", true},
		{"kill", []string{"-9", "1234"}, "ps -p 1234", true},
		{"killall", []string{"nginx"}, "pgrep -l nginx", true},
		{"chmod", []string{"-R", "777", "/srv"}, "chmod -R 755 /srv", true},
		{"chmod", []string{"644", "a.txt"}, "", false},
		{"ls", []string{"-la"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.command+" "+strings.Join(tt.args, " "), func(t *testing.T) {
			s, ok := engine.Suggest(tt.command, tt.args)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.want, s.Command)
		})
	}
}

func TestLoadRuleSet(t *testing.T) {
	set, err := LoadRuleSet(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.NotEmpty(t, set.Decision.EscalationRules)
	assert.NotEmpty(t, set.Decision.Substitutions)

	path := filepath.Join(t.TempDir(), "decision.yaml")
	content := `decision:
  escalation_rules:
    - name: sudo-anything
      expr: "command == 'sudo'"
      min_level: low
      escalate_to: critical
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	set, err = LoadRuleSet(path)
	require.NoError(t, err)
	require.Len(t, set.Decision.EscalationRules, 1)
	assert.Equal(t, domain.RiskLow, set.Decision.EscalationRules[0].MinLevel)
	assert.Equal(t, domain.RiskCritical, set.Decision.EscalationRules[0].EscalateTo)
	assert.NotEmpty(t, set.Decision.Substitutions, "substitutions fall back to defaults")

	engine, err := NewEngine(set)
	require.NoError(t, err)
	assert.Equal(t, []string{"sudo-anything"}, engine.RuleNames())
}
