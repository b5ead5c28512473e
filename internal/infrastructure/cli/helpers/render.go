package helpers

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/domain"
)

var (
	rejectColor  = color.New(color.FgRed, color.Bold)
	approveColor = color.New(color.FgYellow, color.Bold)
	logColor     = color.New(color.FgCyan)
	allowColor   = color.New(color.FgGreen)
	dimColor     = color.New(color.Faint)
)

// DecisionColor picks the color a decision is printed in.
func DecisionColor(d domain.Decision) *color.Color {
	switch d {
	case domain.DecisionReject:
		return rejectColor
	case domain.DecisionRequireHumanApproval:
		return approveColor
	case domain.DecisionApproveWithLogging:
		return logColor
	default:
		return allowColor
	}
}

// LevelColor colors a risk level by severity.
func LevelColor(l domain.RiskLevel) *color.Color {
	switch {
	case l >= domain.RiskCritical:
		return rejectColor
	case l >= domain.RiskHigh:
		return approveColor
	case l >= domain.RiskMedium:
		return logColor
	default:
		return allowColor
	}
}

// RenderVerdict prints a verdict block.
func RenderVerdict(out io.Writer, command string, args []string, v domain.Verdict) {
	call := strings.TrimSpace(command + " " + strings.Join(args, " "))
	DecisionColor(v.Decision).Fprintf(out, "%s", v.Decision)
	fmt.Fprintf(out, "  %s\n", call)
	fmt.Fprintf(out, "  level:  %s", LevelColor(v.EffectiveLevel).Sprint(v.EffectiveLevel))
	if v.EffectiveLevel != v.StoredLevel {
		dimColor.Fprintf(out, " (stored %s)", v.StoredLevel)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  reason: %s\n", v.Reason)
	for _, esc := range v.Escalations {
		dimColor.Fprintf(out, "  rule %s: %s -> %s\n", esc.Rule, esc.From, esc.To)
	}
	if v.HasAlternative() {
		fmt.Fprintf(out, "  safer:  %s\n", allowColor.Sprint(v.Alternative))
	}
	if v.IntegrityViolation {
		rejectColor.Fprintln(out, "  integrity violation: re-classify this command")
	}
}

// RenderDescriptor prints the decoded fields of a record.
func RenderDescriptor(out io.Writer, command string, d descriptor.Descriptor) {
	fmt.Fprintf(out, "command:         %s\n", command)
	fmt.Fprintf(out, "record:          %s\n", hex.EncodeToString(d.Bytes()))
	fmt.Fprintf(out, "version:         0x%02x\n", d.Version)
	fmt.Fprintf(out, "hash:            %08x\n", d.CommandHash)
	fmt.Fprintf(out, "level:           %s\n", LevelColor(d.Level).Sprint(d.Level))
	fmt.Fprintf(out, "flags:           %s\n", d.Flags)
	fmt.Fprintf(out, "score:           %.4f\n", d.ScoreValue())
	fmt.Fprintf(out, "destructiveness: %.4f\n", d.DestructivenessValue())
	perf := descriptor.EstimateFromBuckets(d.Perf)
	fmt.Fprintf(out, "perf:            exec>=%s memory>=%dB output>=%dB\n", perf.ExecTime, perf.MemoryBytes, perf.OutputBytes)
	fmt.Fprintf(out, "checksum:        %08x\n", d.Checksum)
}

// RenderHealth prints a doctor report.
func RenderHealth(out io.Writer, report domain.HealthReport) {
	for _, check := range report.Checks {
		c := allowColor
		switch check.Status {
		case domain.HealthWarn:
			c = approveColor
		case domain.HealthError:
			c = rejectColor
		}
		c.Fprintf(out, "[%s]", strings.ToUpper(string(check.Status)))
		fmt.Fprintf(out, " %s - %s\n", check.Name, check.Details)
	}
}
