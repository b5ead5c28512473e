package commands

import (
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/doeshing/riskgate/internal/app"
	"github.com/doeshing/riskgate/internal/application/classify"
	"github.com/doeshing/riskgate/internal/audit"
	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/evidence"
	"github.com/doeshing/riskgate/internal/infrastructure/cli/helpers"
)

type classifyOutput struct {
	Command    string `json:"command"`
	Family     string `json:"family,omitempty"`
	Level      string `json:"level,omitempty"`
	Record     string `json:"record,omitempty"`
	Superseded bool   `json:"superseded,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewClassifyCommand creates the classify command
func NewClassifyCommand(container *app.Container) *cobra.Command {
	var (
		output    string
		showAudit bool
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "classify <evidence-file>...",
		Short: "Classify commands from evidence files and store their descriptors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			if err := ready(container); err != nil {
				return err
			}
			svc := *container.ClassifyService
			if dryRun {
				svc.Registry = nil
			}

			ctx, span := container.Telemetry.StartSpan(cmd.Context(), "riskgate.classify",
				attribute.Int("riskgate.files", len(args)),
				attribute.Bool("riskgate.dry_run", dryRun),
			)
			defer span.End()

			summary, err := svc.ClassifyAll(ctx, evidence.FileSource{Paths: args})
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			span.SetAttributes(
				attribute.Int("riskgate.succeeded", summary.Succeeded),
				attribute.Int("riskgate.failed", summary.Failed),
			)

			out := cmd.OutOrStdout()
			if output == OutputJSON {
				if err := writeJSON(out, classifyOutputs(summary)); err != nil {
					return err
				}
			} else {
				displayClassifySummary(out, summary, showAudit)
			}

			if summary.Failed > 0 {
				span.SetStatus(codes.Error, "classification failures")
				return fmt.Errorf("%d of %d commands failed to classify", summary.Failed, len(summary.Outcomes))
			}
			return nil
		},
	}

	addOutputFlag(cmd, &output)
	cmd.Flags().BoolVar(&showAudit, "audit", false, "Print the audit report for every classified command")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Classify and encode without storing descriptors")
	return cmd
}

func classifyOutputs(summary classify.Summary) []classifyOutput {
	out := make([]classifyOutput, 0, len(summary.Outcomes))
	for _, o := range summary.Outcomes {
		item := classifyOutput{Command: o.Command, Family: o.Family, Superseded: o.Superseded}
		if o.Err != nil {
			item.Error = o.Err.Error()
		} else {
			item.Level = o.Result.Level.String()
			item.Record = hex.EncodeToString(o.Record[:])
		}
		out = append(out, item)
	}
	return out
}

// displayClassifySummary prints one line per command and a totals line
func displayClassifySummary(out io.Writer, summary classify.Summary, showAudit bool) {
	for _, o := range summary.Outcomes {
		switch {
		case o.Err != nil:
			fmt.Fprintf(out, "%-24s error: %v\n", o.Command, o.Err)
		case o.Superseded:
			fmt.Fprintf(out, "%-24s %s (kept newer stored descriptor)\n", o.Command, o.Result.Level)
		default:
			fmt.Fprintf(out, "%-24s %s %s\n", o.Command,
				helpers.LevelColor(o.Result.Level).Sprintf("%-13s", o.Result.Level),
				hex.EncodeToString(o.Record[:]))
		}
		if showAudit && o.Err == nil {
			if d, err := descriptor.Decode(o.Record[:]); err == nil {
				fmt.Fprintln(out, audit.Render(o.Result, d.Checksum))
			}
		}
	}
	fmt.Fprintf(out, "\n%d classified, %d superseded, %d failed\n", summary.Succeeded, summary.Superseded, summary.Failed)
}
