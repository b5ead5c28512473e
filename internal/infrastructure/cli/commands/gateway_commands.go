package commands

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/doeshing/riskgate/internal/app"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/infrastructure/cli/helpers"
)

type lookupOutput struct {
	Command         string   `json:"command"`
	Record          string   `json:"record"`
	Level           string   `json:"level"`
	Flags           []string `json:"flags"`
	Score           float64  `json:"score"`
	Destructiveness float64  `json:"destructiveness"`
	Checksum        string   `json:"checksum"`
}

type decideOutput struct {
	Command string         `json:"command"`
	Args    []string       `json:"args"`
	Verdict domain.Verdict `json:"verdict"`
}

// NewLookupCommand creates the lookup command
func NewLookupCommand(container *app.Container) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "lookup <command>",
		Short: "Show the stored descriptor for a command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			if err := ready(container); err != nil {
				return err
			}
			d, found, err := container.Gateway.Lookup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return &domain.UnknownCommandError{Command: args[0]}
			}
			if output == OutputJSON {
				return writeJSON(cmd.OutOrStdout(), lookupOutput{
					Command:         args[0],
					Record:          hex.EncodeToString(d.Bytes()),
					Level:           d.Level.String(),
					Flags:           d.Flags.Names(),
					Score:           d.ScoreValue(),
					Destructiveness: d.DestructivenessValue(),
					Checksum:        fmt.Sprintf("%08x", d.Checksum),
				})
			}
			helpers.RenderDescriptor(cmd.OutOrStdout(), args[0], d)
			return nil
		},
	}

	addOutputFlag(cmd, &output)
	return cmd
}

// NewDecideCommand creates the decide command
func NewDecideCommand(container *app.Container) *cobra.Command {
	var (
		output string
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "decide <command> [args...]",
		Short: "Decide whether a command invocation may run",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			if err := ready(container); err != nil {
				return err
			}
			command, rest := args[0], args[1:]
			verdict := container.Gateway.Decide(cmd.Context(), command, rest)

			if output == OutputJSON {
				if err := writeJSON(cmd.OutOrStdout(), decideOutput{Command: command, Args: rest, Verdict: verdict}); err != nil {
					return err
				}
			} else {
				helpers.RenderVerdict(cmd.OutOrStdout(), command, rest, verdict)
			}

			if strict && verdict.Decision != domain.DecisionAllow && verdict.Decision != domain.DecisionApproveWithLogging {
				return fmt.Errorf("%s: %s", verdict.Decision, command)
			}
			return nil
		},
	}

	// Everything after the command name belongs to the command.
	cmd.Flags().SetInterspersed(false)
	addOutputFlag(cmd, &output)
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero unless the call may run without a human")
	return cmd
}

// NewExplainCommand creates the explain command
func NewExplainCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "explain <command>",
		Short: "Print the audit report behind a stored descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ready(container); err != nil {
				return err
			}
			report, err := container.Gateway.Explain(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return nil
		},
	}
}
