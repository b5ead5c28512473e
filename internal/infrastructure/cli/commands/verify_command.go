package commands

import (
	"fmt"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/doeshing/riskgate/internal/descriptor"
	"github.com/doeshing/riskgate/internal/infrastructure/cli/helpers"
)

// NewVerifyCommand creates the verify command. It needs no store.
func NewVerifyCommand() *cobra.Command {
	var command string

	cmd := &cobra.Command{
		Annotations: map[string]string{AnnotationSkipContainer: "true"},
		Use:         "verify <hex-record>",
		Short:       "Check a raw descriptor record and decode it",
		Args:        cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := helpers.ParseRecordHex(strings.Join(args, ""))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			d, err := descriptor.Decode(raw)
			if err != nil {
				fmt.Fprintln(out, helpers.ExplainDecodeError(err))
				return err
			}
			if command != "" && !d.MatchesCommand(command) && !d.MatchesCommand(path.Base(command)) {
				fmt.Fprintln(out, "hash check failed: record belongs to a different command")
				return fmt.Errorf("record hash %08x does not belong to %q", d.CommandHash, command)
			}
			fmt.Fprintln(out, helpers.ExplainDecodeError(nil))
			name := command
			if name == "" {
				name = "(not checked)"
			}
			helpers.RenderDescriptor(out, name, d)
			return nil
		},
	}

	cmd.Flags().StringVar(&command, "command", "", "Also check the record's command hash against this name")
	return cmd
}

