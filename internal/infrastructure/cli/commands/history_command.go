package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/riskgate/internal/app"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/infrastructure/cli/helpers"
)

// NewHistoryCommand creates the history command with all subcommands
func NewHistoryCommand(container *app.Container) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the decision journal",
	}

	historyCmd.AddCommand(
		newHistoryListCommand(container),
		newHistoryPruneCommand(container),
	)

	return historyCmd
}

// newHistoryListCommand creates the 'history list' subcommand
func newHistoryListCommand(container *app.Container) *cobra.Command {
	var (
		limit  int
		output string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent decisions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errors.New(ErrInvalidLimit)
			}
			if err := checkOutput(output); err != nil {
				return err
			}
			if container == nil || container.Journal == nil {
				return errors.New(ErrJournalUnavailable)
			}
			records, err := container.Journal.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if output == OutputJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			displayDecisionRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", domain.DefaultHistoryLimit, "Max entries to show")
	addOutputFlag(cmd, &output)
	return cmd
}

// newHistoryPruneCommand creates the 'history prune' subcommand
func newHistoryPruneCommand(container *app.Container) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete decisions older than N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if days <= 0 {
				return errors.New(ErrInvalidRetainDays)
			}
			if container == nil || container.Journal == nil {
				return errors.New(ErrJournalUnavailable)
			}
			cutoff := time.Now().AddDate(0, 0, -days)
			removed, err := container.Journal.Prune(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d decisions older than %d days\n", removed, days)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", domain.DefaultHistoryRetainDays, "Number of days to keep")
	return cmd
}

// displayDecisionRecords prints one line per journal entry
func displayDecisionRecords(out io.Writer, records []domain.DecisionRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, MsgNoHistoryRecorded)
		return
	}
	for _, r := range records {
		call := strings.TrimSpace(r.Command + " " + strings.Join(r.Args, " "))
		marker := ""
		if r.IntegrityViolation {
			marker = " [integrity]"
		}
		fmt.Fprintf(out, "%s %s %s%s\n",
			r.Timestamp.Local().Format(time.RFC3339),
			helpers.DecisionColor(r.Decision).Sprintf("%-22s", r.Decision),
			call, marker)
	}
}
