package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/doeshing/riskgate/internal/app"
	"github.com/doeshing/riskgate/internal/family"
)

// NewFamilyCommand creates the family command with all subcommands
func NewFamilyCommand(container *app.Container) *cobra.Command {
	familyCmd := &cobra.Command{
		Use:   "family",
		Short: "Compress and inspect command families",
	}

	familyCmd.AddCommand(
		newFamilyCompressCommand(container),
		newFamilyExpandCommand(container),
		newFamilyListCommand(container),
	)

	return familyCmd
}

// newFamilyCompressCommand creates the 'family compress' subcommand
func newFamilyCompressCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "compress <family>...",
		Short: "Compress the stored members of one or more families",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ready(container); err != nil {
				return err
			}
			var errs []error
			for _, name := range args {
				fam, err := container.Registry.CompressFamily(cmd.Context(), name)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", name, err))
					continue
				}
				displayFamilyStats(cmd.OutOrStdout(), fam.Name, fam.Stats())
			}
			return errors.Join(errs...)
		},
	}
}

// newFamilyExpandCommand creates the 'family expand' subcommand
func newFamilyExpandCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "expand <family> [member]",
		Short: "Reconstruct the records of a compressed family",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ready(container); err != nil {
				return err
			}
			fam, ok := container.Registry.Family(args[0])
			if !ok {
				return fmt.Errorf("family %q is not compressed", args[0])
			}
			out := cmd.OutOrStdout()
			if len(args) == 2 {
				rec, err := fam.Expand(args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%-24s %s\n", args[1], hex.EncodeToString(rec[:]))
				return nil
			}
			records, err := fam.ExpandAll()
			if err != nil {
				return err
			}
			for i, rec := range records {
				fmt.Fprintf(out, "%-24s %s\n", fam.Members[i], hex.EncodeToString(rec[:]))
			}
			return nil
		},
	}
}

// newFamilyListCommand creates the 'family list' subcommand
func newFamilyListCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List compressed families and their savings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ready(container); err != nil {
				return err
			}
			return listFamilies(cmd.OutOrStdout(), container)
		},
	}
}

func listFamilies(out io.Writer, container *app.Container) error {
	names := container.Registry.Families()
	stale := container.Registry.Stale()
	if len(names) == 0 && len(stale) == 0 {
		fmt.Fprintln(out, MsgNoFamilies)
		return nil
	}
	for _, name := range names {
		fam, _ := container.Registry.Family(name)
		displayFamilyStats(out, name, fam.Stats())
	}

	staleNames := make([]string, 0, len(stale))
	for name := range stale {
		staleNames = append(staleNames, name)
	}
	sort.Strings(staleNames)
	for _, name := range staleNames {
		fmt.Fprintf(out, "%-16s STALE: %v\n", name, stale[name])
	}
	return nil
}

func displayFamilyStats(out io.Writer, name string, s family.Stats) {
	fmt.Fprintf(out, "%-16s members=%d patches=%d standalone=%d bytes=%d->%d ratio=%.2fx\n",
		name, s.Members, s.Patches, s.Standalone, s.OriginalBytes, s.CompressedBytes, s.Ratio)
}
