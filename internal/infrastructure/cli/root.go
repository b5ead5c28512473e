package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/doeshing/riskgate/internal/app"
	"github.com/doeshing/riskgate/internal/infrastructure/cli/commands"
	"github.com/doeshing/riskgate/internal/infrastructure/config"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// NewRootCmd wires the cobra root command. The container is built once a
// command that needs it runs, so --config is honored and verify works
// without a store. The returned cleanup releases whatever was opened and
// must run even when the command fails.
func NewRootCmd(opts Options) (*cobra.Command, func(context.Context) error) {
	container := &app.Container{}
	configPath := opts.ConfigPath
	verbose := opts.Verbose
	built := false

	root := &cobra.Command{
		Use:   "riskgate",
		Short: "riskgate - risk descriptors and decisions for command execution",
		Long: "riskgate classifies commands from evidence into 24-byte risk descriptors " +
			"and decides at call time whether an invocation may run.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if skipsContainer(cmd) {
				return nil
			}
			c, err := app.BuildContainer(cmd.Context(), app.Options{ConfigPath: configPath, Verbose: verbose})
			if err != nil {
				return err
			}
			*container = *c
			built = true
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&configPath, "config", configPath, "Config file (default $"+config.EnvConfigPath+" or ~/.riskgate/config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", verbose, "Enable debug logging")

	root.AddCommand(
		commands.NewClassifyCommand(container),
		commands.NewLookupCommand(container),
		commands.NewDecideCommand(container),
		commands.NewExplainCommand(container),
		commands.NewFamilyCommand(container),
		commands.NewHistoryCommand(container),
		commands.NewDoctorCommand(container),
		commands.NewVerifyCommand(),
		commands.NewConfigCommand(&configPath),
		commands.NewVersionCommand(),
	)

	cleanup := func(ctx context.Context) error {
		if !built {
			return nil
		}
		built = false
		return container.Close(ctx)
	}
	return root, cleanup
}

func skipsContainer(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[commands.AnnotationSkipContainer] == "true" {
			return true
		}
	}
	return false
}
