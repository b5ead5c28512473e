package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	configapp "github.com/doeshing/riskgate/internal/application/config"
	"github.com/doeshing/riskgate/internal/domain"
	"github.com/doeshing/riskgate/internal/infrastructure/cli/helpers"
	configinfra "github.com/doeshing/riskgate/internal/infrastructure/config"
)

// NewConfigCommand creates the config command with all subcommands. The
// subcommands read the file directly so a broken config can still be shown.
func NewConfigCommand(configPath *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect riskgate configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd.Context(), cmd.OutOrStdout(), loaderFor(configPath))
		},
	}
	configCmd.Annotations = map[string]string{AnnotationSkipContainer: "true"}

	configCmd.AddCommand(
		newConfigShowCommand(configPath),
		newConfigGetCommand(configPath),
		newConfigPathCommand(configPath),
		newConfigValidateCommand(configPath),
	)

	return configCmd
}

func loaderFor(configPath *string) *configinfra.FileLoader {
	path := ""
	if configPath != nil {
		path = *configPath
	}
	return configinfra.NewFileLoader(path)
}

// newConfigShowCommand creates the 'config show' subcommand
func newConfigShowCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show full configuration with defaults applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfiguration(cmd.Context(), cmd.OutOrStdout(), loaderFor(configPath))
		},
	}
}

// newConfigGetCommand creates the 'config get' subcommand
func newConfigGetCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value by dotted key (e.g. store.driver)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return getConfigurationValue(cmd.Context(), cmd.OutOrStdout(), loaderFor(configPath), args[0])
		},
	}
}

// newConfigPathCommand creates the 'config path' subcommand
func newConfigPathCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), loaderFor(configPath).Path())
			return nil
		},
	}
}

// newConfigValidateCommand creates the 'config validate' subcommand
func newConfigValidateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loaderFor(configPath).Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			if err := configapp.Validate(cfg); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), MsgConfigurationValid)
			return nil
		},
	}
}

// showConfiguration displays the full configuration in YAML format
func showConfiguration(ctx context.Context, out io.Writer, loader *configinfra.FileLoader) error {
	cfg, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	data, err := yaml.Marshal(redact(cfg))
	if err != nil {
		return err
	}
	_, err = out.Write(data)
	return err
}

func redact(cfg domain.Config) domain.Config {
	if cfg.Store.RedisPassword != "" {
		cfg.Store.RedisPassword = "********"
	}
	return cfg
}

// getConfigurationValue prints the value at a dotted key path
func getConfigurationValue(ctx context.Context, out io.Writer, loader *configinfra.FileLoader, key string) error {
	cfg, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	tree, err := helpers.ConfigAsMap(redact(cfg))
	if err != nil {
		return err
	}
	value, ok := helpers.TraverseNestedMap(tree, strings.Split(key, "."))
	if !ok {
		return fmt.Errorf("key %q not found", key)
	}
	switch v := value.(type) {
	case map[string]interface{}, []interface{}:
		data, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	default:
		fmt.Fprintln(out, v)
		return nil
	}
}
