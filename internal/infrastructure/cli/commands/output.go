package commands

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/doeshing/riskgate/internal/app"
)

func addOutputFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "output", "o", OutputText, "Output format: text or json")
}

func checkOutput(format string) error {
	if format != OutputText && format != OutputJSON {
		return errors.New(ErrUnknownOutput)
	}
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ready(container *app.Container) error {
	if container == nil || container.Gateway == nil {
		return errors.New(ErrContainerUnavailable)
	}
	return nil
}
