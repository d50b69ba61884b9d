package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quellstream/quell/internal/config"
)

// NewConfigCommand creates the config command, which prints the
// effective configuration after defaults and environment overrides.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "config",
		Short:         "Print the effective configuration",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			out, err := cfg.Dump()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to render config", err)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
