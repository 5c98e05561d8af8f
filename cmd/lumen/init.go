package main

import (
	"fmt"

	"lumen/internal/shellintegration"
	"lumen/internal/version"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "init <shell>",
		Short:     "Print the shell integration script",
		Long:      `Print the hook script for a shell. Load it with: eval "$(lumen init zsh)"`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: shellintegration.SupportedShells(),
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := shellintegration.Script(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), script)
			return err
		},
	}
}

func newVersionCmd() *cobra.Command {
	var detailed bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			text := version.GetFormattedVersion()
			if detailed {
				text = version.GetDetailedVersion()
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
			return err
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Show build details")
	return cmd
}
