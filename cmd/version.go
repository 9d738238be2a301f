package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/minutedapp/minuted/pkg/buildinfo"
)

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				return outputJSON(cmd, buildinfo.Get("minuted"))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "minuted "+buildinfo.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}
