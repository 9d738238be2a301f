package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	mderrors "github.com/minutedapp/minuted/pkg/errors"
)

// NewProcessCommand creates the process command.
func NewProcessCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "process <meeting-id>",
		Short: "Run the pipeline for one meeting",
		Long: `Run the full pipeline for one meeting synchronously: fetch the audio,
transcribe it, extract the timeline and tasks, and optionally schedule
calendar events.

The meeting must be in the uploaded state or a failed state. A meeting
already being processed by another run is rejected.

Examples:
  minuted process 4f8a1c2e
  minuted process 4f8a1c2e --config prod.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, configPath())
			if err != nil {
				return err
			}
			defer a.close()

			orchestrator, err := a.newOrchestrator(nil)
			if err != nil {
				return err
			}

			result, err := orchestrator.Run(ctx, args[0])
			switch {
			case mderrors.IsConflict(err):
				return fmt.Errorf("meeting %s is already being processed", args[0])
			case mderrors.IsNotFound(err):
				return fmt.Errorf("meeting %s not found", args[0])
			case err != nil:
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		},
	}
}
