package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/minutedapp/minuted/pkg/report"
)

// NewExportCommand creates the export command.
func NewExportCommand() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "export <meeting-id>",
		Short: "Export a meeting report as an xlsx workbook",
		Long: `Export a processed meeting and its tasks into an xlsx workbook with a
summary sheet, the per-minute timeline, and the task list.

Examples:
  minuted export 4f8a1c2e
  minuted export 4f8a1c2e -o sprint-planning.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, configPath())
			if err != nil {
				return err
			}
			defer a.close()

			m, err := a.meetings.Get(ctx, args[0])
			if err != nil {
				return err
			}
			tasks, err := a.tasks.ListByMeeting(ctx, args[0])
			if err != nil {
				return err
			}

			path := outPath
			if path == "" {
				path = fmt.Sprintf("meeting-%s.xlsx", m.ID)
			}

			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()

			if err := report.NewBuilder().WriteTo(f, m, tasks); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d tasks)\n", path, len(tasks))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output path (default: meeting-<id>.xlsx)")
	return cmd
}
