package cmd

import (
	"github.com/spf13/cobra"
)

// Global flags.
var cfgFile string

// NewRootCommand creates the minuted root command with all subcommands.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "minuted",
		Short: "Meeting processing pipeline",
		Long: `minuted turns recorded meetings into transcripts, timelines, and tasks.

A meeting moves through the pipeline in two stages: transcription (audio to
text) and processing (text to a timeline plus extracted tasks). Tasks with
deadlines can optionally be scheduled onto a calendar.

COMMON WORKFLOWS:
  Run the service:     minuted migrate  ->  minuted serve
  Process one meeting: minuted meeting create --file rec.wav --user u1
                       minuted process <meeting-id>
  Inspect results:     minuted meeting show <meeting-id>
                       minuted task list --meeting <meeting-id>
  Share a report:      minuted export <meeting-id> -o report.xlsx`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: minuted.yaml in the working directory)")

	root.AddCommand(NewServeCommand())
	root.AddCommand(NewProcessCommand())
	root.AddCommand(NewMigrateCommand())
	root.AddCommand(NewMeetingCommand())
	root.AddCommand(NewTaskCommand())
	root.AddCommand(NewExportCommand())
	root.AddCommand(NewVersionCommand())
	return root
}

// configPath returns the config file to load, defaulting to minuted.yaml.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return "minuted.yaml"
}
