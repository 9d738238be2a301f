package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/minutedapp/minuted/pkg/meeting"
)

// Meeting command flags.
var (
	meetingTitle      string
	meetingFile       string
	meetingUser       string
	meetingListUser   string
	meetingListLimit  int
	meetingOutputJSON bool
)

// NewMeetingCommand creates the meeting command with all subcommands.
func NewMeetingCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meeting",
		Short: "Manage meeting records",
		Long: `Manage meeting records: register uploaded recordings, list them, and
inspect their processing state.

Examples:
  minuted meeting create --file ./standup.wav --user u1 --title "Daily standup"
  minuted meeting list --user u1
  minuted meeting show 4f8a1c2e
  minuted meeting delete 4f8a1c2e`,
		Aliases: []string{"meetings"},
	}

	cmd.AddCommand(newMeetingCreateCommand())
	cmd.AddCommand(newMeetingListCommand())
	cmd.AddCommand(newMeetingShowCommand())
	cmd.AddCommand(newMeetingDeleteCommand())
	return cmd
}

func newMeetingCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register an uploaded recording as a meeting",
		RunE: func(cmd *cobra.Command, args []string) error {
			if meetingFile == "" {
				return fmt.Errorf("--file is required")
			}
			if meetingUser == "" {
				return fmt.Errorf("--user is required")
			}

			info, err := os.Stat(meetingFile)
			if err != nil {
				return fmt.Errorf("recording file: %w", err)
			}

			title := meetingTitle
			if title == "" {
				title = filepath.Base(meetingFile)
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, configPath())
			if err != nil {
				return err
			}
			defer a.close()

			m := &meeting.Meeting{
				ID:       uuid.New().String(),
				Title:    title,
				FilePath: meetingFile,
				FileName: filepath.Base(meetingFile),
				FileSize: info.Size(),
				Status:   meeting.StatusUploaded,
				UserID:   meetingUser,
			}
			if err := a.meetings.Create(ctx, m); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created meeting %s (%s)\n", m.ID, m.Title)
			return nil
		},
	}

	cmd.Flags().StringVar(&meetingTitle, "title", "", "meeting title (default: file name)")
	cmd.Flags().StringVar(&meetingFile, "file", "", "path to the recording (required)")
	cmd.Flags().StringVar(&meetingUser, "user", "", "owning user ID (required)")
	return cmd
}

func newMeetingListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's meetings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if meetingListUser == "" {
				return fmt.Errorf("--user is required")
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, configPath())
			if err != nil {
				return err
			}
			defer a.close()

			meetings, err := a.meetings.ListByUser(ctx, meetingListUser, meetingListLimit)
			if err != nil {
				return err
			}

			if meetingOutputJSON {
				return outputJSON(cmd, meetings)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tCREATED")
			for _, m := range meetings {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					m.ID, m.Title, m.Status, m.CreatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&meetingListUser, "user", "", "owning user ID (required)")
	cmd.Flags().IntVar(&meetingListLimit, "limit", 50, "maximum number of meetings")
	cmd.Flags().BoolVar(&meetingOutputJSON, "json", false, "output as JSON")
	return cmd
}

func newMeetingShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <meeting-id>",
		Short: "Show one meeting record",
		Args:  cobra.ExactArgs(1),
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
			return outputJSON(cmd, m)
		},
	}
}

func newMeetingDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <meeting-id>",
		Short: "Delete a meeting and its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, configPath())
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.tasks.DeleteByMeeting(ctx, args[0]); err != nil {
				return err
			}
			if err := a.meetings.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted meeting %s\n", args[0])
			return nil
		},
	}
}

// outputJSON writes v as indented JSON to the command's stdout.
func outputJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
