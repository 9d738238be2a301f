package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/minutedapp/minuted/pkg/task"
)

// Task command flags.
var (
	taskMeetingID  string
	taskUserID     string
	taskStatus     string
	taskOutputJSON bool
)

// NewTaskCommand creates the task command with all subcommands.
func NewTaskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect extracted tasks",
		Long: `Inspect the tasks the pipeline extracted from meetings.

Examples:
  minuted task list --meeting 4f8a1c2e
  minuted task list --user u1 --status pending
  minuted task complete 7c3b9a01`,
		Aliases: []string{"tasks"},
	}

	cmd.AddCommand(newTaskListCommand())
	cmd.AddCommand(newTaskCompleteCommand())
	return cmd
}

func newTaskListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks by meeting or by user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if taskMeetingID == "" && taskUserID == "" {
				return fmt.Errorf("either --meeting or --user is required")
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, configPath())
			if err != nil {
				return err
			}
			defer a.close()

			var tasks []*task.Task
			if taskMeetingID != "" {
				tasks, err = a.tasks.ListByMeeting(ctx, taskMeetingID)
			} else {
				tasks, err = a.tasks.ListByUser(ctx, taskUserID, task.Status(taskStatus))
			}
			if err != nil {
				return err
			}

			if taskOutputJSON {
				return outputJSON(cmd, tasks)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTASK\tOWNER\tSTATUS\tPRIORITY\tDEADLINE")
			for _, t := range tasks {
				deadline := "-"
				if t.Deadline != nil {
					deadline = t.Deadline.Format("2006-01-02")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					t.ID, t.Name, t.Owner, t.Status, t.Priority, deadline)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&taskMeetingID, "meeting", "", "filter by meeting ID")
	cmd.Flags().StringVar(&taskUserID, "user", "", "filter by user ID")
	cmd.Flags().StringVar(&taskStatus, "status", "", "filter by status (pending, in-progress, completed)")
	cmd.Flags().BoolVar(&taskOutputJSON, "json", false, "output as JSON")
	return cmd
}

func newTaskCompleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "complete <task-id>",
		Short:   "Mark a task completed",
		Aliases: []string{"done"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, configPath())
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.tasks.SetStatus(ctx, args[0], task.StatusCompleted); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s completed\n", args[0])
			return nil
		},
	}
}
