package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabaini/grns/internal/engine"
	"github.com/sabaini/grns/internal/models"
)

var (
	createReq      engine.TaskCreate
	createPriority int
)

var createCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		createReq.Title = args[0]
		if cmd.Flags().Changed("priority") {
			createReq.Priority = &createPriority
		}
		var task models.Task
		if err := client.post(cmd.Context(), "/tasks", createReq, &task); err != nil {
			return err
		}
		fmt.Println(task.ID)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createReq.ID, "id", "", "explicit task id (default: auto-generated)")
	createCmd.Flags().StringVar(&createReq.Type, "type", "", "task type (default: task)")
	createCmd.Flags().StringVar(&createReq.Description, "description", "", "task description")
	createCmd.Flags().StringVar(&createReq.Acceptance, "acceptance", "", "acceptance criteria")
	createCmd.Flags().StringVar(&createReq.Assignee, "assignee", "", "assignee")
	createCmd.Flags().StringVar(&createReq.Parent, "parent", "", "parent task id")
	createCmd.Flags().StringVar(&createReq.SpecID, "spec", "", "spec id")
	createCmd.Flags().StringVar(&createReq.SourceRepo, "repo", "", "source repo slug")
	createCmd.Flags().StringSliceVar(&createReq.Labels, "label", nil, "label (repeatable)")
	createCmd.Flags().IntVar(&createPriority, "priority", 2, "priority 0-4")
}
