package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabaini/grns/internal/engine"
	"github.com/sabaini/grns/internal/models"
)

var (
	updateTitle       string
	updateType        string
	updateStatus      string
	updatePriority    int
	updateDescription string
	updateAssignee    string
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Patch a task's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch engine.TaskPatch
		f := cmd.Flags()
		if f.Changed("title") {
			patch.Title = &updateTitle
		}
		if f.Changed("type") {
			patch.Type = &updateType
		}
		if f.Changed("status") {
			patch.Status = &updateStatus
		}
		if f.Changed("priority") {
			patch.Priority = &updatePriority
		}
		if f.Changed("description") {
			patch.Description = &updateDescription
		}
		if f.Changed("assignee") {
			patch.Assignee = &updateAssignee
		}
		if patch.Empty() {
			return fmt.Errorf("no fields given to update")
		}
		var task models.Task
		if err := client.patch(cmd.Context(), "/tasks/"+args[0], patch, &task); err != nil {
			return err
		}
		fmt.Println("updated", task.ID)
		return nil
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateTitle, "title", "", "new title")
	updateCmd.Flags().StringVar(&updateType, "type", "", "new type")
	updateCmd.Flags().StringVar(&updateStatus, "status", "", "new status")
	updateCmd.Flags().IntVar(&updatePriority, "priority", 0, "new priority")
	updateCmd.Flags().StringVar(&updateDescription, "description", "", "new description")
	updateCmd.Flags().StringVar(&updateAssignee, "assignee", "", "new assignee")
}
