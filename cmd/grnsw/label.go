package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabaini/grns/internal/models"
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Manage a task's labels",
}

type labelsRequest struct {
	Labels []string `json:"labels"`
}

var labelAddCmd = &cobra.Command{
	Use:   "add <id> <label> [label...]",
	Short: "Add labels to a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var task models.Task
		if err := client.post(cmd.Context(), "/tasks/"+args[0]+"/labels", labelsRequest{Labels: args[1:]}, &task); err != nil {
			return err
		}
		fmt.Println(task.ID, task.Labels)
		return nil
	},
}

var labelRemoveCmd = &cobra.Command{
	Use:   "remove <id> <label> [label...]",
	Short: "Remove labels from a task",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var task models.Task
		if err := client.do(cmd.Context(), "DELETE", "/tasks/"+args[0]+"/labels", nil, labelsRequest{Labels: args[1:]}, &task); err != nil {
			return err
		}
		fmt.Println(task.ID, task.Labels)
		return nil
	},
}

func init() {
	labelCmd.AddCommand(labelAddCmd)
	labelCmd.AddCommand(labelRemoveCmd)
}
