package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabaini/grns/internal/models"
)

var depCmd = &cobra.Command{
	Use:   "dep",
	Short: "Manage a task's blocking dependencies",
}

var depAddCmd = &cobra.Command{
	Use:   "add <id> <parent-id>",
	Short: "Add a blocks dependency (id is blocked by parent-id)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := struct {
			ParentID string `json:"parent_id"`
		}{ParentID: args[1]}
		var task models.Task
		if err := client.post(cmd.Context(), "/tasks/"+args[0]+"/deps", req, &task); err != nil {
			return err
		}
		fmt.Println("added dep", args[0], "->", args[1])
		return nil
	},
}

var depRemoveCmd = &cobra.Command{
	Use:   "remove <id> <parent-id>",
	Short: "Remove a blocks dependency",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.delete(cmd.Context(), "/tasks/"+args[0]+"/deps/"+args[1]); err != nil {
			return err
		}
		fmt.Println("removed dep", args[0], "->", args[1])
		return nil
	},
}

func init() {
	depCmd.AddCommand(depAddCmd)
	depCmd.AddCommand(depRemoveCmd)
}
