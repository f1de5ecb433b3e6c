package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabaini/grns/internal/models"
)

var (
	closeCommit string
	closeRepo   string
)

var closeCmd = &cobra.Command{
	Use:   "close <id> [id...]",
	Short: "Close one or more tasks, optionally annotating a closing commit",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patch := models.ClosePatch{IDs: args, Commit: closeCommit, Repo: closeRepo}
		var result models.CloseResult
		if err := client.post(cmd.Context(), "/tasks/close", patch, &result); err != nil {
			return err
		}
		for _, t := range result.Tasks {
			printTaskLine(t.ID, string(t.Status), t.Title)
		}
		fmt.Printf("annotated %d git-ref(s)\n", result.Annotated)
		return nil
	},
}

var reopenCmd = &cobra.Command{
	Use:   "reopen <id> [id...]",
	Short: "Reopen one or more closed tasks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := struct {
			IDs []string `json:"ids"`
		}{IDs: args}
		var resp struct {
			Tasks []*models.Task `json:"tasks"`
		}
		if err := client.post(cmd.Context(), "/tasks/reopen", req, &resp); err != nil {
			return err
		}
		for _, t := range resp.Tasks {
			printTaskLine(t.ID, string(t.Status), t.Title)
		}
		return nil
	},
}

func init() {
	closeCmd.Flags().StringVar(&closeCommit, "commit", "", "closing commit sha")
	closeCmd.Flags().StringVar(&closeRepo, "repo", "", "repo slug (defaults to each task's source_repo)")
}
