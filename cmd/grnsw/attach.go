package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sabaini/grns/internal/engine"
	"github.com/sabaini/grns/internal/models"
)

var attachReq engine.GitRefCreate

var attachCmd = &cobra.Command{
	Use:   "attach <id> <object-value>",
	Short: "Attach a git-ref (commit/tag/branch/path) to a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		attachReq.ObjectValue = args[1]
		if attachReq.ObjectType == "" {
			attachReq.ObjectType = string(models.ObjectCommit)
		}
		if attachReq.Relation == "" {
			attachReq.Relation = models.RelationRelated
		}
		var ref models.GitRef
		if err := client.post(cmd.Context(), "/tasks/"+args[0]+"/git-refs", attachReq, &ref); err != nil {
			return err
		}
		fmt.Println(ref.ID)
		return nil
	},
}

func init() {
	attachCmd.Flags().StringVar(&attachReq.Repo, "repo", "", "repo slug (defaults to the task's source_repo)")
	attachCmd.Flags().StringVar(&attachReq.Relation, "relation", "", "relation (default: related)")
	attachCmd.Flags().StringVar(&attachReq.ObjectType, "object-type", "", "object type (default: commit)")
	attachCmd.Flags().StringVar(&attachReq.Note, "note", "", "free-text note")
}
