package main

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sabaini/grns/internal/models"
)

var (
	filterLabels   []string
	filterStatus   []string
	filterType     string
	filterSpec     string
	filterLimit    int
	filterOffset   int
	searchQuery    string
	staleDays      int
)

func buildFilterQuery() url.Values {
	q := url.Values{}
	if len(filterLabels) > 0 {
		q.Set("label", strings.Join(filterLabels, ","))
	}
	if len(filterStatus) > 0 {
		q.Set("status", strings.Join(filterStatus, ","))
	}
	if filterType != "" {
		q.Set("type", filterType)
	}
	if filterSpec != "" {
		q.Set("spec", filterSpec)
	}
	if filterLimit > 0 {
		q.Set("limit", strconv.Itoa(filterLimit))
	}
	if filterOffset > 0 {
		q.Set("offset", strconv.Itoa(filterOffset))
	}
	return q
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&filterLabels, "label", nil, "require label (AND, repeatable)")
	cmd.Flags().StringSliceVar(&filterStatus, "status", nil, "status filter (repeatable)")
	cmd.Flags().StringVar(&filterType, "type", "", "type filter")
	cmd.Flags().StringVar(&filterSpec, "spec", "", "spec_id regex filter")
	cmd.Flags().IntVar(&filterLimit, "limit", 0, "page limit")
	cmd.Flags().IntVar(&filterOffset, "offset", 0, "page offset")
}

func printTasks(tasks []*models.Task) {
	for _, t := range tasks {
		printTaskLine(t.ID, string(t.Status), t.Title)
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks matching a filter",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Tasks []*models.Task `json:"tasks"`
		}
		if err := client.get(cmd.Context(), "/tasks", buildFilterQuery(), &resp); err != nil {
			return err
		}
		printTasks(resp.Tasks)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search tasks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		q := buildFilterQuery()
		q.Set("q", args[0])
		var resp struct {
			Tasks []*models.Task `json:"tasks"`
		}
		if err := client.get(cmd.Context(), "/tasks/search", q, &resp); err != nil {
			return err
		}
		printTasks(resp.Tasks)
		return nil
	},
}

var readyCmd = &cobra.Command{
	Use:   "ready",
	Short: "List tasks with no open blocking dependency",
	RunE: func(cmd *cobra.Command, args []string) error {
		var resp struct {
			Tasks []*models.Task `json:"tasks"`
		}
		if err := client.get(cmd.Context(), "/tasks/ready", buildFilterQuery(), &resp); err != nil {
			return err
		}
		printTasks(resp.Tasks)
		return nil
	},
}

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List open tasks not updated within N days",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := buildFilterQuery()
		if staleDays > 0 {
			q.Set("days", strconv.Itoa(staleDays))
		}
		var resp struct {
			Tasks []*models.Task `json:"tasks"`
		}
		if err := client.get(cmd.Context(), "/tasks/stale", q, &resp); err != nil {
			return err
		}
		printTasks(resp.Tasks)
		return nil
	},
}

func init() {
	addFilterFlags(listCmd)
	addFilterFlags(searchCmd)
	addFilterFlags(readyCmd)
	addFilterFlags(staleCmd)
	staleCmd.Flags().IntVar(&staleDays, "days", 14, "staleness threshold in days")
}
