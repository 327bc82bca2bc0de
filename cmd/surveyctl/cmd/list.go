package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	listStatus string
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, optionally filtered by status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runList()
	},
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (pending, processing, completed, ...)")
	listCmd.Flags().IntVar(&listLimit, "limit", 100, "maximum number of tasks to return")
	rootCmd.AddCommand(listCmd)
}

func runList() error {
	path := fmt.Sprintf("/api/tasks?limit=%d", listLimit)
	if listStatus != "" {
		path += "&status=" + listStatus
	}

	resp, err := newAPIClient().do("GET", path, nil)
	if err != nil {
		exitWithError("list failed", err)
	}

	var out struct {
		Success bool             `json:"success"`
		Tasks   []map[string]any `json:"tasks"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		exitWithError("list failed", err)
	}

	if len(out.Tasks) == 0 {
		fmt.Println("no tasks.")
		return nil
	}
	fmt.Printf("%d task(s):\n", len(out.Tasks))
	for _, t := range out.Tasks {
		fmt.Printf("  %-36v %v\n", t["ID"], t["Status"])
	}
	return nil
}
