package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show a task's current status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(args[0])
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(taskID string) error {
	resp, err := newAPIClient().do("GET", "/api/task/"+taskID, nil)
	if err != nil {
		exitWithError("status failed", err)
	}

	var out map[string]any
	if err := decodeJSON(resp, &out); err != nil {
		exitWithError("status failed", err)
	}

	pretty, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("format status: %w", err)
	}
	fmt.Println(string(pretty))
	return nil
}
