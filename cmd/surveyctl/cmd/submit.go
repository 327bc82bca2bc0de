package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	submitTopic     string
	submitInputFile string
	submitParamFile string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new survey task",
	Long: `Submit a new survey task to a running surveyctl serve instance.

Provide either --topic (generate from scratch) or --input-file (an
already-crawled payload), or --params pointing at a JSON file with the
full parameter object.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSubmit()
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitTopic, "topic", "", "survey topic")
	submitCmd.Flags().StringVar(&submitInputFile, "input-file", "", "path to a pre-crawled payload")
	submitCmd.Flags().StringVar(&submitParamFile, "params", "", "JSON file with the full submission params object")
	rootCmd.AddCommand(submitCmd)
}

// buildSubmitParams merges a base params object (typically read from a
// --params JSON file) with the --topic/--input-file flags, which always
// win over whatever the file supplied. It returns an error if the result
// would be an empty submission.
func buildSubmitParams(base map[string]any, topic, inputFile string) (map[string]any, error) {
	params := map[string]any{}
	for k, v := range base {
		params[k] = v
	}
	if topic != "" {
		params["topic"] = topic
	}
	if inputFile != "" {
		params["input_file"] = inputFile
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("one of --topic, --input-file, or --params is required")
	}
	return params, nil
}

func runSubmit() error {
	base := map[string]any{}
	if submitParamFile != "" {
		data, err := os.ReadFile(submitParamFile)
		if err != nil {
			return fmt.Errorf("read params file: %w", err)
		}
		if err := json.Unmarshal(data, &base); err != nil {
			return fmt.Errorf("parse params file: %w", err)
		}
	}
	params, err := buildSubmitParams(base, submitTopic, submitInputFile)
	if err != nil {
		return err
	}

	resp, err := newAPIClient().do("POST", "/api/task/submit", params)
	if err != nil {
		exitWithError("submit failed", err)
	}

	var out struct {
		Success           bool   `json:"success"`
		TaskID            string `json:"task_id"`
		Message           string `json:"message"`
		OutputFile        string `json:"output_file"`
		OriginalTopic     string `json:"original_topic"`
		UniqueSurveyTitle string `json:"unique_survey_title"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		exitWithError("submit failed", err)
	}

	fmt.Printf("task accepted: %s\n", out.TaskID)
	if out.UniqueSurveyTitle != "" {
		fmt.Printf("result key: %s\n", out.UniqueSurveyTitle)
	}
	return nil
}
