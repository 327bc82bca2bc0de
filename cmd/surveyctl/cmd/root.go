// Package cmd implements surveyctl's CLI commands using cobra.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	configFile  string
	serverAddr  string
	httpTimeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "surveyctl",
	Short: "surveyctl drives the survey-generation task engine",
	Long: `surveyctl either runs the task engine (serve) or talks to an
already-running one over its HTTP API (submit, status, list).`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml",
		"config file path (serve only)")
	rootCmd.PersistentFlags().StringVarP(&serverAddr, "server", "s", "http://localhost:8080",
		"base URL of a running surveyctl serve instance")
	rootCmd.PersistentFlags().DurationVar(&httpTimeout, "timeout", 10*time.Second,
		"HTTP client timeout for submit/status/list")
}

func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
