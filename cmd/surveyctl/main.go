// Command surveyctl is the operator-facing entrypoint: run the server,
// or drive a running one (submit/status/list) over its HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/surveyforge/surveyforge/cmd/surveyctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
