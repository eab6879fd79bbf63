// Command sitereport turns spoken construction-site memos into structured
// reports.
//
// Usage:
//
//	sitereport [--config FILE] <command> [flags]
//
// Commands:
//
//	serve      - HTTP API with health, readiness and Prometheus metrics
//	run        - run one memo through the pipeline (--review to check each step)
//	classify   - show which template a transcript would use
//	templates  - list the report templates
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sitereport: %v\n", err)
		os.Exit(1)
	}
}
