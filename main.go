// ./main.go
package main

import (
	"github.com/xkilldash9x/reflow/cmd"
)

// main is the entry point for the reflow harness.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles command-line parsing, configuration, and execution.
	cmd.Execute()
}
