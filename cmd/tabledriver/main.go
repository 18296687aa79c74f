// tabledriver executes keyword-driven test tables.
//
// Usage:
//
//	tabledriver run --config tabledriver.yaml --level SUITE Smoke
//	tabledriver report --db runs.db --run <run-id>
//	tabledriver test ./scenarios
//
// Exit codes: 0 when the run passed, 1 when failures were recorded, 2 when
// the command itself failed.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/roach88/tabledriver/internal/cli"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(stderr, "tabledriver: %v\n", err)
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
