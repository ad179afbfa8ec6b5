// Command aegis-gate runs the two-stage safety gate from the command
// line: candidates in as JSON lines on stdin, verdicts out as JSON.
package main

import (
	"fmt"
	"io"
	"os"
)

func main() {
	os.Exit(Run(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// Run dispatches subcommands. Split out from main for testing.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "check":
		return runCheck(args[2:], stdin, stdout, stderr)
	case "intent":
		return runIntent(args[2:], stdin, stdout, stderr)
	case "stats":
		return runStats(args[2:], stdin, stdout, stderr)
	case "version":
		_, _ = fmt.Fprintln(stdout, "aegis-gate 1.0.0")
		return 0
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `Usage: aegis-gate <command> [flags]

Commands:
  check    Read candidate JSON lines from stdin, write verdict JSON lines
  intent   Read intent JSON lines from stdin, write verdict JSON lines
  stats    Run check over stdin, then print gate statistics
  version  Print version

Flags (check, intent, stats):
  -config <path>   YAML settings file (default: none, built-in policy)`)
}
