package main

import (
	"fmt"
	"io"
	"os"
)

const version = "0.1.0"

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 0
	}

	switch args[1] {
	case "decide":
		return runDecideCmd(args[2:], stdout, stderr)
	case "audit":
		return runAuditCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "policy":
		return runPolicyCmd(args[2:], stdout, stderr)
	case "workers":
		return runWorkersCmd(args[2:], stdout, stderr)
	case "version":
		_, _ = fmt.Fprintf(stdout, "conclave %s\n", version)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

// ANSI Colors
const (
	ColorReset  = "\033[0m"
	ColorBold   = "\033[1m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[37m"
)

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sConclave %s%s\n", ColorBold+ColorBlue, "v"+version, ColorReset)
	fmt.Fprintf(w, "%sWorkers propose. The orchestrator decides.%s\n", ColorGray, ColorReset)
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "%sUSAGE:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  conclave <command> [flags]")
	fmt.Fprintln(w, "")

	printSection(w, "DECISIONS")
	printCommand(w, "decide", "Run a task through the decision pipeline (--context, --json)")
	printCommand(w, "workers", "List the registered worker pool")

	printSection(w, "AUDIT")
	printCommand(w, "audit", "Show the audit trail (-n, --json)")
	printCommand(w, "verify", "Verify the audit chain (--json)")
	printCommand(w, "export", "Export the evidence bundle (--out, --publish, --json)")

	printSection(w, "UTILITIES")
	printCommand(w, "policy", "Show the effective policy (--json)")
	printCommand(w, "version", "Show version information")
	printCommand(w, "help", "Show this help")
	fmt.Fprintln(w, "")

	fmt.Fprintf(w, "%sENVIRONMENT:%s\n", ColorBold, ColorReset)
	fmt.Fprintln(w, "  CONCLAVE_POLICY_PROFILE     Path to a policy.yaml profile")
	fmt.Fprintln(w, "  CONCLAVE_MIN_CONSENSUS      Inline consensus threshold")
	fmt.Fprintln(w, "  CONCLAVE_LEDGER_DRIVER      Audit persistence: postgres or sqlite")
	fmt.Fprintln(w, "  CONCLAVE_LEDGER_DSN         Connection string for the audit database")
	fmt.Fprintln(w, "  CONCLAVE_REDIS_ADDR         Redis address for shared memory")
	fmt.Fprintln(w, "  CONCLAVE_SIGNING_SEED       Hex Ed25519 seed for signed audit records")
	fmt.Fprintln(w, "  CONCLAVE_BUNDLE_STORE       Blob store for published bundles: s3 or gcs")
	fmt.Fprintln(w, "  CONCLAVE_OTEL_ENDPOINT      OTLP endpoint for telemetry export")
	fmt.Fprintln(w, "")
}

func printSection(w io.Writer, title string) {
	fmt.Fprintf(w, "%s%s:%s\n", ColorBold+ColorCyan, title, ColorReset)
}

func printCommand(w io.Writer, name, desc string) {
	fmt.Fprintf(w, "  %s%-10s%s %s\n", ColorGreen, name, ColorReset, desc)
}
