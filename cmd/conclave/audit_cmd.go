package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/conclave/pkg/config"
)

// runAuditCmd implements `conclave audit`.
//
// Prints the most recent audit trail entries, oldest first. Without a
// persistent ledger driver the trail only covers the current process, which
// for a one-shot CLI run is empty; point CONCLAVE_LEDGER_DRIVER at the
// database the decisions were recorded in.
//
// Exit codes:
//
//	0 = trail printed
//	2 = runtime error
func runAuditCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("audit", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		limit      int
		jsonOutput bool
	)

	cmd.IntVar(&limit, "n", 20, "Maximum number of entries to show")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the trail as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	ctx := context.Background()
	o, cleanup, err := buildOrchestrator(ctx, config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer cleanup()

	entries, err := o.AuditTrail(ctx, limit)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(entries, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(stdout, "audit trail is empty")
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "%s%-30s %-10s %-10s %s%s\n",
		ColorBold, "TIMESTAMP", "VERDICT", "PROPOSALS", "REPRODUCIBILITY", ColorReset)
	for _, e := range entries {
		_, _ = fmt.Fprintf(stdout, "%-30s %-10s %-10d %.3f\n",
			e.Timestamp.Format("2006-01-02 15:04:05.000 MST"),
			e.Verdict, e.ProposalCount, e.Reproducibility)
	}
	return 0
}
