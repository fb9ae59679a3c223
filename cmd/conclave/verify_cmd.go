package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/conclave/pkg/config"
)

// runVerifyCmd implements `conclave verify`.
//
// Walks the full audit chain, recomputing every record hash and chain link.
// With a signing seed configured, record signatures are checked too.
//
// Exit codes:
//
//	0 = chain intact
//	1 = chain broken
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var jsonOutput bool
	cmd.BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

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

	l := o.Ledger()
	length, err := l.Length(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	verifyErr := l.Verify(ctx)

	if jsonOutput {
		result := map[string]any{
			"records": length,
			"head":    l.Head(),
			"valid":   verifyErr == nil,
		}
		if verifyErr != nil {
			result["error"] = verifyErr.Error()
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else if verifyErr != nil {
		_, _ = fmt.Fprintf(stdout, "%s❌ audit chain verification FAILED%s\n", ColorBold+ColorRed, ColorReset)
		_, _ = fmt.Fprintf(stdout, "   %v\n", verifyErr)
	} else {
		_, _ = fmt.Fprintf(stdout, "%s✅ audit chain verified%s\n", ColorBold+ColorGreen, ColorReset)
		_, _ = fmt.Fprintf(stdout, "   Records: %d\n", length)
		_, _ = fmt.Fprintf(stdout, "   Head:    %s\n", l.Head())
	}

	if verifyErr != nil {
		return 1
	}
	return 0
}
