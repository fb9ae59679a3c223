package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Mindburn-Labs/conclave/pkg/authority"
	"github.com/Mindburn-Labs/conclave/pkg/config"
)

// runDecideCmd implements `conclave decide`.
//
// Runs one task through the full decision pipeline and prints the resulting
// verdict. The exit code carries the authority grant, so shell pipelines can
// gate on it directly.
//
// Exit codes:
//
//	0 = execution approved
//	1 = execution denied or held pending
//	2 = runtime error
func runDecideCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("decide", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		contextJSON string
		jsonOutput  bool
	)

	cmd.StringVar(&contextJSON, "context", "", "Task context as a JSON object")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the decision as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	task := strings.TrimSpace(strings.Join(cmd.Args(), " "))
	if task == "" {
		_, _ = fmt.Fprintln(stderr, "Error: a task is required")
		_, _ = fmt.Fprintln(stderr, "Usage: conclave decide [flags] <task>")
		return 2
	}

	var taskContext map[string]any
	if contextJSON != "" {
		if err := json.Unmarshal([]byte(contextJSON), &taskContext); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: --context must be a JSON object: %v\n", err)
			return 2
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	o, cleanup, err := buildOrchestrator(ctx, config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer cleanup()

	decision := o.Process(ctx, task, taskContext)

	if jsonOutput {
		data, _ := json.MarshalIndent(decision, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else {
		printDecision(stdout, decision)
	}

	if decision.Verdict == authority.VerdictApproved {
		return 0
	}
	return 1
}

func printDecision(w io.Writer, d *authority.Decision) {
	switch d.Verdict {
	case authority.VerdictApproved:
		_, _ = fmt.Fprintf(w, "%s✅ execution approved%s\n", ColorBold+ColorGreen, ColorReset)
	case authority.VerdictPending:
		_, _ = fmt.Fprintf(w, "%s⏳ task held pending%s\n", ColorBold+ColorYellow, ColorReset)
	default:
		_, _ = fmt.Fprintf(w, "%s❌ execution denied%s\n", ColorBold+ColorRed, ColorReset)
	}

	_, _ = fmt.Fprintf(w, "   Decision:        %s\n", d.ID)
	_, _ = fmt.Fprintf(w, "   Task:            %s\n", d.TaskID)
	if d.FinalDecision != "" {
		_, _ = fmt.Fprintf(w, "   Outcome:         %s\n", d.FinalDecision)
	}
	_, _ = fmt.Fprintf(w, "   Reasoning:       %s\n", d.Reasoning)
	_, _ = fmt.Fprintf(w, "   Proposals:       %d\n", len(d.Proposals))
	_, _ = fmt.Fprintf(w, "   Reproducibility: %.3f\n", d.Reproducibility)
	_, _ = fmt.Fprintf(w, "   Duration:        %s\n", d.Duration)
}
