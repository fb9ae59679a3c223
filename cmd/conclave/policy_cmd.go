package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/Mindburn-Labs/conclave/pkg/config"
	"github.com/Mindburn-Labs/conclave/pkg/registry"
	"github.com/Mindburn-Labs/conclave/pkg/worker"
)

// runPolicyCmd implements `conclave policy`: it prints the effective policy
// kernel after profile and environment resolution, so operators can see what
// a decision would actually be gated on.
func runPolicyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("policy", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var jsonOutput bool
	cmd.BoolVar(&jsonOutput, "json", false, "Output the policy as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	kernel, err := cfg.Kernel()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	if jsonOutput {
		result := map[string]any{
			"version":             kernel.Version(),
			"min_consensus":       kernel.MinConsensus(),
			"min_reproducibility": kernel.MinReproducibility(),
			"max_confidence":      kernel.MaxConfidence(),
			"forbidden_patterns":  kernel.ForbiddenPatterns(),
			"rules":               kernel.Rules(),
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "%sEffective policy%s (version %s)\n", ColorBold, ColorReset, kernel.Version())
	if cfg.PolicyProfile != "" {
		_, _ = fmt.Fprintf(stdout, "   Profile:             %s\n", cfg.PolicyProfile)
	}
	_, _ = fmt.Fprintf(stdout, "   Min consensus:       %.2f\n", kernel.MinConsensus())
	_, _ = fmt.Fprintf(stdout, "   Min reproducibility: %.2f\n", kernel.MinReproducibility())
	_, _ = fmt.Fprintf(stdout, "   Max confidence:      %.2f\n", kernel.MaxConfidence())
	_, _ = fmt.Fprintln(stdout, "   Forbidden patterns:")
	for _, p := range kernel.ForbiddenPatterns() {
		_, _ = fmt.Fprintf(stdout, "     - %s\n", p)
	}
	if rules := kernel.Rules(); len(rules) > 0 {
		_, _ = fmt.Fprintln(stdout, "   Rules:")
		for _, r := range rules {
			_, _ = fmt.Fprintf(stdout, "     - %s: %s\n", r.Name, r.Expr)
		}
	}
	return 0
}

// runWorkersCmd implements `conclave workers`: it lists the worker pool a
// decision would draw from.
func runWorkersCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("workers", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var jsonOutput bool
	cmd.BoolVar(&jsonOutput, "json", false, "Output the pool as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	reg := registry.NewInMemoryRegistry()
	for _, w := range worker.BuiltinPool() {
		if err := reg.Register(w); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	pool := reg.List()
	if jsonOutput {
		type entry struct {
			ID   string      `json:"id"`
			Kind worker.Kind `json:"kind"`
		}
		entries := make([]entry, len(pool))
		for i, w := range pool {
			entries[i] = entry{ID: w.ID(), Kind: w.Kind()}
		}
		data, _ := json.MarshalIndent(entries, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "%s%-14s %s%s\n", ColorBold, "KIND", "ID", ColorReset)
	for _, w := range pool {
		_, _ = fmt.Fprintf(stdout, "%-14s %s\n", w.Kind(), w.ID())
	}
	return 0
}
