package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/Mindburn-Labs/conclave/pkg/config"
	"github.com/Mindburn-Labs/conclave/pkg/ledger"
)

// runExportCmd implements `conclave export`.
//
// Snapshots the audit trail into a tamper-evident evidence bundle. The bundle
// is written to --out as JSON, published with --publish to the blob store
// named by CONCLAVE_BUNDLE_STORE (the content address is printed), or both.
//
// Exit codes:
//
//	0 = bundle exported
//	1 = nothing to export
//	2 = runtime error
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		outPath    string
		publish    bool
		jsonOutput bool
	)
	cmd.StringVar(&outPath, "out", "", "Write the bundle to this file")
	cmd.BoolVar(&publish, "publish", false, "Publish the bundle to the configured blob store")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the export summary as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if outPath == "" && !publish {
		_, _ = fmt.Fprintln(stderr, "Error: specify --out <file> or --publish")
		return 2
	}

	ctx := context.Background()
	o, cleanup, err := buildOrchestrator(ctx, config.Load())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer cleanup()

	var (
		bundle *ledger.Bundle
		addr   string
	)
	if publish {
		blobs, err := ledger.NewBlobStoreFromEnv(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		addr, bundle, err = ledger.PublishBundle(ctx, o.Ledger(), blobs)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	} else {
		bundle, err = o.Ledger().ExportBundle(ctx)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	if outPath != "" {
		data, err := json.MarshalIndent(bundle, "", "  ")
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		if err := os.WriteFile(outPath, data, 0600); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}

	if jsonOutput {
		result := map[string]any{
			"bundle_id":    bundle.BundleID,
			"record_count": bundle.RecordCount,
			"chain_head":   bundle.ChainHead,
			"bundle_hash":  bundle.BundleHash,
		}
		if outPath != "" {
			result["path"] = outPath
		}
		if addr != "" {
			result["address"] = addr
		}
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	_, _ = fmt.Fprintf(stdout, "%s✅ evidence bundle exported%s\n", ColorBold+ColorGreen, ColorReset)
	_, _ = fmt.Fprintf(stdout, "   Records: %d\n", bundle.RecordCount)
	_, _ = fmt.Fprintf(stdout, "   Head:    %s\n", bundle.ChainHead)
	_, _ = fmt.Fprintf(stdout, "   Hash:    %s\n", bundle.BundleHash)
	if outPath != "" {
		_, _ = fmt.Fprintf(stdout, "   File:    %s\n", outPath)
	}
	if addr != "" {
		_, _ = fmt.Fprintf(stdout, "   Address: %s\n", addr)
	}
	return 0
}
