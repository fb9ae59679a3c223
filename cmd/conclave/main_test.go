package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mindburn-Labs/conclave/pkg/ledger"
)

// clearEnv blanks every CONCLAVE_* variable the wiring reads, so tests run
// against in-memory defaults regardless of the ambient environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CONCLAVE_MIN_CONSENSUS", "CONCLAVE_MIN_REPRODUCIBILITY",
		"CONCLAVE_MAX_CONFIDENCE", "CONCLAVE_FORBIDDEN",
		"CONCLAVE_WORKER_TIMEOUT", "CONCLAVE_MAX_PARALLEL",
		"CONCLAVE_POLICY_PROFILE", "CONCLAVE_LEDGER_DRIVER",
		"CONCLAVE_LEDGER_DSN", "CONCLAVE_REDIS_ADDR",
		"CONCLAVE_SIGNING_SEED", "CONCLAVE_OTEL_ENDPOINT",
		"CONCLAVE_BUNDLE_STORE",
	} {
		t.Setenv(key, "")
	}
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"conclave"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	clearEnv(t)
	code, stdout, _ := runCLI(t)
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "USAGE") {
		t.Errorf("usage not printed:\n%s", stdout)
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	clearEnv(t)
	code, _, stderr := runCLI(t, "frobnicate")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(stderr, "Unknown command") {
		t.Errorf("stderr = %s", stderr)
	}
}

func TestRun_Version(t *testing.T) {
	clearEnv(t)
	code, stdout, _ := runCLI(t, "version")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, version) {
		t.Errorf("version missing from output: %s", stdout)
	}
}

func TestDecide_Approved(t *testing.T) {
	clearEnv(t)
	code, stdout, stderr := runCLI(t, "decide", "plan the database migration")
	if code != 0 {
		t.Fatalf("exit = %d, want 0 (stderr: %s)", code, stderr)
	}
	if !strings.Contains(stdout, "execution approved") {
		t.Errorf("stdout = %s", stdout)
	}
}

func TestDecide_JSON(t *testing.T) {
	clearEnv(t)
	code, stdout, stderr := runCLI(t, "decide", "--json", "plan the database migration")
	if code != 0 {
		t.Fatalf("exit = %d, want 0 (stderr: %s)", code, stderr)
	}

	var decision map[string]any
	if err := json.Unmarshal([]byte(stdout), &decision); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if decision["verdict"] != "approved" {
		t.Errorf("verdict = %v, want approved", decision["verdict"])
	}
}

func TestDecide_RequiresTask(t *testing.T) {
	clearEnv(t)
	code, _, stderr := runCLI(t, "decide")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(stderr, "task is required") {
		t.Errorf("stderr = %s", stderr)
	}
}

func TestDecide_RejectsMalformedContext(t *testing.T) {
	clearEnv(t)
	code, _, stderr := runCLI(t, "decide", "--context", "{not json", "some task")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(stderr, "JSON object") {
		t.Errorf("stderr = %s", stderr)
	}
}

func TestDecide_UnknownLedgerDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("CONCLAVE_LEDGER_DRIVER", "etcd")
	code, _, stderr := runCLI(t, "decide", "some task")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(stderr, "unknown ledger driver") {
		t.Errorf("stderr = %s", stderr)
	}
}

func TestAudit_EmptyTrail(t *testing.T) {
	clearEnv(t)
	code, stdout, _ := runCLI(t, "audit")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "audit trail is empty") {
		t.Errorf("stdout = %s", stdout)
	}
}

func TestVerify_EmptyChain(t *testing.T) {
	clearEnv(t)
	code, stdout, _ := runCLI(t, "verify")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	if !strings.Contains(stdout, "audit chain verified") {
		t.Errorf("stdout = %s", stdout)
	}
}

func TestPolicy_PrintsThresholds(t *testing.T) {
	clearEnv(t)
	code, stdout, _ := runCLI(t, "policy")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	for _, want := range []string{"Min consensus", "0.70", "system_file_deletion"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("policy output missing %q:\n%s", want, stdout)
		}
	}
}

func TestWorkers_ListsBuiltinPool(t *testing.T) {
	clearEnv(t)
	code, stdout, _ := runCLI(t, "workers")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}
	for _, kind := range []string{"reasoning", "critique", "verification"} {
		if !strings.Contains(stdout, kind) {
			t.Errorf("workers output missing %q:\n%s", kind, stdout)
		}
	}
}

func TestExport_RequiresDestination(t *testing.T) {
	clearEnv(t)
	code, _, stderr := runCLI(t, "export")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(stderr, "--out <file> or --publish") {
		t.Errorf("stderr = %s", stderr)
	}
}

func TestExport_EmptyLedger(t *testing.T) {
	clearEnv(t)
	code, _, stderr := runCLI(t, "export", "--out", filepath.Join(t.TempDir(), "bundle.json"))
	if code != 1 {
		t.Fatalf("exit = %d, want 1", code)
	}
	if !strings.Contains(stderr, "nothing to export") {
		t.Errorf("stderr = %s", stderr)
	}
}

func TestExport_UnconfiguredBlobStore(t *testing.T) {
	clearEnv(t)
	code, _, stderr := runCLI(t, "export", "--publish")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}
	if !strings.Contains(stderr, "CONCLAVE_BUNDLE_STORE") {
		t.Errorf("stderr = %s", stderr)
	}
}

// TestExport_SQLiteBundle decides against a SQLite ledger, then exports the
// evidence bundle to a file and checks the written bundle verifies.
func TestExport_SQLiteBundle(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Setenv("CONCLAVE_LEDGER_DRIVER", "sqlite")
	t.Setenv("CONCLAVE_LEDGER_DSN", "file:"+filepath.Join(dir, "audit.db"))

	code, _, stderr := runCLI(t, "decide", "plan the database migration")
	if code != 0 {
		t.Fatalf("decide: exit = %d (stderr: %s)", code, stderr)
	}

	outPath := filepath.Join(dir, "bundle.json")
	code, stdout, stderr := runCLI(t, "export", "--out", outPath, "--json")
	if code != 0 {
		t.Fatalf("export: exit = %d (stderr: %s)", code, stderr)
	}

	var summary map[string]any
	if err := json.Unmarshal([]byte(stdout), &summary); err != nil {
		t.Fatalf("summary is not JSON: %v\n%s", err, stdout)
	}
	if summary["record_count"] != float64(1) {
		t.Errorf("record_count = %v, want 1", summary["record_count"])
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("bundle file: %v", err)
	}
	var bundle ledger.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		t.Fatalf("bundle is not JSON: %v", err)
	}
	if err := ledger.VerifyBundle(&bundle); err != nil {
		t.Errorf("exported bundle does not verify: %v", err)
	}
}

// TestSQLiteRoundTrip drives the persistent path end to end: two signed
// decisions into a SQLite ledger, then the trail and chain read back by
// separate invocations.
func TestSQLiteRoundTrip(t *testing.T) {
	clearEnv(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "audit.db")
	t.Setenv("CONCLAVE_LEDGER_DRIVER", "sqlite")
	t.Setenv("CONCLAVE_LEDGER_DSN", dsn)
	t.Setenv("CONCLAVE_SIGNING_SEED", strings.Repeat("ab", 32))

	for _, task := range []string{"first task", "second task"} {
		code, _, stderr := runCLI(t, "decide", task)
		if code != 0 {
			t.Fatalf("decide %q: exit = %d (stderr: %s)", task, code, stderr)
		}
	}

	code, stdout, stderr := runCLI(t, "audit", "-n", "10")
	if code != 0 {
		t.Fatalf("audit: exit = %d (stderr: %s)", code, stderr)
	}
	if strings.Count(stdout, "approved") != 2 {
		t.Errorf("expected 2 approved entries:\n%s", stdout)
	}

	code, stdout, stderr = runCLI(t, "verify", "--json")
	if code != 0 {
		t.Fatalf("verify: exit = %d (stderr: %s)", code, stderr)
	}
	var result map[string]any
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("verify output is not JSON: %v\n%s", err, stdout)
	}
	if result["valid"] != true {
		t.Errorf("chain not valid: %v", result)
	}
	if result["records"] != float64(2) {
		t.Errorf("records = %v, want 2", result["records"])
	}
}
