// Package config loads process configuration from CONCLAVE_* environment
// variables. Policy thresholds default to the baseline kernel so an
// unconfigured process still boots with safe limits.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Mindburn-Labs/conclave/pkg/collect"
	"github.com/Mindburn-Labs/conclave/pkg/policy"
)

// Config holds everything the process wiring reads from the environment.
type Config struct {
	MinConsensus       float64
	MinReproducibility float64
	MaxConfidence      float64
	ForbiddenPatterns  []string
	WorkerTimeout      time.Duration
	MaxParallel        int // 0 bounds parallelism by pool size

	// PolicyProfile points at a policy.yaml; when set it wins over the
	// inline thresholds above.
	PolicyProfile string

	// LedgerDriver selects audit persistence: "" (in-memory), "postgres"
	// or "sqlite", with LedgerDSN as the driver's connection string.
	LedgerDriver string
	LedgerDSN    string

	// RedisAddr switches shared memory to Redis when non-empty.
	RedisAddr string

	// SigningSeed is a hex-encoded 32-byte Ed25519 seed. When set, audit
	// records are signed with the derived key.
	SigningSeed string

	// OTELEndpoint enables telemetry export when non-empty.
	OTELEndpoint string
}

// Load reads configuration from environment variables.
func Load() *Config {
	defaults := policy.Default()

	return &Config{
		MinConsensus:       getEnvFloat("CONCLAVE_MIN_CONSENSUS", defaults.MinConsensus()),
		MinReproducibility: getEnvFloat("CONCLAVE_MIN_REPRODUCIBILITY", defaults.MinReproducibility()),
		MaxConfidence:      getEnvFloat("CONCLAVE_MAX_CONFIDENCE", defaults.MaxConfidence()),
		ForbiddenPatterns:  getEnvList("CONCLAVE_FORBIDDEN", defaults.ForbiddenPatterns()),
		WorkerTimeout:      getEnvDuration("CONCLAVE_WORKER_TIMEOUT", collect.DefaultCallTimeout),
		MaxParallel:        getEnvInt("CONCLAVE_MAX_PARALLEL", 0),
		PolicyProfile:      getEnv("CONCLAVE_POLICY_PROFILE", ""),
		LedgerDriver:       getEnv("CONCLAVE_LEDGER_DRIVER", ""),
		LedgerDSN:          getEnv("CONCLAVE_LEDGER_DSN", ""),
		RedisAddr:          getEnv("CONCLAVE_REDIS_ADDR", ""),
		SigningSeed:        getEnv("CONCLAVE_SIGNING_SEED", ""),
		OTELEndpoint:       getEnv("CONCLAVE_OTEL_ENDPOINT", ""),
	}
}

// Kernel constructs the policy kernel this configuration describes: the
// profile file when one is set, otherwise the inline thresholds.
func (c *Config) Kernel() (*policy.Kernel, error) {
	if c.PolicyProfile != "" {
		return policy.LoadProfile(c.PolicyProfile)
	}
	return policy.New(policy.Params{
		MinConsensus:       c.MinConsensus,
		MinReproducibility: c.MinReproducibility,
		MaxConfidence:      c.MaxConfidence,
		ForbiddenPatterns:  c.ForbiddenPatterns,
	})
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
