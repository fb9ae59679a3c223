package main

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/Mindburn-Labs/conclave/pkg/config"
	"github.com/Mindburn-Labs/conclave/pkg/ledger"
	"github.com/Mindburn-Labs/conclave/pkg/memory"
	"github.com/Mindburn-Labs/conclave/pkg/observability"
	"github.com/Mindburn-Labs/conclave/pkg/orchestrator"
	"github.com/Mindburn-Labs/conclave/pkg/registry"
	"github.com/Mindburn-Labs/conclave/pkg/signing"
	"github.com/Mindburn-Labs/conclave/pkg/worker"

	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // SQLite driver (CGO-free)
)

// buildOrchestrator wires an orchestrator from the environment configuration:
// policy kernel, audit persistence, shared memory, record signing, telemetry
// and the builtin worker pool. The returned cleanup releases every connection
// it opened and must be called once the orchestrator is done.
func buildOrchestrator(ctx context.Context, cfg *config.Config) (*orchestrator.Orchestrator, func(), error) {
	kernel, err := cfg.Kernel()
	if err != nil {
		return nil, nil, fmt.Errorf("policy: %w", err)
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*orchestrator.Orchestrator, func(), error) {
		cleanup()
		return nil, nil, err
	}

	reg := registry.NewInMemoryRegistry()
	for _, w := range worker.BuiltinPool() {
		if err := reg.Register(w); err != nil {
			return fail(fmt.Errorf("register worker: %w", err))
		}
	}

	opts := []orchestrator.Option{
		orchestrator.WithRegistry(reg),
		orchestrator.WithWorkerTimeout(cfg.WorkerTimeout),
	}
	if cfg.MaxParallel > 0 {
		opts = append(opts, orchestrator.WithMaxParallel(cfg.MaxParallel))
	}

	var db *sql.DB
	switch cfg.LedgerDriver {
	case "":
		// In-memory audit trail.
	case "postgres", "sqlite":
		db, err = sql.Open(cfg.LedgerDriver, cfg.LedgerDSN)
		if err != nil {
			return fail(fmt.Errorf("open %s: %w", cfg.LedgerDriver, err))
		}
		cleanups = append(cleanups, func() { _ = db.Close() })
		if err := db.PingContext(ctx); err != nil {
			return fail(fmt.Errorf("ping %s: %w", cfg.LedgerDriver, err))
		}

		store := ledger.NewSQLStore(db)
		if err := store.Init(ctx); err != nil {
			return fail(fmt.Errorf("init audit store: %w", err))
		}

		ledgerOpts := []ledger.Option{ledger.WithStore(store)}
		if keyring, err := loadKeyring(cfg); err != nil {
			return fail(err)
		} else if keyring != nil {
			ledgerOpts = append(ledgerOpts, ledger.WithSigner(keyring))
		}

		l, err := ledger.New(ctx, ledgerOpts...)
		if err != nil {
			return fail(fmt.Errorf("ledger: %w", err))
		}
		opts = append(opts, orchestrator.WithLedger(l))
	default:
		return fail(fmt.Errorf("unknown ledger driver %q (want postgres or sqlite)", cfg.LedgerDriver))
	}

	// In-memory ledgers can still sign.
	if cfg.LedgerDriver == "" && cfg.SigningSeed != "" {
		keyring, err := loadKeyring(cfg)
		if err != nil {
			return fail(err)
		}
		l, err := ledger.New(ctx, ledger.WithSigner(keyring))
		if err != nil {
			return fail(fmt.Errorf("ledger: %w", err))
		}
		opts = append(opts, orchestrator.WithLedger(l))
	}

	// Shared memory: Redis wins, then the audit database, then in-process.
	switch {
	case cfg.RedisAddr != "":
		store := memory.NewRedisStore(cfg.RedisAddr, "", 0)
		cleanups = append(cleanups, func() { _ = store.Close() })
		opts = append(opts, orchestrator.WithMemory(store))
	case db != nil:
		store := memory.NewSQLStore(db)
		if err := store.Init(ctx); err != nil {
			return fail(fmt.Errorf("init memory store: %w", err))
		}
		opts = append(opts, orchestrator.WithMemory(store))
	}

	if cfg.OTELEndpoint != "" {
		obsCfg := observability.DefaultConfig()
		obsCfg.Enabled = true
		obsCfg.OTLPEndpoint = cfg.OTELEndpoint
		obsCfg.ServiceVersion = version

		provider, err := observability.New(ctx, obsCfg)
		if err != nil {
			return fail(fmt.Errorf("telemetry: %w", err))
		}
		cleanups = append(cleanups, func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = provider.Shutdown(shutdownCtx)
		})
		opts = append(opts, orchestrator.WithObservability(provider))
	}

	o, err := orchestrator.New(kernel, opts...)
	if err != nil {
		return fail(fmt.Errorf("orchestrator: %w", err))
	}
	return o, cleanup, nil
}

// loadKeyring builds the record-signing keyring from the configured seed.
// Returns nil when no seed is configured.
func loadKeyring(cfg *config.Config) (*signing.Keyring, error) {
	if cfg.SigningSeed == "" {
		return nil, nil
	}
	seed, err := hex.DecodeString(cfg.SigningSeed)
	if err != nil {
		return nil, fmt.Errorf("signing seed: %w", err)
	}
	provider, err := signing.NewMemoryKeyProviderFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("signing key: %w", err)
	}
	return signing.NewKeyring(provider), nil
}
