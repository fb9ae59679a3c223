// Package ledger is the append-only audit trail: one hash-chained record per
// decision. Records are never edited or removed; appends serialize under a
// mutex so sequence numbers and chain links stay well-defined even when many
// decisions are processed concurrently.
package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Mindburn-Labs/conclave/pkg/authority"
	"github.com/Mindburn-Labs/conclave/pkg/canon"
	"github.com/Mindburn-Labs/conclave/pkg/signing"
)

// ErrChainBroken marks a verification failure: a record's chain link or
// recomputed hash does not match what is stored.
var ErrChainBroken = errors.New("audit chain is broken")

// genesisHash seeds the chain before the first record.
const genesisHash = "genesis"

// Record is one immutable audit entry. ContentHash is the decision digest
// used for external reproducibility checks; RecordHash additionally covers
// the chain link and is what the next record's PrevHash points at.
type Record struct {
	Seq             uint64            `json:"seq"`
	DecisionID      string            `json:"decision_id"`
	TaskID          string            `json:"task_id"`
	Verdict         authority.Verdict `json:"verdict"`
	ProposalCount   int               `json:"proposal_count"`
	Reproducibility float64           `json:"reproducibility"`
	ContentHash     string            `json:"content_hash"`
	PrevHash        string            `json:"prev_hash"`
	RecordHash      string            `json:"record_hash"`
	Signature       string            `json:"signature,omitempty"`
	Timestamp       time.Time         `json:"timestamp"`
}

// DecisionDigest computes the deterministic content hash of a decision:
// SHA-256 over the canonical JSON of (final decision text, reasoning text,
// reproducibility score), truncated to 16 hex characters. Identical inputs
// always yield the identical digest.
func DecisionDigest(finalDecision, reasoning string, reproducibility float64) (string, error) {
	canonical, err := canon.JCS(map[string]any{
		"final_decision":  finalDecision,
		"reasoning":       reasoning,
		"reproducibility": reproducibility,
	})
	if err != nil {
		return "", fmt.Errorf("decision digest: %w", err)
	}
	return canon.HashBytes(canonical)[:16], nil
}

// Ledger appends decisions to a Store as hash-chained records.
type Ledger struct {
	mu      sync.Mutex
	store   Store
	keyring *signing.Keyring
	clock   func() time.Time
	head    string
	seq     uint64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStore replaces the default in-memory store.
func WithStore(s Store) Option {
	return func(l *Ledger) {
		if s != nil {
			l.store = s
		}
	}
}

// WithSigner makes the ledger sign each record hash with the keyring.
func WithSigner(k *signing.Keyring) Option {
	return func(l *Ledger) { l.keyring = k }
}

// WithClock overrides record timestamping for deterministic tests.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New builds a ledger over its store and resumes the chain from whatever the
// store already holds, so a restart continues the existing sequence instead
// of forking it.
func New(ctx context.Context, opts ...Option) (*Ledger, error) {
	l := &Ledger{
		store: NewMemoryStore(),
		clock: time.Now,
		head:  genesisHash,
	}
	for _, opt := range opts {
		opt(l)
	}

	records, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: resume from store: %w", err)
	}
	if n := len(records); n > 0 {
		l.seq = records[n-1].Seq
		l.head = records[n-1].RecordHash
	}
	return l, nil
}

// Append records the decision. Appends are serialized; the returned record is
// a copy the caller may keep.
func (l *Ledger) Append(ctx context.Context, d *authority.Decision) (*Record, error) {
	if d == nil {
		return nil, errors.New("ledger: nil decision")
	}

	digest, err := DecisionDigest(d.FinalDecision, d.Reasoning, d.Reproducibility)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		Seq:             l.seq + 1,
		DecisionID:      d.ID,
		TaskID:          d.TaskID,
		Verdict:         d.Verdict,
		ProposalCount:   len(d.Proposals),
		Reproducibility: d.Reproducibility,
		ContentHash:     digest,
		PrevHash:        l.head,
		// SQL timestamp columns keep microseconds at best; the hash must
		// cover only what survives a store round-trip, or Verify over a
		// persistent backend would recompute a different hash for every
		// untampered record.
		Timestamp: l.clock().UTC().Truncate(time.Microsecond),
	}

	hash, err := recordHash(&rec)
	if err != nil {
		return nil, fmt.Errorf("ledger: hash record: %w", err)
	}
	rec.RecordHash = hash

	if l.keyring != nil {
		sig, err := l.keyring.SignBytes([]byte(rec.RecordHash))
		if err != nil {
			return nil, fmt.Errorf("ledger: sign record: %w", err)
		}
		rec.Signature = hex.EncodeToString(sig)
	}

	if err := l.store.Append(ctx, rec); err != nil {
		return nil, fmt.Errorf("ledger: append: %w", err)
	}

	l.seq = rec.Seq
	l.head = rec.RecordHash
	return &rec, nil
}

// Tail returns at most limit most-recent records, ordered oldest to newest.
// It never mutates the ledger; a non-positive limit yields an empty slice.
func (l *Ledger) Tail(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		return []Record{}, nil
	}

	records, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: tail: %w", err)
	}
	if len(records) > limit {
		records = records[len(records)-limit:]
	}
	return records, nil
}

// Head returns the current chain head hash.
func (l *Ledger) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head
}

// Length returns the number of records appended so far.
func (l *Ledger) Length(ctx context.Context) (int, error) {
	return l.store.Len(ctx)
}

// Verify walks the full chain, checking every link and recomputing every
// record hash. When the ledger signs records, signatures are checked against
// the keyring's public key too. Any mismatch wraps ErrChainBroken.
func (l *Ledger) Verify(ctx context.Context) error {
	records, err := l.store.List(ctx)
	if err != nil {
		return fmt.Errorf("ledger: verify: %w", err)
	}

	prev := genesisHash
	for _, rec := range records {
		if rec.PrevHash != prev {
			return fmt.Errorf("%w: record %d links to %s, expected %s",
				ErrChainBroken, rec.Seq, rec.PrevHash, prev)
		}

		computed, err := recordHash(&rec)
		if err != nil {
			return fmt.Errorf("%w: record %d hash recomputation failed: %v",
				ErrChainBroken, rec.Seq, err)
		}
		if computed != rec.RecordHash {
			return fmt.Errorf("%w: record %d hash mismatch (computed %s, stored %s)",
				ErrChainBroken, rec.Seq, computed, rec.RecordHash)
		}

		if l.keyring != nil && rec.Signature != "" {
			sig, err := hex.DecodeString(rec.Signature)
			if err != nil || !l.keyring.VerifyBytes([]byte(rec.RecordHash), sig) {
				return fmt.Errorf("%w: record %d signature invalid", ErrChainBroken, rec.Seq)
			}
		}

		prev = rec.RecordHash
	}
	return nil
}

// recordHash hashes the stable fields of the record, chain link included.
// The Signature and RecordHash fields are excluded so the hash can be
// recomputed during verification.
func recordHash(rec *Record) (string, error) {
	canonical, err := canon.JCS(map[string]any{
		"seq":             rec.Seq,
		"decision_id":     rec.DecisionID,
		"task_id":         rec.TaskID,
		"verdict":         rec.Verdict,
		"proposal_count":  rec.ProposalCount,
		"reproducibility": rec.Reproducibility,
		"content_hash":    rec.ContentHash,
		"prev_hash":       rec.PrevHash,
		"timestamp":       rec.Timestamp.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", err
	}
	return "sha256:" + canon.HashBytes(canonical), nil
}
