package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/conclave/pkg/canon"
)

// Bundle is an exportable snapshot of the audit trail for external auditors:
// the full record sequence, the chain head, and a hash over the records so
// the bundle itself is tamper-evident.
type Bundle struct {
	BundleID    string    `json:"bundle_id"`
	CreatedAt   time.Time `json:"created_at"`
	RecordCount int       `json:"record_count"`
	ChainHead   string    `json:"chain_head"`
	Records     []Record  `json:"records"`
	BundleHash  string    `json:"bundle_hash"`
}

// ExportBundle snapshots the current audit trail. Exporting an empty ledger
// is an error: there is no evidence to bundle.
func (l *Ledger) ExportBundle(ctx context.Context) (*Bundle, error) {
	records, err := l.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger: export bundle: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("ledger: nothing to export, ledger is empty")
	}

	b := &Bundle{
		BundleID:    uuid.New().String(),
		CreatedAt:   l.clock().UTC(),
		RecordCount: len(records),
		ChainHead:   records[len(records)-1].RecordHash,
		Records:     records,
	}

	hash, err := canon.CanonicalHash(b.Records)
	if err != nil {
		return nil, fmt.Errorf("ledger: bundle hash: %w", err)
	}
	b.BundleHash = "sha256:" + hash
	return b, nil
}

// VerifyBundle checks a bundle's integrity: the bundle hash over its records
// and the chain links between consecutive records.
func VerifyBundle(b *Bundle) error {
	if b == nil || len(b.Records) == 0 {
		return errors.New("bundle is empty")
	}

	hash, err := canon.CanonicalHash(b.Records)
	if err != nil {
		return fmt.Errorf("bundle hash recomputation failed: %w", err)
	}
	if "sha256:"+hash != b.BundleHash {
		return fmt.Errorf("%w: bundle hash mismatch", ErrChainBroken)
	}

	for i := 1; i < len(b.Records); i++ {
		if b.Records[i].PrevHash != b.Records[i-1].RecordHash {
			return fmt.Errorf("%w: bundle chain broken at record %d",
				ErrChainBroken, b.Records[i].Seq)
		}
	}

	if b.Records[len(b.Records)-1].RecordHash != b.ChainHead {
		return fmt.Errorf("%w: bundle head does not match last record", ErrChainBroken)
	}
	return nil
}

// BlobStore is content-addressed storage for exported bundles. Keys are
// "sha256:"-prefixed hex digests of the stored bytes.
type BlobStore interface {
	Store(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, hash string) ([]byte, error)
	Exists(ctx context.Context, hash string) (bool, error)
}

// PublishBundle exports the current evidence bundle and writes its canonical
// encoding to the blob store, returning the content address and the bundle.
func PublishBundle(ctx context.Context, l *Ledger, blobs BlobStore) (string, *Bundle, error) {
	b, err := l.ExportBundle(ctx)
	if err != nil {
		return "", nil, err
	}

	data, err := canon.JCS(b)
	if err != nil {
		return "", nil, fmt.Errorf("ledger: encode bundle: %w", err)
	}

	addr, err := blobs.Store(ctx, data)
	if err != nil {
		return "", nil, fmt.Errorf("ledger: publish bundle: %w", err)
	}
	return addr, b, nil
}
