//go:build gcp

package ledger

import (
	"context"
	"fmt"
	"os"
)

func newGCSFromEnv(ctx context.Context) (BlobStore, error) {
	bucket := os.Getenv("CONCLAVE_GCS_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("CONCLAVE_GCS_BUCKET is required for GCS bundle export")
	}

	return NewGCSBlobStore(ctx, GCSConfig{
		Bucket: bucket,
		Prefix: os.Getenv("CONCLAVE_GCS_PREFIX"),
	})
}
