//go:build !gcp

package ledger

import (
	"context"
	"fmt"
)

func newGCSFromEnv(ctx context.Context) (BlobStore, error) {
	return nil, fmt.Errorf("GCS bundle export is not enabled in this build (use -tags gcp)")
}
