package ledger

import (
	"context"
	"fmt"
	"os"
)

// BlobStoreType selects the bundle export backend.
type BlobStoreType string

const (
	BlobStoreS3  BlobStoreType = "s3"
	BlobStoreGCS BlobStoreType = "gcs"
)

// NewBlobStoreFromEnv builds a bundle blob store from environment variables.
//
//   - CONCLAVE_BUNDLE_STORE: "s3" or "gcs"
//
// For S3:
//   - CONCLAVE_S3_BUCKET (required)
//   - CONCLAVE_S3_REGION or AWS_REGION
//   - CONCLAVE_S3_ENDPOINT (optional, MinIO/LocalStack)
//   - CONCLAVE_S3_PREFIX (optional)
//
// For GCS (requires the gcp build tag):
//   - CONCLAVE_GCS_BUCKET (required)
//   - CONCLAVE_GCS_PREFIX (optional)
func NewBlobStoreFromEnv(ctx context.Context) (BlobStore, error) {
	switch BlobStoreType(os.Getenv("CONCLAVE_BUNDLE_STORE")) {
	case BlobStoreS3:
		return newS3FromEnv(ctx)
	case BlobStoreGCS:
		return newGCSFromEnv(ctx)
	case "":
		return nil, fmt.Errorf("CONCLAVE_BUNDLE_STORE is not set")
	default:
		return nil, fmt.Errorf("unsupported bundle store type %q", os.Getenv("CONCLAVE_BUNDLE_STORE"))
	}
}

func newS3FromEnv(ctx context.Context) (BlobStore, error) {
	bucket := os.Getenv("CONCLAVE_S3_BUCKET")
	if bucket == "" {
		return nil, fmt.Errorf("CONCLAVE_S3_BUCKET is required for S3 bundle export")
	}

	region := os.Getenv("CONCLAVE_S3_REGION")
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = "us-east-1"
	}

	return NewS3BlobStore(ctx, S3Config{
		Bucket:   bucket,
		Region:   region,
		Endpoint: os.Getenv("CONCLAVE_S3_ENDPOINT"),
		Prefix:   os.Getenv("CONCLAVE_S3_PREFIX"),
	})
}
