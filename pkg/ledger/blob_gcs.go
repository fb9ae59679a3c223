//go:build gcp

package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/Mindburn-Labs/conclave/pkg/canon"
)

// GCSBlobStore stores exported bundles in Google Cloud Storage, keyed by
// content hash. Built only with the gcp tag; the default build reports GCS as
// unavailable.
type GCSBlobStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// GCSConfig configures the GCS bundle store.
type GCSConfig struct {
	Bucket string
	Prefix string
}

// NewGCSBlobStore builds a GCS-backed bundle store using application default
// credentials.
func NewGCSBlobStore(ctx context.Context, cfg GCSConfig) (*GCSBlobStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bundle store requires a bucket")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSBlobStore{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (s *GCSBlobStore) object(rawHash string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + rawHash + ".json")
}

func (s *GCSBlobStore) Store(ctx context.Context, data []byte) (string, error) {
	rawHash := canon.HashBytes(data)
	addr := "sha256:" + rawHash

	obj := s.object(rawHash)
	if _, err := obj.Attrs(ctx); err == nil {
		return addr, nil
	}

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("gcs write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("gcs close failed: %w", err)
	}
	return addr, nil
}

func (s *GCSBlobStore) Get(ctx context.Context, hash string) ([]byte, error) {
	rawHash, err := stripHashPrefix(hash)
	if err != nil {
		return nil, err
	}

	reader, err := s.object(rawHash).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs get failed for %s: %w", hash, err)
	}
	defer func() { _ = reader.Close() }()

	return io.ReadAll(reader)
}

func (s *GCSBlobStore) Exists(ctx context.Context, hash string) (bool, error) {
	rawHash, err := stripHashPrefix(hash)
	if err != nil {
		return false, err
	}

	if _, err := s.object(rawHash).Attrs(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("gcs attrs error: %w", err)
	}
	return true, nil
}

// Close releases the underlying GCS client.
func (s *GCSBlobStore) Close() error {
	return s.client.Close()
}
