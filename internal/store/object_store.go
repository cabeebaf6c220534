package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/canvaslabs/canvas/internal/domain"
)

type ObjectStoreConfig struct {
	Endpoint string
	Access   string
	Secret   string
	Bucket   string
	UseSSL   bool
	Prefix   string
}

// ObjectStore keeps originals in an S3-compatible bucket, one object per
// content hash. PutObject with the same key is idempotent on identical bytes.
type ObjectStore struct {
	minio  *minio.Client
	bucket string
	prefix string
}

func NewObjectStore(cfg ObjectStoreConfig) (*ObjectStore, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Access, cfg.Secret, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix == "" {
		prefix = "originals"
	}

	return &ObjectStore{
		minio:  mc,
		bucket: cfg.Bucket,
		prefix: prefix,
	}, nil
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.minio.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.minio.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := s.minio.BucketExists(ctx, s.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}

	return nil
}

func (s *ObjectStore) Put(ctx context.Context, data []byte) (string, error) {
	hash := HashBytes(data)
	key := s.objectKey(hash)

	if _, err := s.minio.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err == nil {
		return hash, nil
	}

	_, err := s.minio.PutObject(
		ctx,
		s.bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"},
	)
	if err != nil {
		return "", fmt.Errorf("%w: put object %s: %v", domain.ErrStorageUnavailable, key, err)
	}
	return hash, nil
}

func (s *ObjectStore) Get(ctx context.Context, hash string) ([]byte, error) {
	if !ValidHash(hash) {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, hash)
	}
	key := s.objectKey(hash)

	obj, err := s.minio.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get object %s: %v", domain.ErrStorageUnavailable, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isMissingObject(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, hash)
		}
		return nil, fmt.Errorf("%w: read object %s: %v", domain.ErrStorageUnavailable, key, err)
	}
	return data, nil
}

func (s *ObjectStore) objectKey(hash string) string {
	return path.Join(s.prefix, hash)
}

func isMissingObject(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject"
	}
	return false
}
