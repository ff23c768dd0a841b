package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore stores uploaded images and returns the object path saved on the entity.
type ObjectStore interface {
	Put(ctx context.Context, folder, fileName string, r io.Reader, size int64, contentType string) (string, error)
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// MinioStore writes to a minio bucket. With a nil client only the path is generated.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinio connects to minio; an empty endpoint yields a path-only store.
func NewMinio(cfg MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" {
		return &MinioStore{bucket: cfg.Bucket}, nil
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}
	return s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
}

func (s *MinioStore) Put(ctx context.Context, folder, fileName string, r io.Reader, size int64, contentType string) (string, error) {
	objectName := ObjectName(folder, fileName, time.Now())
	if s.client != nil {
		_, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
			ContentType: contentType,
		})
		if err != nil {
			return "", fmt.Errorf("upload file: %w", err)
		}
	}
	return objectName, nil
}

// ObjectName builds "{folder}/{yyyy/mm/dd}/{8 hex}{ext}".
func ObjectName(folder, fileName string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return fmt.Sprintf("%s/%s/%s%s", folder, at.Format("2006/01/02"), uuid.New().String()[:8], ext)
}
