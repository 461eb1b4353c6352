// Package uploads stores answer files in object storage. Files are validated
// against the owning field definition's constraints before anything is
// written; a successful upload yields the durable reference recorded on the
// Answer.
package uploads

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"visaflow/internal/catalog"
	"visaflow/internal/platform/config"
	"visaflow/pkg/domain"
)

// FileRef is the durable reference to a stored answer file.
type FileRef struct {
	Path string `json:"file_path"`
	Name string `json:"file_name"`
	Size int64  `json:"file_size"`
}

// Store accepts answer files and hands back durable references.
type Store interface {
	Upload(ctx context.Context, appID domain.ApplicationID, def catalog.FieldDefinition, fileName string, size int64, contentType string, r io.Reader) (*FileRef, error)
	PresignDownload(ctx context.Context, path string, expiry time.Duration) (string, error)
}

// MinioStore keeps answer files in a MinIO/S3 bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// New creates a MinIO-backed store from the uploads config.
func New(cfg config.UploadsConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

// EnsureBucket makes sure the answer-file bucket exists before use.
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

// Upload validates the file against the field's constraints and stores it
// under a per-application object key.
func (s *MinioStore) Upload(ctx context.Context, appID domain.ApplicationID, def catalog.FieldDefinition, fileName string, size int64, contentType string, r io.Reader) (*FileRef, error) {
	if err := def.ValidateFile(fileName, size); err != nil {
		return nil, err
	}

	objectKey := fmt.Sprintf("applications/%s/fields/%d/%s-%s", appID, def.ID, uuid.NewString(), fileName)
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := s.client.PutObject(ctx, s.bucket, objectKey, r, size, opts); err != nil {
		return nil, fmt.Errorf("upload answer file: %w", err)
	}

	return &FileRef{Path: objectKey, Name: fileName, Size: size}, nil
}

// PresignDownload returns a signed GET URL for a stored answer file.
func (s *MinioStore) PresignDownload(ctx context.Context, path string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, path, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign answer file: %w", err)
	}
	return u.String(), nil
}
