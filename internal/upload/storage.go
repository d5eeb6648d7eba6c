package upload

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"shop-backend/config"
)

// Storage accepts a local file and returns a public URL. The caller removes
// the local temp file afterwards.
type Storage interface {
	UploadFile(ctx context.Context, localPath, contentType string) (string, error)
}

// ObjectStorage uploads files to an S3-compatible bucket.
type ObjectStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewObjectStorage creates an object storage client from config.
func NewObjectStorage(cfg config.StorageConfig) (*ObjectStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &ObjectStorage{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: cfg.PublicURL,
	}, nil
}

// UploadFile stores the file under a random object name, keeping the original
// extension, and returns its public URL.
func (s *ObjectStorage) UploadFile(ctx context.Context, localPath, contentType string) (string, error) {
	objectName := uuid.New().String() + filepath.Ext(localPath)

	_, err := s.client.FPutObject(ctx, s.bucket, objectName, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}

	return fmt.Sprintf("%s/%s", s.publicURL, objectName), nil
}
