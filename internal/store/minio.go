package store

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// AssetStore wraps a MinIO client for profile image storage.
type AssetStore struct {
	client *minio.Client
	bucket string
}

func NewAssetStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*AssetStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	// Ensure bucket exists
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("minio bucket check: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("minio make bucket: %w", err)
		}
	}

	return &AssetStore{client: client, bucket: bucket}, nil
}

// UploadImage stores the bytes under a fresh key inside the given folder
// and returns the object key used as the asset reference.
func (s *AssetStore) UploadImage(ctx context.Context, folder string, data []byte, contentType string) (string, error) {
	key := path.Join(folder, uuid.New().String())
	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("minio upload: %w", err)
	}
	return key, nil
}

// Remove deletes an object, used to clean up after a failed signup.
func (s *AssetStore) Remove(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}
