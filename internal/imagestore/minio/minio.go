package minio

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/vbonduro/cardscan/internal/domain"
	"github.com/vbonduro/cardscan/internal/imagestore"
)

// Store hosts card images in an S3-compatible bucket. The bucket must allow
// anonymous reads so the OCR backend can fetch the returned URLs.
type Store struct {
	client     *minio.Client
	bucketName string
}

// New connects to the endpoint and creates the bucket when missing.
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Store{client: cli, bucketName: bucket}, nil
}

func (s *Store) Upload(ctx context.Context, name, mimeType string, r io.Reader) (domain.Asset, error) {
	key := ObjectKey(name, mimeType, uuid.NewString())

	_, err := s.client.PutObject(ctx, s.bucketName, key, r, -1, minio.PutObjectOptions{
		ContentType: mimeType,
	})
	if err != nil {
		return domain.Asset{}, fmt.Errorf("failed to put object: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.client.EndpointURL().String(), "/"), s.bucketName, key)
	return domain.Asset{URL: url, PublicID: key}, nil
}

func (s *Store) Delete(ctx context.Context, publicID string) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, publicID, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

// ObjectKey builds "cards/<stem>_<id><ext>" from an upload name.
func ObjectKey(name, mimeType, id string) string {
	stem := strings.TrimSuffix(path.Base(name), path.Ext(name))
	if stem == "" || stem == "." || stem == "/" {
		stem = "image"
	}
	return fmt.Sprintf("cards/%s_%s%s", stem, id, imagestore.ExtForMIME(mimeType))
}
