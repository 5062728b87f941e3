// Package archive keeps a copy of every uploaded BOM in object storage.
package archive

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ashtavinayaka/tankflow/internal/config"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// MinIOArchive uploads BOM files to a bucket.
type MinIOArchive struct {
	client *minio.Client
	bucket string
}

// New connects to MinIO and creates the bucket when missing.
func New(ctx context.Context, cfg config.MinIOConfig) (*MinIOArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIOArchive{client: client, bucket: cfg.Bucket}, nil
}

// ObjectKey is boms/{tankId}/{batch}-{filename}.
func ObjectKey(tankID string, batch int, filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "bom"
	}
	return fmt.Sprintf("boms/%s/%d-%s", tankID, batch, name)
}

// Store uploads the file at path and returns the object key.
func (a *MinIOArchive) Store(ctx context.Context, tankID string, batch int, filename, path string) (string, error) {
	key := ObjectKey(tankID, batch, filename)
	_, err := a.client.FPutObject(ctx, a.bucket, key, path, minio.PutObjectOptions{
		ContentType: contentType(filename),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

func contentType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return "text/csv"
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return contentTypeXLSX
	}
	return "application/octet-stream"
}
