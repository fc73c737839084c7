// Package storage keeps copies of downloaded translations in object storage.
package storage

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/config"
)

type Archive interface {
	// PutFile uploads the local file and returns the object's URL.
	PutFile(ctx context.Context, objectName, filePath string) (string, error)
}

type MinioArchive struct {
	client   *minio.Client
	endpoint string
	bucket   string
	secure   bool
}

func NewMinioArchive(cfg config.Minio) (*MinioArchive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init Minio client: %w", err)
	}
	return &MinioArchive{client: client, endpoint: cfg.Endpoint, bucket: cfg.Bucket, secure: cfg.Secure}, nil
}

func (a *MinioArchive) PutFile(ctx context.Context, objectName, filePath string) (string, error) {
	_, err := a.client.FPutObject(ctx, a.bucket, objectName, filePath, minio.PutObjectOptions{ContentType: ContentType(filePath)})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to Minio: %w", objectName, err)
	}
	return a.ObjectURL(objectName), nil
}

func (a *MinioArchive) ObjectURL(objectName string) string {
	scheme := "http"
	if a.secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/%s", scheme, a.endpoint, a.bucket, objectName)
}

// ObjectName places a downloaded file under its session's prefix.
func ObjectName(sessionID, filePath string) string {
	return path.Join(sessionID, filepath.Base(filePath))
}

func ContentType(filePath string) string {
	switch ext := filepath.Ext(filePath); ext {
	case ".csv":
		return "text/csv"
	case "":
		return "application/octet-stream"
	default:
		if t := mime.TypeByExtension(ext); t != "" {
			return t
		}
		return "application/octet-stream"
	}
}
