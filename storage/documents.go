package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const maxDocumentBytes int64 = 20 * 1024 * 1024

// DocumentStorage keeps the raw uploaded files behind ingested documents in
// MinIO/S3 so the original payload survives text normalization.
type DocumentStorage struct {
	client *minio.Client
	bucket string
}

// NewDocumentStorageFromEnv initialises DocumentStorage using MINIO_*
// environment variables. Returns (nil, nil) when the variables are absent;
// raw uploads are then not retained.
func NewDocumentStorageFromEnv() (*DocumentStorage, error) {
	endpoint := strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	accessKey := strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	secretKey := strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY"))
	bucket := strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, nil
	}

	useSSL := strings.EqualFold(strings.TrimSpace(os.Getenv("MINIO_USE_SSL")), "true")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}

	return &DocumentStorage{client: client, bucket: bucket}, nil
}

// Upload stores the uploaded file beneath documents/<segments...>/<uuid>.<ext>
// and returns the object key.
func (s *DocumentStorage) Upload(ctx context.Context, fileHeader *multipart.FileHeader, pathSegments ...string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("document storage not configured")
	}
	if fileHeader == nil {
		return "", errors.New("document file not provided")
	}

	if fileHeader.Size > 0 && fileHeader.Size > maxDocumentBytes {
		return "", fmt.Errorf("document size exceeds %d bytes", maxDocumentBytes)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer src.Close()

	var buffer bytes.Buffer
	limited := io.LimitReader(src, maxDocumentBytes+1)
	written, err := io.Copy(&buffer, limited)
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if written > maxDocumentBytes {
		return "", fmt.Errorf("document size exceeds %d bytes", maxDocumentBytes)
	}

	data := buffer.Bytes()
	contentType := strings.TrimSpace(fileHeader.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	objectPathSegments := []string{"documents"}
	for _, segment := range pathSegments {
		trimmed := strings.Trim(segment, "/")
		if trimmed != "" {
			objectPathSegments = append(objectPathSegments, trimmed)
		}
	}
	objectName := path.Join(objectPathSegments...)
	objectName = path.Join(objectName, fmt.Sprintf("%s%s", uuid.NewString(), documentExtension(fileHeader.Filename)))

	uploadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	reader := bytes.NewReader(data)
	_, err = s.client.PutObject(uploadCtx, s.bucket, objectName, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload document: %w", err)
	}

	return objectName, nil
}

// Remove deletes the object stored under the given key.
func (s *DocumentStorage) Remove(ctx context.Context, objectKey string) error {
	if s == nil || s.client == nil {
		return nil
	}
	trimmed := strings.TrimSpace(objectKey)
	if trimmed == "" {
		return nil
	}

	removeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.client.RemoveObject(removeCtx, s.bucket, trimmed, minio.RemoveObjectOptions{})
}

// PresignedURL returns a temporary download URL for the stored object.
func (s *DocumentStorage) PresignedURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("document storage not configured")
	}
	trimmed := strings.TrimSpace(objectKey)
	if trimmed == "" {
		return "", nil
	}

	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	presignCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	url, err := s.client.PresignedGetObject(presignCtx, s.bucket, trimmed, expiry, nil)
	if err != nil {
		return "", err
	}
	return url.String(), nil
}

func documentExtension(filename string) string {
	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(filename)))
	if ext == "" {
		return ".txt"
	}
	return ext
}
