package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxImageBytes caps individual uploads, matching the route's file limit.
const MaxImageBytes int64 = 6 * 1024 * 1024

// ImageStorage stores reference and generated thumbnail images in MinIO/S3
// and hands back durable public URLs.
type ImageStorage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewImageStorageFromEnv initialises ImageStorage using MINIO_* environment
// variables. Returns nil without error when the variables are absent so the
// caller can degrade.
func NewImageStorageFromEnv() (*ImageStorage, error) {
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

	publicURL := strings.TrimSpace(os.Getenv("MINIO_PUBLIC_URL"))
	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s", scheme, endpoint)
	}

	return &ImageStorage{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}, nil
}

// Upload stores the provided image file beneath the given path segments.
// The final object key will be thumbnails/<segments...>/<uuid>.<ext>.
func (s *ImageStorage) Upload(ctx context.Context, fileHeader *multipart.FileHeader, pathSegments ...string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("image storage not configured")
	}
	if fileHeader == nil {
		return "", errors.New("image file not provided")
	}

	if fileHeader.Size > 0 && fileHeader.Size > MaxImageBytes {
		return "", fmt.Errorf("image size exceeds %d bytes", MaxImageBytes)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer src.Close()

	var buffer bytes.Buffer
	limited := io.LimitReader(src, MaxImageBytes+1)
	written, err := io.Copy(&buffer, limited)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if written > MaxImageBytes {
		return "", fmt.Errorf("image size exceeds %d bytes", MaxImageBytes)
	}

	data := buffer.Bytes()
	contentType := strings.TrimSpace(fileHeader.Header.Get("Content-Type"))
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	if !IsAllowedImageContent(contentType) {
		return "", fmt.Errorf("unsupported image content type %q", contentType)
	}

	objectName := buildObjectName(imageExtension(fileHeader.Filename, contentType), pathSegments...)

	return s.put(ctx, objectName, data, contentType)
}

// UploadBytes stores raw image bytes beneath the given path segments and
// returns the public URL. Used for model output, which never arrives as a
// multipart file.
func (s *ImageStorage) UploadBytes(ctx context.Context, data []byte, contentType string, pathSegments ...string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("image storage not configured")
	}
	if len(data) == 0 {
		return "", errors.New("image data is empty")
	}

	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	objectName := buildObjectName(imageExtension("", contentType), pathSegments...)

	return s.put(ctx, objectName, data, contentType)
}

func (s *ImageStorage) put(ctx context.Context, objectName string, data []byte, contentType string) (string, error) {
	uploadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(uploadCtx, s.bucket, objectName, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=604800",
	})
	if err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}

	return s.buildPublicURL(objectName), nil
}

// Remove deletes the object pointed to by the provided URL/object path.
func (s *ImageStorage) Remove(ctx context.Context, imageURL string) error {
	if s == nil || s.client == nil {
		return nil
	}
	objectName, ok := s.objectNameFromURL(imageURL)
	if !ok {
		return nil
	}

	removeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.client.RemoveObject(removeCtx, s.bucket, objectName, minio.RemoveObjectOptions{})
}

func buildObjectName(extension string, pathSegments ...string) string {
	objectPathSegments := []string{"thumbnails"}
	for _, segment := range pathSegments {
		trimmed := strings.Trim(segment, "/")
		if trimmed != "" {
			objectPathSegments = append(objectPathSegments, trimmed)
		}
	}
	objectName := path.Join(objectPathSegments...)
	return path.Join(objectName, fmt.Sprintf("%s%s", uuid.NewString(), extension))
}

func (s *ImageStorage) buildPublicURL(objectName string) string {
	base := strings.TrimSuffix(s.publicURL, "/")
	object := strings.TrimPrefix(objectName, "/")
	return fmt.Sprintf("%s/%s/%s", base, s.bucket, object)
}

func (s *ImageStorage) objectNameFromURL(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}

	base := strings.TrimSuffix(s.publicURL, "/")
	if base != "" && strings.HasPrefix(trimmed, base) {
		candidate := strings.TrimPrefix(trimmed, base)
		candidate = strings.TrimPrefix(candidate, "/")
		candidate = strings.TrimPrefix(candidate, s.bucket+"/")
		candidate = strings.TrimPrefix(candidate, "/")
		if candidate != "" {
			return candidate, true
		}
	}

	target, err := url.Parse(trimmed)
	if err != nil {
		return "", false
	}
	baseURL, err := url.Parse(base)
	if err == nil && baseURL.Host != "" && baseURL.Host == target.Host {
		candidate := strings.TrimPrefix(target.Path, "/")
		candidate = strings.TrimPrefix(candidate, s.bucket+"/")
		candidate = strings.TrimPrefix(candidate, "/")
		if candidate != "" {
			return candidate, true
		}
	}

	if !strings.Contains(trimmed, "://") {
		candidate := strings.TrimPrefix(trimmed, "/")
		candidate = strings.TrimPrefix(candidate, s.bucket+"/")
		candidate = strings.TrimPrefix(candidate, "/")
		if candidate != "" {
			return candidate, true
		}
	}

	return "", false
}

// IsAllowedImageContent reports whether the content type is one the upload
// route accepts.
func IsAllowedImageContent(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png", "image/x-png":
		return true
	case "image/jpeg", "image/pjpeg":
		return true
	case "image/webp":
		return true
	default:
		return false
	}
}

func imageExtension(filename, contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png", "image/x-png":
		return ".png"
	case "image/jpeg", "image/pjpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	}
	ext := strings.ToLower(strings.TrimSpace(filepath.Ext(filename)))
	if ext == "" {
		return ".bin"
	}
	return ext
}
