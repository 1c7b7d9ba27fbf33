// Package media stores uploaded images and files in S3-compatible object
// storage. Object keys are generated uuids so uploads never collide or
// leak original filenames.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config carries the object storage settings.
type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string // base for served object URLs
	Logger        *slog.Logger
}

// Upload describes a stored object.
type Upload struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Uploader writes objects into one bucket. Safe for concurrent use.
type Uploader struct {
	client        *miniogo.Client
	bucket        string
	publicBaseURL string
	log           *slog.Logger
}

// NewUploader connects to object storage and verifies the bucket exists.
func NewUploader(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %q does not exist", cfg.Bucket)
	}

	return &Uploader{
		client:        client,
		bucket:        cfg.Bucket,
		publicBaseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		log:           cfg.Logger,
	}, nil
}

// Store writes one object under a generated key inside the given prefix
// ("media" for images, "files" for attachments) and returns its public URL.
func (u *Uploader) Store(ctx context.Context, prefix, filename string, r io.Reader, size int64) (*Upload, error) {
	key := ObjectKey(prefix, filename)
	contentType := ContentTypeFor(filename)

	info, err := u.client.PutObject(ctx, u.bucket, key, r, size, miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("store object %s: %w", key, err)
	}

	u.log.Info("stored upload", "key", key, "size", info.Size, "content_type", contentType)
	return &Upload{
		Key:         key,
		URL:         u.publicBaseURL + "/" + key,
		ContentType: contentType,
		Size:        info.Size,
	}, nil
}

// ObjectKey builds a collision-free key: prefix/uuid plus the original
// file extension, lowercased.
func ObjectKey(prefix, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return prefix + "/" + uuid.NewString() + ext
}

// ContentTypeFor resolves a MIME type from the filename's extension,
// falling back to octet-stream.
func ContentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
