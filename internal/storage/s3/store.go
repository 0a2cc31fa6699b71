// Package s3 stores catalog snapshots in an S3-compatible bucket through
// minio-go.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/shopassist/shopassist/internal/storage"
)

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

func (c Config) validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("s3 endpoint is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	return nil
}

// bucketAPI is the slice of the S3 API the store uses, scoped to one bucket.
type bucketAPI interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error)
	GetObject(ctx context.Context, key string) (io.ReadCloser, error)
	StatObject(ctx context.Context, key string) (storage.ObjectInfo, error)
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context, region string) error
	Name() string
}

// Store implements storage.ObjectStore. Keys are resolved below an optional
// prefix so several environments can share a bucket.
type Store struct {
	bucket bucketAPI
	prefix string
}

func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	bucket, err := dialBucket(cfg)
	if err != nil {
		return nil, err
	}
	store := &Store{bucket: bucket, prefix: cleanPrefix(cfg.Prefix)}
	if cfg.AutoCreateBucket {
		if err := store.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func newWithBucket(bucket bucketAPI, prefix string) (*Store, error) {
	if bucket == nil {
		return nil, fmt.Errorf("bucket client is required")
	}
	if strings.TrimSpace(bucket.Name()) == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	return &Store{bucket: bucket, prefix: cleanPrefix(prefix)}, nil
}

func (s *Store) Put(ctx context.Context, key string, body io.Reader, size int64, opts storage.PutOptions) (storage.ObjectInfo, error) {
	objectKey, err := s.resolve(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	contentType := strings.TrimSpace(opts.ContentType)
	if contentType == "" {
		contentType = contentTypeFor(objectKey)
	}
	info, err := s.bucket.PutObject(ctx, objectKey, body, size, contentType)
	if err != nil {
		return storage.ObjectInfo{}, objectErr("put", objectKey, err)
	}
	info.ContentType = contentType
	return info, nil
}

func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	body, err := s.bucket.GetObject(ctx, objectKey)
	if err != nil {
		return nil, objectErr("get", objectKey, err)
	}
	return body, nil
}

func (s *Store) Stat(ctx context.Context, key string) (storage.ObjectInfo, error) {
	objectKey, err := s.resolve(key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	info, err := s.bucket.StatObject(ctx, objectKey)
	if err != nil {
		return storage.ObjectInfo{}, objectErr("stat", objectKey, err)
	}
	return info, nil
}

// HealthCheck reports whether the configured bucket is reachable.
func (s *Store) HealthCheck(ctx context.Context) error {
	exists, err := s.bucket.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket.Name(), err)
	}
	if !exists {
		return fmt.Errorf("bucket %q does not exist", s.bucket.Name())
	}
	return nil
}

func (s *Store) ensureBucket(ctx context.Context, region string) error {
	exists, err := s.bucket.Exists(ctx)
	if err != nil {
		return fmt.Errorf("check bucket %q: %w", s.bucket.Name(), err)
	}
	if exists {
		return nil
	}
	if err := s.bucket.Create(ctx, region); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket.Name(), err)
	}
	return nil
}

// resolve turns a snapshot key into the bucket key, refusing keys that would
// climb out of the prefix.
func (s *Store) resolve(key string) (string, error) {
	trimmed := strings.TrimSpace(strings.TrimLeft(key, "/"))
	if trimmed == "" {
		return "", fmt.Errorf("object key is required")
	}
	cleaned := path.Clean(trimmed)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object key: %q", key)
	}
	return path.Join(s.prefix, cleaned), nil
}

// objectErr keeps ErrObjectNotFound bare so callers can match it with
// errors.Is regardless of the key.
func objectErr(op, key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotFound) {
		return storage.ErrObjectNotFound
	}
	return fmt.Errorf("%s object %q: %w", op, key, err)
}

var contentTypes = map[string]string{
	".parquet": "application/vnd.apache.parquet",
	".csv":     "text/csv",
	".json":    "application/json",
}

func contentTypeFor(key string) string {
	if contentType, ok := contentTypes[strings.ToLower(path.Ext(key))]; ok {
		return contentType
	}
	return "application/octet-stream"
}

func cleanPrefix(prefix string) string {
	prefix = path.Clean("/" + strings.TrimSpace(prefix))
	return strings.TrimPrefix(prefix, "/")
}

func dialBucket(cfg Config) (*minioBucket, error) {
	host, secure, err := parseEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	mc, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &minioBucket{client: mc, name: strings.TrimSpace(cfg.Bucket)}, nil
}

// parseEndpoint accepts either host:port or a full URL. An https URL forces
// TLS on; otherwise useSSL decides.
func parseEndpoint(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint URL: %w", err)
	}
	switch parsed.Scheme {
	case "http", "https":
	default:
		return "", false, fmt.Errorf("unsupported endpoint scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", false, fmt.Errorf("endpoint host is required")
	}
	return parsed.Host, useSSL || parsed.Scheme == "https", nil
}

type minioBucket struct {
	client *minio.Client
	name   string
}

func (b *minioBucket) Name() string { return b.name }

func (b *minioBucket) PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	upload, err := b.client.PutObject(ctx, b.name, key, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return storage.ObjectInfo{}, fromMinio(err)
	}
	return storage.ObjectInfo{Key: upload.Key, Size: upload.Size, ETag: upload.ETag, LastModified: upload.LastModified}, nil
}

func (b *minioBucket) GetObject(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.name, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fromMinio(err)
	}
	// GetObject is lazy; Stat surfaces a missing key before the caller reads.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, fromMinio(err)
	}
	return obj, nil
}

func (b *minioBucket) StatObject(ctx context.Context, key string) (storage.ObjectInfo, error) {
	stat, err := b.client.StatObject(ctx, b.name, key, minio.StatObjectOptions{})
	if err != nil {
		return storage.ObjectInfo{}, fromMinio(err)
	}
	return storage.ObjectInfo{
		Key:          stat.Key,
		Size:         stat.Size,
		ETag:         stat.ETag,
		ContentType:  stat.ContentType,
		LastModified: stat.LastModified,
	}, nil
}

func (b *minioBucket) Exists(ctx context.Context) (bool, error) {
	exists, err := b.client.BucketExists(ctx, b.name)
	if err != nil {
		return false, fromMinio(err)
	}
	return exists, nil
}

func (b *minioBucket) Create(ctx context.Context, region string) error {
	return fromMinio(b.client.MakeBucket(ctx, b.name, minio.MakeBucketOptions{Region: region}))
}

func fromMinio(err error) error {
	if err == nil {
		return nil
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return storage.ErrObjectNotFound
	}
	return err
}
