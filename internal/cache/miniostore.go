package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/vk/conveyor/internal/env"
)

// MinioConfig configures the S3-compatible cache store. Values come from
// the environment so credentials stay out of pipeline definitions.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
	Bucket    string
}

// MinioConfigFromEnv reads CONVEYOR_S3_* variables.
func MinioConfigFromEnv() (MinioConfig, error) {
	useSSL, err := env.Bool("CONVEYOR_S3_USE_SSL", false)
	if err != nil {
		return MinioConfig{}, err
	}
	cfg := MinioConfig{
		Endpoint:  env.String("CONVEYOR_S3_ENDPOINT", "localhost:9000"),
		AccessKey: env.String("CONVEYOR_S3_ACCESS_KEY", ""),
		SecretKey: env.String("CONVEYOR_S3_SECRET_KEY", ""),
		Region:    env.String("CONVEYOR_S3_REGION", "us-east-1"),
		UseSSL:    useSSL,
		Bucket:    env.String("CONVEYOR_S3_BUCKET", "conveyor-cache"),
	}
	if err := cfg.Validate(); err != nil {
		return MinioConfig{}, err
	}
	return cfg, nil
}

// Validate checks the configuration is complete enough to connect.
func (c MinioConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// MinioStore is a Store backed by an S3-compatible object store, sharing
// cache entries across hosts. One object per cache key.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the object store and ensures the bucket exists.
func NewMinioStore(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to object store: %w", err)
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking cache bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("creating cache bucket: %w", err)
		}
	}
	return &MinioStore{client: client, bucket: cfg.Bucket}, nil
}

func (s *MinioStore) Get(ctx context.Context, key string) (*Entry, error) {
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("stat cache object %q: %w", key, err)
	}
	return s.fetch(ctx, key, info)
}

func (s *MinioStore) PutIfAbsent(ctx context.Context, key string, blob []byte) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		// First writer wins; keep the existing object.
		return false, nil
	}
	if minio.ToErrorResponse(err).Code != "NoSuchKey" {
		return false, fmt.Errorf("stat cache object %q: %w", key, err)
	}

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(blob), int64(len(blob)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return false, fmt.Errorf("writing cache object %q: %w", key, err)
	}
	return true, nil
}

func (s *MinioStore) FindByPrefix(ctx context.Context, prefix string) (*Entry, error) {
	var best *minio.ObjectInfo
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix}) {
		if info.Err != nil {
			return nil, fmt.Errorf("listing cache objects with prefix %q: %w", prefix, info.Err)
		}
		candidate := info
		if best == nil || candidate.LastModified.After(best.LastModified) {
			best = &candidate
		}
	}
	if best == nil {
		return nil, nil
	}
	return s.fetch(ctx, best.Key, *best)
}

func (s *MinioStore) fetch(ctx context.Context, key string, info minio.ObjectInfo) (*Entry, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("reading cache object %q: %w", key, err)
	}
	defer obj.Close()

	blob, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("reading cache object %q: %w", key, err)
	}
	return &Entry{Key: key, Blob: blob, WrittenAt: info.LastModified}, nil
}
