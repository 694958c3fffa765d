// Package minio exports downloaded reports to an S3 compatible bucket.
package minio

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// objectAPI is the subset of *minio.Client the archive uses.
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Config locates the bucket.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// Archive stores report exports as objects.
type Archive struct {
	api    objectAPI
	bucket string
	prefix string
}

// New connects to the endpoint and makes sure the bucket exists.
func New(ctx context.Context, cfg Config) (*Archive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return NewWithAPI(ctx, client, cfg.Bucket, cfg.Prefix)
}

// NewWithAPI builds an Archive over any objectAPI implementation.
func NewWithAPI(ctx context.Context, api objectAPI, bucket, prefix string) (*Archive, error) {
	a := &Archive{api: api, bucket: bucket, prefix: strings.Trim(prefix, "/")}
	exists, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return a, nil
}

func (a *Archive) key(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if a.prefix == "" {
		return name
	}
	return a.prefix + "/" + name
}

// Put uploads r as name and returns its s3:// location.
func (a *Archive) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	key := a.key(name)
	if size <= 0 {
		size = -1
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := a.api.PutObject(ctx, a.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType}); err != nil {
		return "", fmt.Errorf("failed to upload object: %w", err)
	}
	return "s3://" + a.bucket + "/" + key, nil
}

// Exists reports whether name was already exported.
func (a *Archive) Exists(ctx context.Context, name string) (bool, error) {
	_, err := a.api.StatObject(ctx, a.bucket, a.key(name), minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object: %w", err)
	}
	return true, nil
}

// Remove deletes an exported object.
func (a *Archive) Remove(ctx context.Context, name string) error {
	if err := a.api.RemoveObject(ctx, a.bucket, a.key(name), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
