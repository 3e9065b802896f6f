// Package storage keeps uploaded scan images in a MinIO / S3 bucket and
// resolves s3:// handles back into bytes for the upload step.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/bryanwahyu/skinlytics/internal/domain/scans"
)

// Scheme is the handle scheme served by Store.
const Scheme = "s3"

const defaultMaxBytes = 10 << 20

type Store struct {
	client     *minio.Client
	bucketName string
	region     string
	maxBytes   int64
}

// New connects to MinIO and makes sure the bucket exists.
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region, maxBytes: defaultMaxBytes}, nil
}

// SetMaxBytes caps how much of an object Load will read.
func (s *Store) SetMaxBytes(n int64) {
	if n > 0 {
		s.maxBytes = n
	}
}

// Put uploads r under key and returns the s3:// handle for it.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (domain.Handle, error) {
	if contentType == "" {
		contentType = ContentType(key)
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return Handle(s.bucketName, key), nil
}

// Remove deletes the object behind an s3:// handle in this bucket.
func (s *Store) Remove(ctx context.Context, h domain.Handle) error {
	bucket, key, err := ParseHandle(h)
	if err != nil {
		return err
	}
	if bucket != s.bucketName {
		return fmt.Errorf("unknown bucket %q", bucket)
	}
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}

// Load implements scans.ImageLoader for s3://bucket/key handles.
func (s *Store) Load(ctx context.Context, h domain.Handle) ([]byte, error) {
	bucket, key, err := ParseHandle(h)
	if err != nil {
		return nil, &domain.IOError{Handle: h, Err: err}
	}
	if bucket != s.bucketName {
		return nil, &domain.IOError{Handle: h, Err: fmt.Errorf("unknown bucket %q", bucket)}
	}

	obj, err := s.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &domain.IOError{Handle: h, Err: err}
	}
	defer obj.Close()

	b, err := io.ReadAll(io.LimitReader(obj, s.maxBytes+1))
	if err != nil {
		return nil, &domain.IOError{Handle: h, Err: err}
	}
	if int64(len(b)) > s.maxBytes {
		return nil, &domain.IOError{Handle: h, Err: errors.New("image exceeds size limit")}
	}
	return b, nil
}

// Ping checks that the bucket is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", s.bucketName)
	}
	return nil
}

// Handle builds the s3:// handle for an object.
func Handle(bucket, key string) domain.Handle {
	return domain.Handle(Scheme + "://" + bucket + "/" + strings.TrimPrefix(key, "/"))
}

// ParseHandle splits s3://bucket/key.
func ParseHandle(h domain.Handle) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(string(h), Scheme+"://")
	if !ok {
		return "", "", fmt.Errorf("not an %s handle", Scheme)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", errors.New("handle must be s3://bucket/key")
	}
	return bucket, key, nil
}

// ContentType guesses the image MIME type from the key extension.
func ContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}
