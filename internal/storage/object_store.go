package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"imagehub/internal/config"
)

// ObjectStore keeps files in an S3-compatible bucket. Locations are public
// URLs of the form <base>/<bucket>/<key>.
type ObjectStore struct {
	client  *minio.Client
	bucket  string
	region  string
	baseURL string
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL

	if strings.HasPrefix(endpoint, "http") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parse endpoint: %w", err)
		}
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		baseURL: publicBase(cfg.PublicURL, endpoint, useSSL),
	}, nil
}

func publicBase(publicURL string, endpoint string, useSSL bool) string {
	if publicURL != "" {
		return strings.TrimSuffix(publicURL, "/")
	}
	scheme := "http"
	if useSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, strings.TrimSuffix(endpoint, "/"))
}

func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *ObjectStore) URL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.baseURL, s.bucket, key)
}

func (s *ObjectStore) Upload(ctx context.Context, data []byte, dest string, contentType string) (string, error) {
	key, err := s.key(dest)
	if err != nil {
		return "", err
	}
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", &Error{Op: "upload", Path: key, Err: err}
	}
	return s.URL(key), nil
}

func (s *ObjectStore) Download(ctx context.Context, location string) ([]byte, error) {
	key, err := s.key(location)
	if err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.wrap("download", key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.wrap("download", key, err)
	}
	return data, nil
}

func (s *ObjectStore) Delete(ctx context.Context, location string) error {
	key, err := s.key(location)
	if err != nil {
		return err
	}
	// RemoveObject succeeds for missing keys; stat first so callers learn about it.
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		return s.wrap("delete", key, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return s.wrap("delete", key, err)
	}
	return nil
}

func (s *ObjectStore) Move(ctx context.Context, location string, dest string) (string, error) {
	srcKey, err := s.key(location)
	if err != nil {
		return "", err
	}
	dstKey, err := s.key(dest)
	if err != nil {
		return "", err
	}

	_, err = s.client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: s.bucket, Object: dstKey},
		minio.CopySrcOptions{Bucket: s.bucket, Object: srcKey},
	)
	if err != nil {
		return "", s.wrap("move", srcKey, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, srcKey, minio.RemoveObjectOptions{}); err != nil {
		return s.URL(dstKey), s.wrap("move", srcKey, err)
	}
	return s.URL(dstKey), nil
}

// key accepts either a location previously returned by this store or a
// bucket-relative key.
func (s *ObjectStore) key(location string) (string, error) {
	prefix := s.baseURL + "/" + s.bucket + "/"
	key := location
	switch {
	case strings.HasPrefix(location, prefix):
		key = strings.TrimPrefix(location, prefix)
	case strings.HasPrefix(location, "http://"), strings.HasPrefix(location, "https://"):
		return "", &Error{Op: "resolve", Path: location, Err: ErrInvalidPath}
	}

	key = strings.TrimLeft(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" || strings.Contains(key, "..") {
		return "", &Error{Op: "resolve", Path: location, Err: ErrInvalidPath}
	}
	return key, nil
}

func (s *ObjectStore) wrap(op string, key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return &Error{Op: op, Path: key, Err: ErrNotFound}
	}
	return &Error{Op: op, Path: key, Err: err}
}
