package images

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"go.uber.org/zap"
)

// Internal adapter interface to enable mocking without a real MinIO server.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type minioClientWrapper struct{ c *minio.Client }

func (w minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}
func (w minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}
func (w minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}
func (w minioClientWrapper) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return w.c.RemoveObject(ctx, bucketName, objectName, opts)
}

// Object is the result of an upload: the public URL used on product records
// and the storage key behind it.
type Object struct {
	URL string
	Key string
}

type Store struct {
	api     minioAPI
	bucket  string
	baseURL string
	lg      *zap.SugaredLogger
}

// NewStore creates an image store over a real *minio.Client.
func NewStore(ctx context.Context, client *minio.Client, bucket, publicURL string, lg *zap.SugaredLogger) (*Store, error) {
	return NewStoreWithAPI(ctx, minioClientWrapper{c: client}, bucket, publicURL, lg)
}

// NewStoreWithAPI allows injecting a mockable API (used in tests).
func NewStoreWithAPI(ctx context.Context, api minioAPI, bucket, publicURL string, lg *zap.SugaredLogger) (*Store, error) {
	s := &Store{api: api, bucket: bucket, baseURL: strings.TrimSuffix(publicURL, "/"), lg: lg}
	if err := s.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket exists: %w", err)
	}
	return s, nil
}

func (s *Store) ensureBucketExists(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

// Upload stores one image under a generated key and returns its public URL.
func (s *Store) Upload(ctx context.Context, filename string, reader io.Reader, size int64) (Object, error) {
	key := "products/" + uuid.NewString() + strings.ToLower(path.Ext(filename))
	_, err := s.api.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{})
	if err != nil {
		return Object{}, fmt.Errorf("failed to upload object: %w", err)
	}
	return Object{URL: s.baseURL + "/" + s.bucket + "/" + key, Key: key}, nil
}

// Delete is a stub: listing deletion does not clean up blobs yet, it only
// records the intent. TODO: wire RemoveObject once orphan tracking lands.
func (s *Store) Delete(_ context.Context, key string) error {
	s.lg.Infow("image delete requested", "key", key)
	return nil
}

// Remove actually deletes an object. Unused by the main listing flows.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// TransformOpts describe a derived-image request.
type TransformOpts struct {
	Width   int
	Height  int
	Crop    string
	Quality int
	Format  string
}

// TransformURL builds a derived-image URL by appending transform parameters.
// The storage tier (or a CDN in front of it) interprets them; the application
// treats the result as an opaque string.
func TransformURL(raw string, opts TransformOpts) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if opts.Width > 0 {
		q.Set("w", strconv.Itoa(opts.Width))
	}
	if opts.Height > 0 {
		q.Set("h", strconv.Itoa(opts.Height))
	}
	if opts.Crop != "" {
		q.Set("crop", opts.Crop)
	}
	if opts.Quality > 0 {
		q.Set("q", strconv.Itoa(opts.Quality))
	}
	if opts.Format != "" {
		q.Set("fm", opts.Format)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
