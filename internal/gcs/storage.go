// Package gcs stores uploaded documents and receipts in a Cloud Storage bucket.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ErrObjectNotFound is returned when the requested object does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore provides the storage operations used by the documents and
// receipts services. It enables mocking storage in tests.
type ObjectStore interface {
	// Upload writes r to the object at name.
	Upload(ctx context.Context, name, contentType string, r io.Reader) error

	// Download returns the object's bytes.
	Download(ctx context.Context, name string) ([]byte, error)

	// Delete removes a single object. Deleting a missing object is not an error.
	Delete(ctx context.Context, name string) error

	// DeletePrefix removes every object whose name starts with prefix and
	// returns how many were removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// SignedURL returns a V4 signed GET URL valid for ttl.
	SignedURL(ctx context.Context, name string, ttl time.Duration) (string, error)
}

// Bucket is the Cloud Storage implementation of ObjectStore. It assumes
// Application Default Credentials are configured.
type Bucket struct {
	client *storage.Client
	name   string
}

// NewBucket opens a client for the named bucket.
func NewBucket(ctx context.Context, bucketName string) (*Bucket, error) {
	if bucketName == "" {
		return nil, errors.New("bucket name is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Bucket{client: client, name: bucketName}, nil
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// Close releases the underlying client.
func (b *Bucket) Close() error {
	return b.client.Close()
}

func (b *Bucket) Upload(ctx context.Context, name, contentType string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := b.client.Bucket(b.name).Object(name).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("copy to GCS writer: %w", err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload of %s: %w", name, err)
	}
	return nil
}

func (b *Bucket) Download(ctx context.Context, name string) ([]byte, error) {
	rc, err := b.client.Bucket(b.name).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, name)
		}
		return nil, fmt.Errorf("open GCS object reader %s/%s: %w", b.name, name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read GCS object: %w", err)
	}
	return data, nil
}

func (b *Bucket) Delete(ctx context.Context, name string) error {
	err := b.client.Bucket(b.name).Object(name).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

func (b *Bucket) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, errors.New("refusing to delete with an empty prefix")
	}

	bkt := b.client.Bucket(b.name)
	it := bkt.Objects(ctx, &storage.Query{Prefix: prefix})
	deleted := 0
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return deleted, fmt.Errorf("list objects under %s: %w", prefix, err)
		}
		if err := bkt.Object(attrs.Name).Delete(ctx); err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
			return deleted, fmt.Errorf("delete %s: %w", attrs.Name, err)
		}
		deleted++
	}
	return deleted, nil
}

func (b *Bucket) SignedURL(_ context.Context, name string, ttl time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(ttl),
		Scheme:  storage.SigningSchemeV4,
	}
	url, err := b.client.Bucket(b.name).SignedURL(name, opts)
	if err != nil {
		return "", fmt.Errorf("generate signed URL: %w", err)
	}
	return url, nil
}

var _ ObjectStore = (*Bucket)(nil)

// URI returns the gs:// URI of an object in bucket.
func URI(bucket, name string) string {
	return "gs://" + bucket + "/" + strings.TrimPrefix(name, "/")
}

// ParseURI splits "gs://bucket/path/to/file.pdf" into bucket and object name.
func ParseURI(uri string) (bucket, name string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// SafeName reduces a client-supplied file name to a single path element
// usable inside an object name.
func SafeName(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == ".." {
		return "file"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == ' ':
			return '_'
		case r < 0x20 || r == 0x7f:
			return -1
		}
		return r
	}, base)
}
