package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCS stores objects in a Google Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS connects to bucket using application default credentials, or the
// service-account file at credentialsFile when given.
func NewGCS(ctx context.Context, bucket, credentialsFile string) (*GCS, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	c, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &GCS{client: c, bucket: bucket}, nil
}

func (g *GCS) Name() string { return "gcs" }

// Bucket returns the bucket name.
func (g *GCS) Bucket() string { return g.bucket }

func (g *GCS) Close() error { return g.client.Close() }

func (g *GCS) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

func (g *GCS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	return r, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	err := g.client.Bucket(g.bucket).Object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrNotExist
	}
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (g *GCS) List(ctx context.Context, prefix string) ([]Object, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var out []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		out = append(out, Object{Key: attrs.Name, Size: attrs.Size, Updated: attrs.Updated})
	}
	return out, nil
}

// SignedURL returns a V4 signed GET URL. Signing requires credentials that
// can sign blobs (a service-account key or the IAM signBlob permission).
func (g *GCS) SignedURL(ctx context.Context, key string, opts SignOptions) (string, error) {
	if opts.TTL <= 0 {
		opts.TTL = 15 * time.Minute
	}
	params := url.Values{}
	if opts.Filename != "" {
		disposition := "attachment"
		if opts.Inline {
			disposition = "inline"
		}
		params.Set("response-content-disposition", fmt.Sprintf("%s; filename=%q", disposition, opts.Filename))
	}
	if opts.ContentType != "" {
		params.Set("response-content-type", opts.ContentType)
	}

	u, err := g.client.Bucket(g.bucket).SignedURL(key, &storage.SignedURLOptions{
		Method:          "GET",
		Expires:         time.Now().Add(opts.TTL),
		Scheme:          storage.SigningSchemeV4,
		QueryParameters: params,
	})
	if err != nil {
		return "", fmt.Errorf("failed to sign %s: %w", key, err)
	}
	return u, nil
}
