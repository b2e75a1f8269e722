// Package gcs provides Google Cloud Storage resources for gs://bucket/object locations.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	storageAdapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// Scheme is the URI scheme served by this provider.
const Scheme = "gs"

// ParseLocation splits gs://bucket/object. A location without a bucket falls back to
// defaultBucket.
func ParseLocation(location, defaultBucket string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(location, Scheme+"://")
	if !ok {
		return "", "", fmt.Errorf("not a %s:// location: %q", Scheme, location)
	}
	bucket, object, found := strings.Cut(rest, "/")
	if !found || bucket == "" {
		if defaultBucket == "" {
			return "", "", fmt.Errorf("location %q has no bucket and no default bucket is configured", location)
		}
		if !found {
			object = rest
		}
		bucket = defaultBucket
	}
	if object == "" {
		return "", "", fmt.Errorf("location %q has no object name", location)
	}
	return bucket, object, nil
}

type objectResource struct {
	location string
	handle   *storage.ObjectHandle
}

var _ storageAdapter.Resource = (*objectResource)(nil)

func (r *objectResource) Location() string { return r.location }

func (r *objectResource) Exists(ctx context.Context) (bool, error) {
	_, err := r.handle.Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	return false, err
}

func (r *objectResource) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := r.handle.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: %s", storageAdapter.ErrResourceNotFound, r.location)
		}
		return nil, err
	}
	return rc, nil
}

// Create returns a writer that uploads on Close. Objects are immutable, so append mode
// copies the existing content into the new object before any new data.
func (r *objectResource) Create(ctx context.Context, appendMode bool) (io.WriteCloser, error) {
	var existing []byte
	if appendMode {
		rc, err := r.handle.NewReader(ctx)
		switch {
		case err == nil:
			existing, err = io.ReadAll(rc)
			rc.Close()
			if err != nil {
				return nil, fmt.Errorf("failed to read existing object %s: %w", r.location, err)
			}
		case errors.Is(err, storage.ErrObjectNotExist):
		default:
			return nil, err
		}
	}
	w := r.handle.NewWriter(ctx)
	w.ContentType = "text/plain; charset=utf-8"
	if len(existing) > 0 {
		if _, err := w.Write(existing); err != nil {
			w.Close()
			return nil, err
		}
	}
	return w, nil
}

// Provider serves gs:// locations through a shared storage.Client.
type Provider struct {
	cfg storageConfig.StorageConfig

	once   sync.Once
	client *storage.Client
	err    error
}

var _ storageAdapter.Provider = (*Provider)(nil)

// NewProvider creates a Provider. The client is created on first use.
func NewProvider(cfg storageConfig.StorageConfig) *Provider {
	return &Provider{cfg: cfg}
}

// NewProviderWithClient creates a Provider over an existing client.
func NewProviderWithClient(cfg storageConfig.StorageConfig, client *storage.Client) *Provider {
	p := &Provider{cfg: cfg, client: client}
	p.once.Do(func() {})
	return p
}

func (p *Provider) Scheme() string { return Scheme }

func (p *Provider) connect(ctx context.Context) (*storage.Client, error) {
	p.once.Do(func() {
		var opts []option.ClientOption
		if p.cfg.CredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(p.cfg.CredentialsFile))
		}
		p.client, p.err = storage.NewClient(ctx, opts...)
		if p.err == nil {
			logger.Debugf("GCS client created.")
		}
	})
	return p.client, p.err
}

// Resource returns the object resource at location.
func (p *Provider) Resource(ctx context.Context, location string) (storageAdapter.Resource, error) {
	bucket, object, err := ParseLocation(location, p.cfg.BucketName)
	if err != nil {
		return nil, err
	}
	client, err := p.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	return &objectResource{location: location, handle: client.Bucket(bucket).Object(object)}, nil
}

// Close closes the client if one was created.
func (p *Provider) Close() error {
	if p.client == nil {
		return nil
	}
	return p.client.Close()
}
