// Package local provides file system storage resources.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	storageAdapter "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage"
	storageConfig "github.com/tigerroll/chunkbatch/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// Scheme is the URI scheme served by this provider.
const Scheme = "file"

// fileResource is a storage.Resource backed by a local file.
type fileResource struct {
	location string
	path     string
}

var (
	_ storageAdapter.Resource    = (*fileResource)(nil)
	_ storageAdapter.Truncatable = (*fileResource)(nil)
)

// NewFileResource returns a resource for path, which may carry a file:// prefix.
func NewFileResource(path string) storageAdapter.Resource {
	return &fileResource{location: path, path: strings.TrimPrefix(path, Scheme+"://")}
}

func (r *fileResource) Location() string { return r.location }

// Path returns the file system path.
func (r *fileResource) Path() string { return r.path }

func (r *fileResource) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(r.path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (r *fileResource) Open(ctx context.Context) (io.ReadCloser, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storageAdapter.ErrResourceNotFound, r.path)
		}
		return nil, err
	}
	return f, nil
}

// Create opens the file for writing, creating parent directories as needed.
func (r *fileResource) Create(ctx context.Context, appendMode bool) (io.WriteCloser, error) {
	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}
	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(r.path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	logger.Debugf("Opened '%s' for writing (append=%t).", r.path, appendMode)
	return f, nil
}

func (r *fileResource) Size(ctx context.Context) (int64, error) {
	info, err := os.Stat(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	return info.Size(), nil
}

func (r *fileResource) Truncate(ctx context.Context, size int64) error {
	return os.Truncate(r.path, size)
}

// Provider resolves local paths, relative ones against BaseDir.
type Provider struct {
	baseDir string
}

var _ storageAdapter.Provider = (*Provider)(nil)

// NewProvider creates a Provider. An empty BaseDir resolves relative paths against the
// working directory.
func NewProvider(cfg storageConfig.StorageConfig) *Provider {
	return &Provider{baseDir: cfg.BaseDir}
}

func (p *Provider) Scheme() string { return Scheme }

// Resource returns the file resource at location.
func (p *Provider) Resource(ctx context.Context, location string) (storageAdapter.Resource, error) {
	path := strings.TrimPrefix(location, Scheme+"://")
	if p.baseDir != "" && !filepath.IsAbs(path) {
		full := filepath.Join(p.baseDir, path)
		absBase, err := filepath.Abs(p.baseDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for BaseDir '%s': %w", p.baseDir, err)
		}
		absFull, err := filepath.Abs(full)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for '%s': %w", full, err)
		}
		if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(filepath.Separator)) {
			return nil, fmt.Errorf("resolved path '%s' is outside of BaseDir '%s'", full, p.baseDir)
		}
		path = full
	}
	return &fileResource{location: location, path: path}, nil
}

func (p *Provider) Close() error { return nil }
