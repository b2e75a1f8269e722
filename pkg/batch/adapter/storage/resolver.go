package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/fx"

	"github.com/tigerroll/chunkbatch/pkg/batch/support/util/logger"
)

// Resolver dispatches locations to the provider registered for their scheme.
type Resolver struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewResolver creates a Resolver over providers.
func NewResolver(providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the provider for p's scheme.
func (r *Resolver) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Scheme()] = p
	logger.Debugf("Storage provider for scheme '%s' registered.", p.Scheme())
}

// Resolve returns the resource at location. A location without a scheme is a local path.
func (r *Resolver) Resolve(ctx context.Context, location string) (Resource, error) {
	scheme := Scheme(location)
	r.mu.RLock()
	p, ok := r.providers[scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no storage provider registered for scheme %q (location %q)", scheme, location)
	}
	return p.Resource(ctx, location)
}

// Close closes all providers.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs *multierror.Error
	for scheme, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close %s provider: %w", scheme, err))
		}
	}
	return errs.ErrorOrNil()
}

// Scheme returns the URI scheme of location, "file" when there is none.
func Scheme(location string) string {
	if i := strings.Index(location, "://"); i > 0 {
		return strings.ToLower(location[:i])
	}
	return "file"
}

// ResolverParams collects the providers contributed by adapter modules.
type ResolverParams struct {
	fx.In
	Providers []Provider `group:"storage_providers"`
	Lifecycle fx.Lifecycle
}

// NewResolverFromProviders builds the Resolver and closes it on application stop.
func NewResolverFromProviders(p ResolverParams) *Resolver {
	r := NewResolver(p.Providers...)
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error { return r.Close() },
	})
	return r
}

// Module provides the Resolver. Providers are added by the local and gcs modules.
var Module = fx.Options(
	fx.Provide(NewResolverFromProviders),
)
