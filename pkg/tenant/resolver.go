package tenant

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/apt"
)

const adminSuffix = "-admin"

// Directory is the external lookup from brand key to tenant id.
type Directory interface {
	LookupTenant(ctx context.Context, brandKey string) (string, error)
}

// Registry is a Directory that can also record tenants.
type Registry interface {
	Directory
	RegisterTenant(ctx context.Context, brandKey, tenantID string) error
}

// ResolveBrandKey derives the brand key from a request host.
// "saffron-admin.example.com" and "saffron.example.com:8090" both yield "saffron".
// Loopback hosts fall back to defaultKey; anything else without a subdomain yields none.
func ResolveBrandKey(host, defaultKey string) (string, bool) {
	hostname := stripPort(strings.TrimSpace(strings.ToLower(host)))
	if hostname == "" {
		return "", false
	}

	if isLoopback(hostname) {
		if defaultKey == "" {
			return "", false
		}
		return defaultKey, true
	}

	labels := strings.Split(hostname, ".")
	if len(labels) < 3 {
		return "", false
	}

	key := strings.TrimSuffix(labels[0], adminSuffix)
	if key == "" {
		return "", false
	}
	return key, true
}

func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return strings.Trim(h, "[]")
	}
	return strings.Trim(host, "[]")
}

func isLoopback(hostname string) bool {
	if hostname == "localhost" || strings.HasSuffix(hostname, ".localhost") {
		return true
	}
	ip := net.ParseIP(hostname)
	return ip != nil && ip.IsLoopback()
}

// Resolver turns request hosts into tenant ids through a memoizing cache.
type Resolver struct {
	directory  Directory
	cache      *Cache
	defaultKey string
	logger     apt.Logger
}

func NewResolver(directory Directory, cache *Cache, defaultKey string, logger apt.Logger) *Resolver {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	if cache == nil {
		cache = NewCache(0)
	}
	return &Resolver{
		directory:  directory,
		cache:      cache,
		defaultKey: defaultKey,
		logger:     logger,
	}
}

// Resolve returns the tenant id for host. A host without a brand key or a
// brand key unknown to the directory is reported as pkg.ErrConfig.
func (r *Resolver) Resolve(ctx context.Context, host string) (string, error) {
	key, ok := ResolveBrandKey(host, r.defaultKey)
	if !ok {
		return "", fmt.Errorf("no brand key in host %q: %w", host, pkg.ErrConfig)
	}

	if tenantID, ok := r.cache.Get(key); ok {
		return tenantID, nil
	}

	if r.directory == nil {
		return "", fmt.Errorf("tenant directory not configured: %w", pkg.ErrConfig)
	}

	tenantID, err := r.directory.LookupTenant(ctx, key)
	if err != nil && !errors.Is(err, pkg.ErrNotFound) {
		return "", fmt.Errorf("lookup tenant %q: %w", key, err)
	}
	if tenantID == "" {
		return "", fmt.Errorf("unknown brand key %q: %w", key, pkg.ErrConfig)
	}

	r.cache.Put(key, tenantID)
	r.logger.Debug("tenant resolved", "brand_key", key, "tenant_id", tenantID)
	return tenantID, nil
}

// Cache exposes the underlying cache so its lifecycle can be managed.
func (r *Resolver) Cache() *Cache {
	return r.cache
}
