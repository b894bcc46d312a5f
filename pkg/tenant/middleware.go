package tenant

import (
	"context"
	"errors"
	"net/http"

	"github.com/appetiteclub/appetite/pkg"
	"github.com/appetiteclub/apt"
)

type contextKey struct{}

const ForwardedHostHeader = "X-Forwarded-Host"

// WithTenant stores tenantID in ctx.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// FromContext returns the tenant id stored by the middleware.
func FromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(contextKey{}).(string)
	return tenantID, ok && tenantID != ""
}

// Require returns the tenant id in ctx or pkg.ErrConfig.
func Require(ctx context.Context) (string, error) {
	tenantID, ok := FromContext(ctx)
	if !ok {
		return "", pkg.ErrConfig
	}
	return tenantID, nil
}

// RequestHost prefers the forwarded host set by the edge proxy.
func RequestHost(r *http.Request) string {
	if fwd := r.Header.Get(ForwardedHostHeader); fwd != "" {
		return fwd
	}
	return r.Host
}

// Middleware resolves the tenant for every request and rejects requests
// that carry no resolvable tenant.
func Middleware(resolver *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, err := resolver.Resolve(r.Context(), RequestHost(r))
			if err != nil {
				if errors.Is(err, pkg.ErrConfig) {
					apt.RespondError(w, http.StatusBadRequest, "Tenant could not be resolved")
					return
				}
				resolver.logger.Error("tenant lookup failed", "host", RequestHost(r), "error", err)
				apt.RespondError(w, http.StatusServiceUnavailable, "Tenant lookup unavailable")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenantID)))
		})
	}
}
