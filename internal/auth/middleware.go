package auth

import (
	"net/http"
	"strings"
)

// Middleware is the session gate for one-shot requests: it resolves the
// bearer token through the provider (including revocation) and rejects
// unauthenticated access with 401, the client's redirect signal.
type Middleware struct {
	Provider *Provider
	Policy   Policy
}

// NewMiddleware constructs the session gate middleware.
func NewMiddleware(provider *Provider, policy Policy) *Middleware {
	return &Middleware{Provider: provider, Policy: policy}
}

// Wrap applies the session gate to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil || m.Provider == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := m.Provider.CurrentUser(ExtractBearer(r))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
	})
}

// ExtractBearer pulls the bearer token from the Authorization header.
func ExtractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
