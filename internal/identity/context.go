package identity

import (
	"context"
	"strings"
	"time"
)

// AuthenticatedContext is the verified identity of the caller of a single
// request. It is created by the authorization guard and dropped with the
// request.
type AuthenticatedContext struct {
	UID         string
	Email       string
	Claims      map[string]any
	IssuedAt    time.Time
	ExpiresAt   time.Time
	Fingerprint string // short hash of the credential, safe to log
}

// HasClaim reports whether the boolean claim name is set to true.
func (a *AuthenticatedContext) HasClaim(name string) bool {
	if a == nil || name == "" {
		return false
	}
	switch v := a.Claims[name].(type) {
	case bool:
		return v
	case string:
		return strings.EqualFold(v, "true")
	default:
		return false
	}
}

// DisplayName returns the "name" claim, falling back to the email.
func (a *AuthenticatedContext) DisplayName() string {
	if name, ok := a.Claims["name"].(string); ok && name != "" {
		return name
	}
	return a.Email
}

type contextKey struct{}

// WithAuthenticated stores the AuthenticatedContext in ctx.
func WithAuthenticated(ctx context.Context, a *AuthenticatedContext) context.Context {
	return context.WithValue(ctx, contextKey{}, a)
}

// FromContext retrieves the AuthenticatedContext from ctx.
// Returns nil if the request was not authenticated.
func FromContext(ctx context.Context) *AuthenticatedContext {
	a, _ := ctx.Value(contextKey{}).(*AuthenticatedContext)
	return a
}
