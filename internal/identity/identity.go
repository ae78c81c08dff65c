// Package identity is the gateway's only path to the external identity
// provider. It validates identity input, verifies bearer credentials and
// normalizes provider failures into a closed set of error kinds.
package identity

import (
	"context"
	"time"
)

// Identity is a user record as held by the identity provider. The gateway
// never stores it.
type Identity struct {
	UID           string    `json:"uid"`
	Email         string    `json:"email"`
	DisplayName   string    `json:"displayName,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	PhotoURL      string    `json:"photoURL,omitempty"`
	Disabled      bool      `json:"disabled"`
	ValidSince    time.Time `json:"-"` // tokens issued before this are revoked
}

// CreateRequest holds the fields of a new identity.
type CreateRequest struct {
	Email         string
	Password      string //nolint:gosec // field name, not a credential
	DisplayName   string
	EmailVerified bool
	PhotoURL      string
}

// Patch is a partial update. Only non-nil fields are sent to the provider.
type Patch struct {
	Email         *string
	DisplayName   *string
	EmailVerified *bool
	PhotoURL      *string
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Email == nil && p.DisplayName == nil && p.EmailVerified == nil && p.PhotoURL == nil
}

// Token is the decoded content of a verified bearer credential.
type Token struct {
	UID       string
	Email     string
	Claims    map[string]any
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Provider is the contract the gateway requires from the external identity
// provider. Failures the provider reports must be returned as *ProviderError;
// anything else is treated as the provider being unreachable.
// Implementations must be safe for concurrent use.
type Provider interface {
	Create(ctx context.Context, req CreateRequest) (*Identity, error)
	Verify(ctx context.Context, token string) (*Token, error)
	Update(ctx context.Context, uid string, patch Patch) (*Identity, error)
	Delete(ctx context.Context, uid string) error
	// Lookup fetches the current record; used for revocation checks.
	Lookup(ctx context.Context, uid string) (*Identity, error)
}

// TokenVerifier verifies a raw bearer credential. Provider implementations
// delegate Verify to one of these.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Token, error)
}
