// Package auth holds the request trust boundary: bearer credential
// verification and the ownership policy that mutating routes run through.
package auth

import (
	"context"

	"github.com/hatemosphere/movies-backend/internal/identity"
)

// CredentialVerifier verifies a raw bearer credential. identity.Client
// implements it.
type CredentialVerifier interface {
	VerifyCredential(ctx context.Context, rawToken string) (*identity.AuthenticatedContext, error)
}

// Guard authenticates requests. It keeps no per-request state and is safe for
// concurrent use.
type Guard struct {
	verifier CredentialVerifier
}

// NewGuard creates a Guard that delegates verification to verifier.
func NewGuard(verifier CredentialVerifier) *Guard {
	return &Guard{verifier: verifier}
}

// Authenticate turns an Authorization header value into an
// AuthenticatedContext. A missing or non-Bearer header fails with
// identity.ErrMissingCredential, a credential that does not verify with an
// InvalidCredential error.
func (g *Guard) Authenticate(ctx context.Context, authorization string) (*identity.AuthenticatedContext, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return nil, identity.ErrMissingCredential
	}

	authn, err := g.verifier.VerifyCredential(ctx, token)
	if err != nil {
		switch identity.KindOf(err) {
		case identity.KindInvalidCredential, identity.KindProviderUnavailable:
			return nil, err
		default:
			return nil, identity.ErrInvalidCredential
		}
	}
	authn.Fingerprint = Fingerprint(token)
	return authn, nil
}

// Stage returns the authentication stage of a request pipeline: it verifies
// authorization and stores the result in the context.
func (g *Guard) Stage(authorization string) Stage {
	return func(ctx context.Context) (context.Context, error) {
		authn, err := g.Authenticate(ctx, authorization)
		if err != nil {
			return ctx, err
		}
		return identity.WithAuthenticated(ctx, authn), nil
	}
}
