package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// OIDCConfig configures verification of provider-issued ID tokens against
// the provider's published signing keys.
type OIDCConfig struct {
	Issuer   string // expected "iss"; also the discovery URL when JWKSURL is empty
	Audience string // expected "aud" (for Firebase: the project id)
	JWKSURL  string // signing key endpoint; skips discovery when set
}

// OIDCVerifier verifies ID tokens with go-oidc. The remote key set caches
// the provider's keys and refreshes them on an unknown key id, so one
// verifier is shared by all requests.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier builds a verifier for config. Without a JWKS URL it runs
// OIDC discovery against the issuer.
func NewOIDCVerifier(ctx context.Context, config OIDCConfig) (*OIDCVerifier, error) {
	if config.Issuer == "" || config.Audience == "" {
		return nil, errors.New("oidc issuer and audience are required")
	}
	if config.JWKSURL != "" {
		keySet := oidc.NewRemoteKeySet(ctx, config.JWKSURL)
		return newOIDCVerifier(config.Issuer, config.Audience, keySet), nil
	}

	provider, err := oidc.NewProvider(ctx, config.Issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", config.Issuer, err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: config.Audience}),
	}, nil
}

func newOIDCVerifier(issuer, audience string, keySet oidc.KeySet) *OIDCVerifier {
	return &OIDCVerifier{
		verifier: oidc.NewVerifier(issuer, keySet, &oidc.Config{ClientID: audience}),
	}
}

// Verify checks signature, issuer, audience and expiry of rawToken.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Token, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if idToken.Subject == "" {
		return nil, errors.New("ID token has empty subject")
	}

	var claims map[string]any
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extract claims: %w", err)
	}

	tok := &Token{
		UID:       idToken.Subject,
		Claims:    claims,
		IssuedAt:  idToken.IssuedAt,
		ExpiresAt: idToken.Expiry,
	}
	tok.Email, _ = claims["email"].(string)
	return tok, nil
}
