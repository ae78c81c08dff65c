package identity

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig holds configuration for static-key token verification.
type JWTConfig struct {
	SigningKey string // raw HMAC secret string OR path to PEM public key file
	Issuer     string // expected "iss" claim (empty = don't verify)
	Audience   string // expected "aud" claim (empty = don't verify)
	UIDClaim   string // claim carrying the user id (default: "sub")
}

// JWTVerifier validates tokens signed with a locally configured key. It is
// used when the identity provider's tokens are not published through JWKS,
// e.g. a self-hosted issuer in development.
type JWTVerifier struct {
	config     JWTConfig
	parserOpts []jwt.ParserOption
	keyFunc    jwt.Keyfunc
}

// NewJWTVerifier creates a verifier with auto-detected key type.
// If SigningKey is a path to a PEM file, RSA or ECDSA public key is used.
// Otherwise, the raw string is treated as an HMAC secret.
func NewJWTVerifier(config JWTConfig) (*JWTVerifier, error) {
	if config.SigningKey == "" {
		return nil, errors.New("jwt signing key is required")
	}
	if config.UIDClaim == "" {
		config.UIDClaim = "sub"
	}

	signingKey, validMethods, err := parseSigningKey(config.SigningKey)
	if err != nil {
		return nil, fmt.Errorf("parse signing key: %w", err)
	}

	keyFunc := func(token *jwt.Token) (any, error) {
		method := token.Method.Alg()
		for _, m := range validMethods {
			if method == m {
				return signingKey, nil
			}
		}
		return nil, fmt.Errorf("unexpected signing method: %s", method)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods(validMethods),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if config.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(config.Audience))
	}

	return &JWTVerifier{
		config:     config,
		parserOpts: parserOpts,
		keyFunc:    keyFunc,
	}, nil
}

// parseSigningKey auto-detects the key type from the input.
// Returns the parsed key and the list of valid signing methods.
func parseSigningKey(input string) (any, []string, error) {
	info, err := os.Stat(input)
	if err == nil && !info.IsDir() {
		pemBytes, err := os.ReadFile(input)
		if err != nil {
			return nil, nil, fmt.Errorf("read PEM file: %w", err)
		}
		if key, err := jwt.ParseRSAPublicKeyFromPEM(pemBytes); err == nil {
			return key, []string{"RS256", "RS384", "RS512"}, nil
		}
		if key, err := jwt.ParseECPublicKeyFromPEM(pemBytes); err == nil {
			return key, []string{"ES256", "ES384", "ES512"}, nil
		}
		return nil, nil, errors.New("PEM file contains no recognized RSA or ECDSA public key")
	}

	return []byte(input), []string{"HS256", "HS384", "HS512"}, nil
}

// Verify parses and verifies a token string.
func (v *JWTVerifier) Verify(_ context.Context, rawToken string) (*Token, error) {
	token, err := jwt.Parse(rawToken, v.keyFunc, v.parserOpts...)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid JWT claims")
	}

	uid, err := extractStringClaim(claims, v.config.UIDClaim)
	if err != nil {
		return nil, fmt.Errorf("JWT missing %s claim: %w", v.config.UIDClaim, err)
	}

	tok := &Token{
		UID:    uid,
		Claims: map[string]any(claims),
	}
	tok.Email, _ = claims["email"].(string)
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		tok.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		tok.ExpiresAt = exp.Time
	}
	return tok, nil
}

// extractStringClaim returns a string claim value, or an error if missing/empty.
func extractStringClaim(claims jwt.MapClaims, key string) (string, error) {
	v, ok := claims[key]
	if !ok {
		return "", fmt.Errorf("claim %q not found", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("claim %q is not a non-empty string", key)
	}
	return s, nil
}

// SignHS256 mints an HMAC-signed token carrying claims, with exp set to ttl
// from now unless claims already has one. Intended for development issuers
// and tests that pair with a JWTVerifier using the same secret.
func SignHS256(secret string, claims jwt.MapClaims, ttl time.Duration) (string, error) {
	now := time.Now()
	if _, ok := claims["iat"]; !ok {
		claims["iat"] = jwt.NewNumericDate(now)
	}
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
