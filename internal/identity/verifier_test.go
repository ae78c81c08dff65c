package identity

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signRS256(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = jwt.NewNumericDate(time.Now().Add(time.Hour))
	}
	if _, ok := claims["iat"]; !ok {
		claims["iat"] = jwt.NewNumericDate(time.Now())
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTVerifier_HMAC(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{SigningKey: "test-secret", Issuer: "me"})
	require.NoError(t, err)

	tok, err := SignHS256("test-secret", jwt.MapClaims{"sub": "uid-1", "iss": "me", "email": "a@b.com", "admin": true}, time.Hour)
	require.NoError(t, err)

	got, err := v.Verify(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", got.UID)
	assert.Equal(t, "a@b.com", got.Email)
	assert.Equal(t, true, got.Claims["admin"])
	assert.False(t, got.ExpiresAt.IsZero())
}

func TestJWTVerifier_Rejects(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{SigningKey: "test-secret", Issuer: "me"})
	require.NoError(t, err)
	ctx := context.Background()

	wrongKey, _ := SignHS256("other-secret", jwt.MapClaims{"sub": "u", "iss": "me"}, time.Hour)
	wrongIss, _ := SignHS256("test-secret", jwt.MapClaims{"sub": "u", "iss": "them"}, time.Hour)
	noSub, _ := SignHS256("test-secret", jwt.MapClaims{"iss": "me"}, time.Hour)
	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u", "iss": "me"}).SignedString([]byte("test-secret"))

	for name, tok := range map[string]string{
		"wrong key":    wrongKey,
		"wrong issuer": wrongIss,
		"no subject":   noSub,
		"no expiry":    noExp,
	} {
		_, err := v.Verify(ctx, tok)
		assert.Error(t, err, name)
	}
}

func TestJWTVerifier_RSAFromPEM(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}), 0o600))

	v, err := NewJWTVerifier(JWTConfig{SigningKey: path})
	require.NoError(t, err)

	got, err := v.Verify(context.Background(), signRS256(t, key, jwt.MapClaims{"sub": "uid-rsa"}))
	require.NoError(t, err)
	assert.Equal(t, "uid-rsa", got.UID)

	// HMAC token signed with the path string must not be accepted as RSA.
	hs, _ := SignHS256(path, jwt.MapClaims{"sub": "x"}, time.Hour)
	_, err = v.Verify(context.Background(), hs)
	assert.Error(t, err)
}

func TestNewJWTVerifier_RequiresKey(t *testing.T) {
	_, err := NewJWTVerifier(JWTConfig{})
	assert.Error(t, err)
}

func TestOIDCVerifier_StaticKeys(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	const iss = "https://securetoken.google.com/movies-test"

	v := newOIDCVerifier(iss, "movies-test", &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}})
	ctx := context.Background()

	good := signRS256(t, key, jwt.MapClaims{"iss": iss, "aud": "movies-test", "sub": "uid-9", "email": "n@test.com", "name": "Nine"})
	got, err := v.Verify(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, "uid-9", got.UID)
	assert.Equal(t, "n@test.com", got.Email)
	assert.Equal(t, "Nine", got.Claims["name"])

	wrongAud := signRS256(t, key, jwt.MapClaims{"iss": iss, "aud": "other", "sub": "uid-9"})
	_, err = v.Verify(ctx, wrongAud)
	assert.Error(t, err)

	expired := signRS256(t, key, jwt.MapClaims{
		"iss": iss, "aud": "movies-test", "sub": "uid-9",
		"iat": jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		"exp": jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	_, err = v.Verify(ctx, expired)
	assert.Error(t, err)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	forged := signRS256(t, other, jwt.MapClaims{"iss": iss, "aud": "movies-test", "sub": "uid-9"})
	_, err = v.Verify(ctx, forged)
	assert.Error(t, err)
}

func TestNewOIDCVerifier_RequiresIssuerAndAudience(t *testing.T) {
	_, err := NewOIDCVerifier(context.Background(), OIDCConfig{Issuer: "https://x"})
	assert.Error(t, err)
}
