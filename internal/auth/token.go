package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintLen is the number of hex chars kept from the SHA-256 digest.
const fingerprintLen = 16

// Fingerprint returns a short SHA-256 hex prefix of a bearer credential.
// It identifies a credential in logs and audit entries without exposing it.
func Fingerprint(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])[:fingerprintLen]
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively. ok is false when the header is
// absent, uses another scheme, or carries an empty credential.
func BearerToken(header string) (token string, ok bool) {
	scheme, rest, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(rest)
	return token, token != ""
}
