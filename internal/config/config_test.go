package config

import (
	"flag"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vals map[string]string) func(string) string {
	return func(k string) string { return vals[k] }
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

var required = []string{"-firebase-project", "movies-test", "-tmdb-api-key", "k"}

func TestParse_Defaults(t *testing.T) {
	c, err := parse(newFlagSet(), required, env(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, "firebase", c.TokenVerifier)
	assert.True(t, c.RevocationCheck)
	assert.Equal(t, time.Minute, c.RevocationCacheTTL)
	assert.Equal(t, "none", c.BlobBackend)
	assert.Equal(t, int64(5<<20), c.MaxUploadBytes)
	assert.Zero(t, c.BackupInterval)
	assert.True(t, c.AuditLogs)
}

func TestParse_EnvOverridesFlags(t *testing.T) {
	c, err := parse(newFlagSet(), append(required, "-addr", ":9000"), env(map[string]string{
		"MOVIES_BACKEND_ADDR":              ":7000",
		"MOVIES_BACKEND_REVOCATION_CHECK":  "false",
		"MOVIES_BACKEND_MOVIE_CACHE_TTL":   "30s",
		"MOVIES_BACKEND_BLOB_BACKEND":      "local",
		"MOVIES_BACKEND_BACKUP_INTERVAL":   "1h",
		"MOVIES_BACKEND_MAX_UPLOAD_BYTES":  "1024",
		"MOVIES_BACKEND_FIREBASE_ENDPOINT": "http://localhost:9099/",
		"MOVIES_BACKEND_UNRELATED_SETTING": "ignored",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":7000", c.Addr)
	assert.False(t, c.RevocationCheck)
	assert.Equal(t, 30*time.Second, c.MovieCacheTTL)
	assert.Equal(t, "local", c.BlobBackend)
	assert.Equal(t, time.Hour, c.BackupInterval)
	assert.Equal(t, int64(1024), c.MaxUploadBytes)
	assert.Equal(t, "http://localhost:9099/", c.FirebaseEndpoint)
}

func TestParse_BadEnvValue(t *testing.T) {
	_, err := parse(newFlagSet(), required, env(map[string]string{"MOVIES_BACKEND_TMDB_TIMEOUT": "soon"}))
	assert.ErrorContains(t, err, "MOVIES_BACKEND_TMDB_TIMEOUT")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing project", []string{"-tmdb-api-key", "k"}, "-firebase-project"},
		{"missing tmdb credentials", []string{"-firebase-project", "p"}, "-tmdb-api-key"},
		{"oidc without issuer", append(required, "-token-verifier", "oidc"), "-oidc-issuer"},
		{"jwt without key", append(required, "-token-verifier", "jwt"), "-jwt-signing-key"},
		{"unknown verifier", append(required, "-token-verifier", "saml"), "unknown token verifier"},
		{"gcs without bucket", append(required, "-blob-backend", "gcs"), "-gcs-bucket"},
		{"minio without endpoint", append(required, "-blob-backend", "minio"), "-minio-endpoint"},
		{"backups without blob store", append(required, "-backup-interval", "1h"), "requires a blob backend"},
		{"tls without cert", append(required, "-tls"), "-cert"},
		{"bad log format", append(required, "-log-format", "xml"), "log format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse(newFlagSet(), tt.args, env(nil))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
