// Package config parses server configuration from flags with
// MOVIES_BACKEND_* environment overrides.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

const envPrefix = "MOVIES_BACKEND_"

// Config holds all server configuration.
type Config struct {
	Addr     string // listen address, e.g. ":8080"
	TLS      bool
	CertFile string
	KeyFile  string

	// Review store.
	DBPath          string // path to SQLite database file
	ReviewListLimit int    // max reviews returned per movie

	// Identity provider (Firebase Authentication via Identity Toolkit).
	FirebaseProjectID       string
	FirebaseCredentialsFile string        // service account JSON; empty = Application Default Credentials
	FirebaseEndpoint        string        // API endpoint override (emulator)
	ProviderTimeout         time.Duration // HTTP timeout for provider calls

	// Token verification: "firebase" (default), "oidc" or "jwt".
	TokenVerifier string
	OIDCIssuer    string
	OIDCAudience  string
	OIDCJWKSURL   string // skips discovery when set
	JWTSigningKey string // HMAC secret string or path to PEM public key file
	JWTIssuer     string
	JWTAudience   string

	// Revocation check after token verification.
	RevocationCheck    bool
	RevocationCacheTTL time.Duration

	// Ownership policy file (admin claim, uids, emails). Empty = defaults.
	PolicyConfigPath string

	// Object storage for photos and backups: "none", "local", "gcs" or "minio".
	BlobBackend        string
	BlobLocalDir       string
	BlobPublicURL      string
	GCSBucket          string
	GCSCredentialsFile string
	MinioEndpoint      string
	MinioBucket        string
	MinioAccessKey     string
	MinioSecretKey     string
	MinioUseSSL        bool
	MaxUploadBytes     int64

	// Backups (require a blob backend).
	BackupInterval time.Duration // 0 = disabled
	BackupTimeout  time.Duration
	BackupKeep     int

	// Movie database.
	TMDBBaseURL    string
	TMDBAPIKey     string
	TMDBToken      string
	TMDBLanguage   string
	TMDBTimeout    time.Duration
	MovieCacheSize int
	MovieCacheTTL  time.Duration
	RedisAddr      string // shared movie cache; empty = in-process LRU
	RedisPassword  string
	RedisDB        int

	// Tracing. The exporter endpoint comes from OTEL_EXPORTER_OTLP_ENDPOINT.
	OTelServiceName string // empty = tracing disabled

	// Logging.
	LogFormat string // "json" (default) or "text"
	LogLevel  string // "debug", "info", "warn", "error"
	AuditLogs bool   // enable audit logging (default true)
}

// Parse parses the process flags and environment. It exits on invalid input.
func Parse() *Config {
	c, err := parse(flag.CommandLine, os.Args[1:], os.Getenv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}
	return c
}

func parse(fs *flag.FlagSet, args []string, getenv func(string) string) (*Config, error) {
	c := &Config{}
	fs.StringVar(&c.Addr, "addr", ":8080", "listen address")
	fs.BoolVar(&c.TLS, "tls", false, "enable TLS")
	fs.StringVar(&c.CertFile, "cert", "", "TLS certificate file")
	fs.StringVar(&c.KeyFile, "key", "", "TLS key file")

	fs.StringVar(&c.DBPath, "db", "movies-backend.db", "SQLite database path")
	fs.IntVar(&c.ReviewListLimit, "review-list-limit", 200, "max reviews returned per movie")

	fs.StringVar(&c.FirebaseProjectID, "firebase-project", "", "Firebase project id (required)")
	fs.StringVar(&c.FirebaseCredentialsFile, "firebase-credentials", "", "path to service account JSON (default: ADC)")
	fs.StringVar(&c.FirebaseEndpoint, "firebase-endpoint", "", "Identity Toolkit endpoint override")
	fs.DurationVar(&c.ProviderTimeout, "provider-timeout", 10*time.Second, "identity provider request timeout")

	fs.StringVar(&c.TokenVerifier, "token-verifier", "firebase", "token verifier: firebase, oidc, or jwt")
	fs.StringVar(&c.OIDCIssuer, "oidc-issuer", "", "OIDC issuer (oidc verifier)")
	fs.StringVar(&c.OIDCAudience, "oidc-audience", "", "expected token audience (oidc verifier)")
	fs.StringVar(&c.OIDCJWKSURL, "oidc-jwks-url", "", "JWKS URL, skips discovery (oidc verifier)")
	fs.StringVar(&c.JWTSigningKey, "jwt-signing-key", "", "HMAC secret or path to PEM public key (jwt verifier)")
	fs.StringVar(&c.JWTIssuer, "jwt-issuer", "", "expected JWT issuer claim (optional)")
	fs.StringVar(&c.JWTAudience, "jwt-audience", "", "expected JWT audience claim (optional)")

	fs.BoolVar(&c.RevocationCheck, "revocation-check", true, "reject tokens of deleted, disabled or revoked accounts")
	fs.DurationVar(&c.RevocationCacheTTL, "revocation-cache-ttl", time.Minute, "account cache TTL for revocation checks")

	fs.StringVar(&c.PolicyConfigPath, "policy-config", "", "path to policy.yaml with moderator settings")

	fs.StringVar(&c.BlobBackend, "blob-backend", "none", "object storage: none, local, gcs, or minio")
	fs.StringVar(&c.BlobLocalDir, "blob-dir", "blobs", "directory for the local blob backend")
	fs.StringVar(&c.BlobPublicURL, "blob-public-url", "", "base URL objects are served from")
	fs.StringVar(&c.GCSBucket, "gcs-bucket", "", "GCS bucket (gcs backend)")
	fs.StringVar(&c.GCSCredentialsFile, "gcs-credentials", "", "service account JSON for GCS (default: ADC)")
	fs.StringVar(&c.MinioEndpoint, "minio-endpoint", "", "S3-compatible endpoint host:port (minio backend)")
	fs.StringVar(&c.MinioBucket, "minio-bucket", "", "bucket (minio backend)")
	fs.StringVar(&c.MinioAccessKey, "minio-access-key", "", "access key (minio backend)")
	fs.StringVar(&c.MinioSecretKey, "minio-secret-key", "", "secret key (minio backend)")
	fs.BoolVar(&c.MinioUseSSL, "minio-ssl", true, "use TLS for the minio backend")
	fs.Int64Var(&c.MaxUploadBytes, "max-upload-bytes", 5<<20, "max profile photo size")

	fs.DurationVar(&c.BackupInterval, "backup-interval", 0, "periodic review store backup interval (0 = disabled)")
	fs.DurationVar(&c.BackupTimeout, "backup-timeout", 10*time.Minute, "timeout of a single backup")
	fs.IntVar(&c.BackupKeep, "backup-keep", 14, "number of backups to keep (0 = all)")

	fs.StringVar(&c.TMDBBaseURL, "tmdb-url", "https://api.themoviedb.org/3", "TMDB v3 API base URL")
	fs.StringVar(&c.TMDBAPIKey, "tmdb-api-key", "", "TMDB v3 API key")
	fs.StringVar(&c.TMDBToken, "tmdb-token", "", "TMDB v4 read access token")
	fs.StringVar(&c.TMDBLanguage, "tmdb-language", "en-US", "TMDB response language")
	fs.DurationVar(&c.TMDBTimeout, "tmdb-timeout", 10*time.Second, "TMDB request timeout")
	fs.IntVar(&c.MovieCacheSize, "movie-cache-size", 2048, "in-process movie cache entries")
	fs.DurationVar(&c.MovieCacheTTL, "movie-cache-ttl", 10*time.Minute, "movie cache TTL")
	fs.StringVar(&c.RedisAddr, "redis-addr", "", "redis address for a shared movie cache")
	fs.StringVar(&c.RedisPassword, "redis-password", "", "redis password")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "redis database number")

	fs.StringVar(&c.OTelServiceName, "otel-service-name", "", "OpenTelemetry service name (empty = tracing disabled)")

	fs.StringVar(&c.LogFormat, "log-format", "json", "log format: json or text")
	fs.StringVar(&c.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	fs.BoolVar(&c.AuditLogs, "audit-logs", true, "enable structured audit logging")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Environment overrides: MOVIES_BACKEND_<FLAG NAME>, dashes as underscores.
	var errs []error
	fs.VisitAll(func(f *flag.Flag) {
		key := envPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		v := getenv(key)
		if v == "" {
			return
		}
		if err := f.Value.Set(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	})
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, c.Validate()
}

// Validate checks option combinations.
func (c *Config) Validate() error {
	var errs []error
	if c.FirebaseProjectID == "" {
		errs = append(errs, errors.New("-firebase-project is required"))
	}
	switch c.TokenVerifier {
	case "firebase":
	case "oidc":
		if c.OIDCIssuer == "" {
			errs = append(errs, errors.New("-oidc-issuer is required for the oidc verifier"))
		}
	case "jwt":
		if c.JWTSigningKey == "" {
			errs = append(errs, errors.New("-jwt-signing-key is required for the jwt verifier"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown token verifier %q", c.TokenVerifier))
	}
	switch c.BlobBackend {
	case "none", "local":
	case "gcs":
		if c.GCSBucket == "" {
			errs = append(errs, errors.New("-gcs-bucket is required for the gcs backend"))
		}
	case "minio":
		if c.MinioEndpoint == "" || c.MinioBucket == "" {
			errs = append(errs, errors.New("-minio-endpoint and -minio-bucket are required for the minio backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown blob backend %q", c.BlobBackend))
	}
	if c.BackupInterval > 0 && c.BlobBackend == "none" {
		errs = append(errs, errors.New("-backup-interval requires a blob backend"))
	}
	if c.TLS && (c.CertFile == "" || c.KeyFile == "") {
		errs = append(errs, errors.New("-tls requires -cert and -key"))
	}
	if c.TMDBAPIKey == "" && c.TMDBToken == "" {
		errs = append(errs, errors.New("one of -tmdb-api-key or -tmdb-token is required"))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("-max-upload-bytes must be positive"))
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
