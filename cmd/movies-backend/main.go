package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hatemosphere/movies-backend/internal/api"
	"github.com/hatemosphere/movies-backend/internal/audit"
	"github.com/hatemosphere/movies-backend/internal/auth"
	"github.com/hatemosphere/movies-backend/internal/backup"
	"github.com/hatemosphere/movies-backend/internal/blob"
	"github.com/hatemosphere/movies-backend/internal/config"
	"github.com/hatemosphere/movies-backend/internal/identity"
	"github.com/hatemosphere/movies-backend/internal/identity/firebase"
	"github.com/hatemosphere/movies-backend/internal/movies"
	"github.com/hatemosphere/movies-backend/internal/storage"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func main() {
	cfg := config.Parse()

	// Configure logging format and level.
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var logHandler slog.Handler
	if cfg.LogFormat == "text" {
		logHandler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		logHandler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(logHandler))

	if !cfg.AuditLogs {
		audit.Enabled = false
	}

	ctx := context.Background()

	// Open the review store.
	store, err := storage.NewSQLiteStore(cfg.DBPath, storage.SQLiteStoreConfig{ListLimit: cfg.ReviewListLimit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	api.RegisterReviewsGauge(func() float64 {
		n, err := store.CountReviews(context.Background())
		if err != nil {
			return 0
		}
		return float64(n)
	})

	// Identity provider client.
	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up token verification: %v\n", err)
		os.Exit(1)
	}
	provider, err := firebase.New(ctx, firebase.Config{
		ProjectID:       cfg.FirebaseProjectID,
		CredentialsFile: cfg.FirebaseCredentialsFile,
		Endpoint:        cfg.FirebaseEndpoint,
		Timeout:         cfg.ProviderTimeout,
		Verifier:        verifier,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create identity provider client: %v\n", err)
		os.Exit(1)
	}
	var clientOpts []identity.ClientOption
	if cfg.RevocationCheck {
		clientOpts = append(clientOpts, identity.WithRevocationCheck(cfg.RevocationCacheTTL))
	}
	identityClient := identity.NewClient(provider, clientOpts...)
	slog.Info("identity provider configured",
		"project", cfg.FirebaseProjectID,
		"token_verifier", cfg.TokenVerifier,
		"revocation_check", cfg.RevocationCheck,
	)

	serverOpts := []api.ServerOption{
		api.WithIdentityClient(identityClient),
		api.WithReviewStore(store),
		api.WithMaxUploadBytes(cfg.MaxUploadBytes),
	}

	// Load the ownership policy if provided.
	if cfg.PolicyConfigPath != "" {
		policyCfg, err := auth.LoadPolicyConfig(cfg.PolicyConfigPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load policy config: %v\n", err)
			os.Exit(1)
		}
		serverOpts = append(serverOpts, api.WithPolicy(auth.NewPolicy(policyCfg)))
		slog.Info("ownership policy loaded", "config", cfg.PolicyConfigPath,
			"admin_uids", len(policyCfg.AdminUIDs), "admin_emails", len(policyCfg.AdminEmails))
	}

	// Object storage for photos and backups.
	blobs, err := buildBlobStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up object storage: %v\n", err)
		os.Exit(1)
	}
	var backupScheduler *backup.Scheduler
	if blobs != nil {
		serverOpts = append(serverOpts, api.WithPhotoStore(blobs))
		slog.Info("object storage configured", "backend", blobs.Name())

		if cfg.BackupInterval > 0 {
			job := &backup.Job{
				DB:       store,
				Provider: backup.NewBlobProvider(blobs, ""),
				Keep:     cfg.BackupKeep,
			}
			backupScheduler = backup.NewScheduler(job.Run, cfg.BackupInterval, cfg.BackupTimeout)
			slog.Info("scheduled backups enabled", "interval", cfg.BackupInterval, "keep", cfg.BackupKeep)
		}
	}

	// Movie database with a shared or in-process cache.
	var movieCache movies.Cache
	if cfg.RedisAddr != "" {
		redisCache, redisClient, err := movies.NewRedisCache(ctx, movies.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.MovieCacheTTL,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to redis: %v\n", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		movieCache = redisCache
		slog.Info("movie cache: redis", "addr", cfg.RedisAddr, "db", cfg.RedisDB)
	} else {
		movieCache = movies.NewMemoryCache(cfg.MovieCacheSize, cfg.MovieCacheTTL)
	}
	tmdb := movies.NewClient(movies.ClientConfig{
		BaseURL:  cfg.TMDBBaseURL,
		APIKey:   cfg.TMDBAPIKey,
		Token:    cfg.TMDBToken,
		Language: cfg.TMDBLanguage,
		Timeout:  cfg.TMDBTimeout,
	})
	serverOpts = append(serverOpts, api.WithMovies(movies.NewService(tmdb, movieCache)))

	// Initialize OpenTelemetry tracing if configured.
	var tp *sdktrace.TracerProvider
	if cfg.OTelServiceName != "" {
		var initErr error
		tp, initErr = initTracer(ctx, cfg.OTelServiceName)
		if initErr != nil {
			fmt.Fprintf(os.Stderr, "failed to initialize OpenTelemetry: %v\n", initErr)
			os.Exit(1)
		}
		slog.Info("OpenTelemetry tracing enabled", "service", cfg.OTelServiceName)
	}

	srv, err := api.NewServer(serverOpts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create API server: %v\n", err)
		os.Exit(1)
	}

	var handler http.Handler = srv.Router()
	if _, ok := blobs.(*blob.LocalStore); ok {
		handler = withLocalBlobs(handler, cfg.BlobLocalDir)
	}
	if tp != nil {
		handler = otelhttp.NewHandler(handler, "movies-backend")
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig.String())

		// Give in-flight requests 30 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
		close(done)
	}()

	slog.Info("movies backend starting", "addr", cfg.Addr)

	if cfg.TLS {
		err = httpServer.ListenAndServeTLS(cfg.CertFile, cfg.KeyFile)
	} else {
		err = httpServer.ListenAndServe()
	}
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	<-done

	if backupScheduler != nil {
		backupScheduler.Shutdown()
	}
	if tp != nil {
		if err := tp.Shutdown(context.Background()); err != nil {
			slog.Error("tracer provider shutdown error", "error", err)
		}
	}
	store.Close()
	slog.Info("shutdown complete")
}

// buildVerifier returns the configured token verifier. A nil verifier lets
// the Firebase provider verify ID tokens against Google's securetoken keys.
func buildVerifier(ctx context.Context, cfg *config.Config) (identity.TokenVerifier, error) {
	switch cfg.TokenVerifier {
	case "oidc":
		v, err := identity.NewOIDCVerifier(ctx, identity.OIDCConfig{
			Issuer:   cfg.OIDCIssuer,
			Audience: cfg.OIDCAudience,
			JWKSURL:  cfg.OIDCJWKSURL,
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	case "jwt":
		v, err := identity.NewJWTVerifier(identity.JWTConfig{
			SigningKey: cfg.JWTSigningKey,
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
		})
		if err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, nil
	}
}

// buildBlobStore returns the configured object store, or nil when none is.
func buildBlobStore(ctx context.Context, cfg *config.Config) (blob.Store, error) {
	switch cfg.BlobBackend {
	case "local":
		publicURL := cfg.BlobPublicURL
		if publicURL == "" {
			publicURL = "http://localhost" + cfg.Addr + localBlobPath
		}
		s, err := blob.NewLocalStore(cfg.BlobLocalDir, publicURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "gcs":
		s, err := blob.NewGCSStore(ctx, blob.GCSConfig{
			Bucket:          cfg.GCSBucket,
			CredentialsFile: cfg.GCSCredentialsFile,
			PublicURL:       cfg.BlobPublicURL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "minio":
		s, err := blob.NewMinioStore(blob.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			Bucket:    cfg.MinioBucket,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.BlobPublicURL,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, nil
	}
}

const localBlobPath = "/blobs/"

// withLocalBlobs serves the photos of the local blob backend. Backups stay
// private and directories are never listed.
func withLocalBlobs(next http.Handler, dir string) http.Handler {
	mux := http.NewServeMux()
	files := http.StripPrefix(localBlobPath, http.FileServer(filesOnly{http.Dir(dir)}))
	mux.Handle("GET "+localBlobPath+"photos/", files)
	mux.Handle("/", next)
	return mux
}

// filesOnly hides directories so the file server cannot list them.
type filesOnly struct {
	fs http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.fs.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.IsDir() {
		file.Close()
		return nil, os.ErrNotExist
	}
	return file, nil
}

// initTracer sets up an OTLP gRPC trace exporter and returns the TracerProvider.
// Exporter endpoint is configured via standard OTEL_EXPORTER_OTLP_ENDPOINT env var
// (default: localhost:4317).
func initTracer(ctx context.Context, serviceName string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tp, nil
}
