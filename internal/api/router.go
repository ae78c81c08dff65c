package api

import (
	"context"
	stdjson "encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/klauspost/compress/gzip"

	"github.com/hatemosphere/movies-backend/internal/audit"
	"github.com/hatemosphere/movies-backend/internal/auth"
	"github.com/hatemosphere/movies-backend/internal/blob"
	"github.com/hatemosphere/movies-backend/internal/identity"
	"github.com/hatemosphere/movies-backend/internal/movies"
	"github.com/hatemosphere/movies-backend/internal/storage"
)

// DefaultMaxUploadBytes bounds profile photo uploads.
const DefaultMaxUploadBytes = 5 << 20

// Server is the HTTP API server.
type Server struct {
	identity       *identity.Client
	guard          *auth.Guard
	policy         *auth.Policy
	reviews        storage.Store
	photos         blob.Store      // nil = photo uploads disabled
	movies         *movies.Service // nil = movie routes not registered
	maxUploadBytes int64
	humaAPI        huma.API
}

// NewServer creates a new API server. WithIdentityClient and WithReviewStore
// are required.
func NewServer(opts ...ServerOption) (*Server, error) {
	s := &Server{
		maxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.identity == nil {
		return nil, errors.New("api: identity client is required")
	}
	if s.reviews == nil {
		return nil, errors.New("api: review store is required")
	}
	if s.policy == nil {
		s.policy = auth.NewPolicy(nil)
	}
	s.guard = auth.NewGuard(s.identity)
	return s, nil
}

// ServerOption configures the API server.
type ServerOption func(*Server)

// WithIdentityClient sets the identity provider client used for signup,
// credential verification and account changes.
func WithIdentityClient(c *identity.Client) ServerOption {
	return func(s *Server) { s.identity = c }
}

// WithPolicy sets the resource ownership policy.
func WithPolicy(p *auth.Policy) ServerOption {
	return func(s *Server) { s.policy = p }
}

// WithReviewStore sets the review storage backend.
func WithReviewStore(store storage.Store) ServerOption {
	return func(s *Server) { s.reviews = store }
}

// WithPhotoStore sets the object store for profile photos.
func WithPhotoStore(b blob.Store) ServerOption {
	return func(s *Server) { s.photos = b }
}

// WithMovies sets the movie metadata service.
func WithMovies(m *movies.Service) ServerOption {
	return func(s *Server) { s.movies = m }
}

// WithMaxUploadBytes sets the profile photo size limit.
func WithMaxUploadBytes(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

// humaJSONFormat uses stdlib encoding/json for huma request/response serialization.
var humaJSONFormat = huma.Format{
	Marshal: func(w io.Writer, v any) error {
		return stdjson.NewEncoder(w).Encode(v)
	},
	Unmarshal: stdjson.Unmarshal,
}

// newHumaConfig creates the huma configuration shared by the public and
// protected APIs, so both register into one OpenAPI document.
func newHumaConfig() huma.Config {
	registry := huma.NewMapRegistry("#/components/schemas/", huma.DefaultSchemaNamer)
	config := huma.Config{
		OpenAPI: &huma.OpenAPI{
			OpenAPI: "3.1.0",
			Info: &huma.Info{
				Title:   "Movies Backend API",
				Version: "1.0.0",
			},
			Components: &huma.Components{
				Schemas: registry,
				SecuritySchemes: map[string]*huma.SecurityScheme{
					"bearer": {Type: "http", Scheme: "bearer", BearerFormat: "JWT"},
				},
			},
		},
		OpenAPIPath:   "", // served by getOpenAPISpec
		DocsPath:      "",
		SchemasPath:   "",
		Formats:       map[string]huma.Format{"application/json": humaJSONFormat, "json": humaJSONFormat},
		DefaultFormat: "application/json",
	}
	config.AllowAdditionalPropertiesByDefault = true
	// Optional fields are checked by the handlers, so missing values are
	// reported with the gateway error body.
	config.FieldsOptionalByDefault = true
	return config
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Router returns the configured HTTP handler with all endpoints.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	config := newHumaConfig()

	// Public routes (no auth).
	publicAPI := humago.New(mux, config)
	s.configurePublic(publicAPI)

	// Routes behind the authorization guard.
	protectedAPI := humago.New(mux, config)
	s.configureProtected(protectedAPI)
	s.humaAPI = protectedAPI

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeRawError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})

	// HTTP-level middleware (outermost applied last).
	var handler http.Handler = mux
	handler = gzipDecompressor(handler)
	handler = requestLogger(handler)
	handler = recoverer(handler)
	handler = realIP(handler)
	return handler
}

func (s *Server) configurePublic(api huma.API) {
	api.UseMiddleware(metricsHumaMiddleware)
	api.UseMiddleware(auditHumaMiddleware)
	s.registerPublicRoutes(api)
	s.registerSignUp(api)
	s.registerListReviews(api)
	if s.movies != nil {
		s.registerMovies(api)
	}
}

func (s *Server) configureProtected(api huma.API) {
	api.UseMiddleware(metricsHumaMiddleware)
	api.UseMiddleware(s.guardHumaMiddleware(api))
	api.UseMiddleware(auditHumaMiddleware)
	s.registerAccount(api)
	s.registerReviewMutations(api)
}

// registerPublicRoutes registers health, readiness, metrics and OpenAPI.
func (s *Server) registerPublicRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/{$}",
		Tags:        []string{"Health"},
		Hidden:      true,
	}, func(ctx context.Context, input *struct{}) (*HealthCheckOutput, error) {
		out := &HealthCheckOutput{}
		out.Body.Status = "ok"
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "readinessCheck",
		Method:      http.MethodGet,
		Path:        "/readyz",
		Tags:        []string{"Health"},
		Errors:      []int{http.StatusServiceUnavailable},
	}, func(ctx context.Context, input *struct{}) (*ReadinessOutput, error) {
		out := &ReadinessOutput{}
		out.Body.Checks = map[string]string{"reviews": "ok"}
		if err := s.reviews.Ping(ctx); err != nil {
			slog.Warn("readiness check failed", "check", "reviews", "error", err)
			return nil, huma.NewError(http.StatusServiceUnavailable, "review store unavailable")
		}
		out.Body.Status = "ok"
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getMetrics",
		Method:      http.MethodGet,
		Path:        "/metrics",
		Tags:        []string{"Meta"},
	}, func(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
		return &huma.StreamResponse{
			Body: func(ctx huma.Context) {
				rec := httptest.NewRecorder()
				MetricsHandler().ServeHTTP(rec, &http.Request{})
				for k, vals := range rec.Header() {
					for _, v := range vals {
						ctx.SetHeader(k, v)
					}
				}
				_, _ = ctx.BodyWriter().Write(rec.Body.Bytes())
			},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getOpenAPISpec",
		Method:      http.MethodGet,
		Path:        "/openapi.json",
		Tags:        []string{"Meta"},
	}, func(ctx context.Context, input *struct{}) (*huma.StreamResponse, error) {
		return &huma.StreamResponse{
			Body: func(ctx huma.Context) {
				ctx.SetHeader("Content-Type", "application/json")
				if s.humaAPI != nil {
					data, _ := stdjson.Marshal(s.humaAPI.OpenAPI())
					_, _ = ctx.BodyWriter().Write(data)
				} else {
					_, _ = ctx.BodyWriter().Write([]byte(`{}`))
				}
			},
		}, nil
	})
}

// guardHumaMiddleware authenticates the bearer credential before the
// operation reads its body. Failures are answered here with 401, or 500 when
// the identity provider could not be reached.
func (s *Server) guardHumaMiddleware(api huma.API) func(ctx huma.Context, next func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		authed, err := auth.Run(ctx.Context(), s.guard.Stage(ctx.Header("Authorization")))
		if err != nil {
			kind := identity.KindOf(err)
			authRejections.WithLabelValues(string(kind)).Inc()
			slog.Debug("request rejected by guard", "operation", ctx.Operation().OperationID, "kind", kind)
			audit.Event{
				Actor:      "anonymous",
				Action:     ctx.Operation().OperationID,
				Status:     "denied",
				Method:     ctx.Method(),
				HTTPStatus: kind.HTTPStatus(),
				Reason:     string(kind),
				IP:         ctx.RemoteAddr(),
			}.Warn("Audit Log: Authentication Failed")
			writeError(api, ctx, err)
			return
		}
		next(huma.WithContext(ctx, authed))
	}
}

// metricsHumaMiddleware records Prometheus metrics for each huma request using
// the operation path as the route label for clean, low-cardinality metrics.
func metricsHumaMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	next(ctx)
	elapsed := time.Since(start)

	route := ctx.Operation().Path
	status := ctx.Status()
	if status == 0 {
		status = 200
	}

	httpRequestsTotal.WithLabelValues(ctx.Method(), route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(ctx.Method(), route).Observe(elapsed.Seconds())
}

// auditHumaMiddleware logs structured audit entries for state-mutating API
// operations. On protected routes it runs after the guard, so the caller's
// identity is available.
func auditHumaMiddleware(ctx huma.Context, next func(huma.Context)) {
	next(ctx)

	method := ctx.Method()
	if method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions {
		return
	}

	e := audit.Event{
		Actor:    "anonymous",
		Action:   ctx.Operation().OperationID,
		Method:   method,
		Resource: buildAuditResource(ctx),
		IP:       ctx.RemoteAddr(),
	}
	if caller := identity.FromContext(ctx.Context()); caller != nil {
		e.Actor = caller.UID
		e.Fingerprint = caller.Fingerprint
	}

	e.HTTPStatus = ctx.Status()
	if e.HTTPStatus == 0 {
		e.HTTPStatus = 200
	}
	if e.HTTPStatus >= 400 {
		e.Status = "failed"
		e.Warn("Audit Log: API Request")
	} else {
		e.Status = "succeeded"
		e.Info("Audit Log: API Request")
	}
}

// buildAuditResource names the target of a request from its query params.
func buildAuditResource(ctx huma.Context) string {
	movie := ctx.Query("movie_id")
	if movie == "" {
		if caller := identity.FromContext(ctx.Context()); caller != nil {
			return "users/" + caller.UID
		}
		return ""
	}
	if review := ctx.Query("review_id"); review != "" {
		return reviewResource(movie, review)
	}
	return "movies/" + movie
}

func reviewResource(movieID, reviewID string) string {
	return "movies/" + movieID + "/reviews/" + reviewID
}

// requestLogger logs each HTTP request with method, path, status, and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		slog.Info("request", //nolint:gosec // structured logger, not format string
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"latency", time.Since(start),
		)
	})
}

// realIP extracts the real client IP from X-Real-Ip or X-Forwarded-For headers.
func realIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rip := r.Header.Get("X-Real-Ip"); rip != "" {
			r.RemoteAddr = rip
		} else if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			if i := strings.IndexByte(xff, ','); i > 0 {
				r.RemoteAddr = strings.TrimSpace(xff[:i])
			} else {
				r.RemoteAddr = xff
			}
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer recovers from panics and returns a 500 with the error body.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				slog.Error("panic recovered", "error", rvr, "method", r.Method, "path", r.URL.Path) //nolint:gosec // structured logger, not format string
				writeRawError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// gzipDecompressor transparently decompresses gzip request bodies.
func gzipDecompressor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Encoding") == "gzip" {
			gz, err := gzip.NewReader(r.Body)
			if err != nil {
				writeRawError(w, http.StatusBadRequest, "invalid gzip body")
				return
			}
			r.Body = io.NopCloser(gz)
			r.Header.Del("Content-Encoding")
			r.ContentLength = -1
		}
		next.ServeHTTP(w, r)
	})
}

// writeRawError writes the error body outside of huma.
func writeRawError(w http.ResponseWriter, status int, msg string) {
	kind, code := kindForStatus(status)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = stdjson.NewEncoder(w).Encode(&APIError{Kind: kind, Code: code, Message: msg})
}
