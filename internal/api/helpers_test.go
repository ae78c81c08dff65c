package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hatemosphere/movies-backend/internal/audit"
	"github.com/hatemosphere/movies-backend/internal/auth"
	"github.com/hatemosphere/movies-backend/internal/blob"
	"github.com/hatemosphere/movies-backend/internal/identity"
	"github.com/hatemosphere/movies-backend/internal/identity/identitytest"
	"github.com/hatemosphere/movies-backend/internal/movies"
	"github.com/hatemosphere/movies-backend/internal/storage"
)

func init() {
	audit.Enabled = false
}

type testEnv struct {
	provider *identitytest.Provider
	client   *identity.Client
	reviews  *storage.SQLiteStore
	photoDir string
	server   *Server
	handler  http.Handler
}

type envOption func(*envConfig)

type envConfig struct {
	revocation bool
	noPhotos   bool
	policy     *auth.PolicyConfig
}

func withoutPhotoStore() envOption {
	return func(c *envConfig) { c.noPhotos = true }
}

func withoutRevocationCheck() envOption {
	return func(c *envConfig) { c.revocation = false }
}

func withPolicy(p *auth.PolicyConfig) envOption {
	return func(c *envConfig) { c.policy = p }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	cfg := envConfig{revocation: true}
	for _, o := range opts {
		o(&cfg)
	}

	env := &testEnv{provider: identitytest.New()}
	var clientOpts []identity.ClientOption
	if cfg.revocation {
		clientOpts = append(clientOpts, identity.WithRevocationCheck(time.Minute))
	}
	env.client = identity.NewClient(env.provider, clientOpts...)

	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	env.reviews = store

	env.photoDir = filepath.Join(dir, "photos")
	photos, err := blob.NewLocalStore(env.photoDir, "http://photos.test")
	require.NoError(t, err)

	tmdb := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search/movie":
			_, _ = io.WriteString(w, `{"page":1,"results":[{"id":550,"title":"Fight Club"}],"query":"`+r.URL.Query().Get("query")+`"}`)
		case "/movie/550":
			_, _ = io.WriteString(w, `{"id":550,"title":"Fight Club"}`)
		case "/movie/550/credits":
			_, _ = io.WriteString(w, `{"id":550,"cast":[]}`)
		case "/movie/now_playing":
			_, _ = io.WriteString(w, `{"results":[{"id":1,"title":"A","overview":"o","backdrop_path":"/a.jpg","adult":false}]}`)
		case "/movie/popular":
			_, _ = io.WriteString(w, `{"results":[{"id":2,"title":"B","poster_path":"/b.jpg","vote_count":10}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"status_code":34}`)
		}
	}))
	t.Cleanup(tmdb.Close)
	movieSvc := movies.NewService(movies.NewClient(movies.ClientConfig{BaseURL: tmdb.URL}), movies.NewMemoryCache(16, time.Minute))

	serverOpts := []ServerOption{
		WithIdentityClient(env.client),
		WithPolicy(auth.NewPolicy(cfg.policy)),
		WithReviewStore(store),
		WithMovies(movieSvc),
		WithMaxUploadBytes(1 << 20),
	}
	if !cfg.noPhotos {
		serverOpts = append(serverOpts, WithPhotoStore(photos))
	}
	srv, err := NewServer(serverOpts...)
	require.NoError(t, err)
	env.server = srv
	env.handler = srv.Router()
	return env
}

// do sends a request through the full middleware chain.
func (e *testEnv) do(method, target string, body io.Reader, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for _, h := range headers {
		k, v, _ := strings.Cut(h, ": ")
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// user creates an account directly at the provider and returns its uid and
// a bearer header for it.
func (e *testEnv) user(t *testing.T, email string, extra map[string]any) (string, string) {
	t.Helper()
	id, err := e.provider.Create(context.Background(), identity.CreateRequest{Email: email, Password: "secret1"})
	require.NoError(t, err)
	return id.UID, "Authorization: Bearer " + e.provider.Token(id.UID, time.Hour, extra)
}

func (e *testEnv) photoFiles(t *testing.T) []string {
	t.Helper()
	var files []string
	_ = filepath.WalkDir(e.photoDir, func(p string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	return files
}

type filePart struct {
	field, filename, contentType string
	data                         []byte
}

// multipartBody builds a multipart/form-data body and its Content-Type header.
func multipartBody(t *testing.T, fields map[string]string, files ...filePart) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, "Content-Type: " + w.FormDataContentType()
}

var pngPhoto = filePart{
	field:       "photo",
	filename:    "me.png",
	contentType: "image/png",
	data:        []byte("\x89PNG\r\n\x1a\nfake"),
}

type errorBody struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var e errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
