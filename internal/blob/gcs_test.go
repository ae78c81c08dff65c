package blob

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGCSStore(t *testing.T) {
	var uploads int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && strings.Contains(r.URL.Path, "/b/media/o"):
			uploads++
			_ = json.NewEncoder(w).Encode(map[string]any{"name": "photos/u1.png", "bucket": "media"})
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/b/media/o"):
			_ = json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{
					{"name": "backups/old.db", "size": "10", "updated": time.Now().Add(-time.Hour).Format(time.RFC3339)},
					{"name": "backups/new.db", "size": "20", "updated": time.Now().Format(time.RFC3339)},
				},
			})
		case r.Method == http.MethodDelete && strings.HasSuffix(r.URL.Path, "/o/missing"):
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": 404, "message": "No such object"}})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	s, err := NewGCSStore(ctx, GCSConfig{Bucket: "media", Endpoint: srv.URL + "/storage/v1/"})
	require.NoError(t, err)
	assert.Equal(t, "gcs", s.Name())

	u, err := s.Put(ctx, "photos/u1.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://storage.googleapis.com/media/photos/u1.png", u)
	assert.Equal(t, 1, uploads)

	objs, err := s.List(ctx, "backups/")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "backups/new.db", objs[0].Key)
	assert.Equal(t, int64(20), objs[0].Size)

	require.NoError(t, s.Delete(ctx, "backups/old.db"))
	assert.ErrorIs(t, s.Delete(ctx, "missing"), ErrNotExist)
}
