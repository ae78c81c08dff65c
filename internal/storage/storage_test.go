package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, cfgs ...SQLiteStoreConfig) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"), cfgs...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestReviews_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 30, 45, 987654321, time.FixedZone("CET", 3600))
	r := &Review{MovieID: "550", AuthorUID: "uid-1", Username: "alice", Score: 8.5, Body: "great", CreatedAt: created}
	require.NoError(t, store.CreateReview(ctx, r))
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, time.Date(2026, 3, 1, 11, 30, 45, 0, time.UTC), r.CreatedAt)

	got, err := store.GetReview(ctx, "550", r.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, r.CreatedAt, got.CreatedAt, "stored and returned timestamps match")
	assert.Equal(t, time.UTC, got.CreatedAt.Location())
	assert.Equal(t, "uid-1", got.AuthorUID)
	assert.Equal(t, 8.5, got.Score)
	assert.Equal(t, "great", got.Body)

	// Review ids are scoped to their movie.
	other, err := store.GetReview(ctx, "551", r.ID)
	require.NoError(t, err)
	assert.Nil(t, other)

	n, err := store.CountReviewsByAuthor(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	n, err = store.CountReviews(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	deleted, err := store.DeleteReview(ctx, "550", r.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteReview(ctx, "550", r.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	got, err = store.GetReview(ctx, "550", r.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReviews_ListNewestFirstWithLimit(t *testing.T) {
	store := newTestStore(t, SQLiteStoreConfig{ListLimit: 2})
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	for i, body := range []string{"old", "mid", "new"} {
		require.NoError(t, store.CreateReview(ctx, &Review{
			MovieID: "550", AuthorUID: "u", Body: body, CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.CreateReview(ctx, &Review{MovieID: "13", AuthorUID: "u", Body: "elsewhere"}))

	list, err := store.ListReviews(ctx, "550")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Body)
	assert.Equal(t, "mid", list[1].Body)

	empty, err := store.ListReviews(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestBackup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.CreateReview(ctx, &Review{MovieID: "550", AuthorUID: "u", Body: "kept"}))

	dest := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, store.Backup(ctx, dest))

	restored, err := NewSQLiteStore(dest)
	require.NoError(t, err)
	defer restored.Close()
	list, err := restored.ListReviews(ctx, "550")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "kept", list[0].Body)
	require.NoError(t, restored.Ping(ctx))
}
