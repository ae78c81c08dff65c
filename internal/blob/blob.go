// Package blob stores user photos and database backups in object storage.
package blob

import (
	"context"
	"errors"
	"io"
	"sort"
	"time"
)

// ErrNotExist is returned by Delete when the key does not exist.
var ErrNotExist = errors.New("blob: object does not exist")

// Object describes one stored object.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Store is the interface for object storage backends. Keys use "/" as the
// separator regardless of backend.
type Store interface {
	// Put writes r under key and returns the object's public URL.
	// size may be -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (url string, err error)

	// List returns objects whose key starts with prefix, newest first.
	List(ctx context.Context, prefix string) ([]Object, error)

	// Delete removes the object at key.
	Delete(ctx context.Context, key string) error

	// Name returns a short backend name for logs (e.g. "gcs").
	Name() string
}

func sortNewestFirst(objs []Object) {
	sort.Slice(objs, func(i, j int) bool {
		if objs[i].LastModified.Equal(objs[j].LastModified) {
			return objs[i].Key > objs[j].Key
		}
		return objs[i].LastModified.After(objs[j].LastModified)
	})
}
