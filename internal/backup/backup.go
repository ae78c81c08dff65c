// Package backup snapshots the review database and ships the snapshots to
// object storage with count-based retention.
package backup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hatemosphere/movies-backend/internal/blob"
)

// BackupInfo describes a single backup stored by a Provider.
type BackupInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Provider is the interface for backup storage destinations.
type Provider interface {
	// Upload sends a local file to the backup destination.
	// Returns the remote key for the uploaded backup.
	Upload(ctx context.Context, localPath string) (remoteKey string, err error)

	// List returns all backups at the destination, ordered newest-first.
	List(ctx context.Context) ([]BackupInfo, error)

	// Delete removes a specific backup by key.
	Delete(ctx context.Context, key string) error

	// Name returns a human-readable name for this provider.
	Name() string
}

// BlobProvider stores backups in a blob.Store under a key prefix.
type BlobProvider struct {
	store  blob.Store
	prefix string
}

// NewBlobProvider returns a Provider writing to store under prefix
// (default "backups/").
func NewBlobProvider(store blob.Store, prefix string) *BlobProvider {
	if prefix == "" {
		prefix = "backups/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &BlobProvider{store: store, prefix: prefix}
}

func (p *BlobProvider) Name() string { return p.store.Name() }

func (p *BlobProvider) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath) //nolint:gosec // path comes from our own temp dir
	if err != nil {
		return "", fmt.Errorf("open backup: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}
	key := p.prefix + filepath.Base(localPath)
	if _, err := p.store.Put(ctx, key, f, info.Size(), "application/vnd.sqlite3"); err != nil {
		return "", err
	}
	return key, nil
}

func (p *BlobProvider) List(ctx context.Context) ([]BackupInfo, error) {
	objs, err := p.store.List(ctx, p.prefix)
	if err != nil {
		return nil, err
	}
	out := make([]BackupInfo, 0, len(objs))
	for _, o := range objs {
		out = append(out, BackupInfo{Key: o.Key, Size: o.Size, LastModified: o.LastModified})
	}
	return out, nil
}

func (p *BlobProvider) Delete(ctx context.Context, key string) error {
	return p.store.Delete(ctx, key)
}

// Prune deletes backups beyond the retention count from the given provider.
// Expects List to return results sorted newest-first.
// Returns the number of backups deleted.
func Prune(ctx context.Context, p Provider, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}

	backups, err := p.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list backups for pruning: %w", err)
	}
	if len(backups) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, b := range backups[keep:] {
		if err := p.Delete(ctx, b.Key); err != nil {
			return deleted, fmt.Errorf("delete backup %s: %w", b.Key, err)
		}
		deleted++
	}
	return deleted, nil
}

// Snapshotter writes a consistent copy of a database to a local path.
// storage.SQLiteStore implements it.
type Snapshotter interface {
	Backup(ctx context.Context, destPath string) error
}

// Job takes a snapshot, uploads it and prunes old backups.
type Job struct {
	DB       Snapshotter
	Provider Provider
	Keep     int // 0 = keep everything
	now      func() time.Time
}

// Run performs one backup. It is the function handed to a Scheduler.
func (j *Job) Run(ctx context.Context) error {
	now := time.Now
	if j.now != nil {
		now = j.now
	}

	dir, err := os.MkdirTemp("", "movies-backup-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	local := filepath.Join(dir, "backup-"+now().UTC().Format("20060102-150405")+".db")
	if err := j.DB.Backup(ctx, local); err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	key, err := j.Provider.Upload(ctx, local)
	if err != nil {
		return fmt.Errorf("upload backup to %s: %w", j.Provider.Name(), err)
	}
	slog.Info("backup uploaded", "provider", j.Provider.Name(), "key", key)

	deleted, err := Prune(ctx, j.Provider, j.Keep)
	if err != nil {
		return err
	}
	if deleted > 0 {
		slog.Info("old backups pruned", "provider", j.Provider.Name(), "deleted", deleted)
	}
	return nil
}
