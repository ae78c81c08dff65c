package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

const defaultListLimit = 100

// SQLiteStoreConfig holds tuning parameters for the SQLite store.
type SQLiteStoreConfig struct {
	ListLimit int // max reviews returned per movie; 0 = default (100)
}

// SQLiteStore implements Store using SQLite in WAL mode.
type SQLiteStore struct {
	db        *sql.DB
	listLimit int
}

// NewSQLiteStore opens (or creates) a SQLite database at path with WAL mode enabled.
func NewSQLiteStore(path string, cfgs ...SQLiteStoreConfig) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=synchronous(normal)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One connection avoids "database is locked" with concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	limit := defaultListLimit
	if len(cfgs) > 0 && cfgs[0].ListLimit > 0 {
		limit = cfgs[0].ListLimit
	}

	s := &SQLiteStore{db: db, listLimit: limit}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS reviews (
    id TEXT PRIMARY KEY,
    movie_id TEXT NOT NULL,
    author_uid TEXT NOT NULL,
    username TEXT NOT NULL DEFAULT '',
    score REAL NOT NULL DEFAULT 0,
    body TEXT NOT NULL DEFAULT '',
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_movie ON reviews(movie_id, created_at);
CREATE INDEX IF NOT EXISTS idx_reviews_author ON reviews(author_uid);
`

// CreateReview inserts r, assigning ID and CreatedAt when unset. CreatedAt is
// stored with second precision and r is updated to the stored value.
func (s *SQLiteStore) CreateReview(ctx context.Context, r *Review) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	r.CreatedAt = r.CreatedAt.Truncate(time.Second).UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reviews (id, movie_id, author_uid, username, score, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.MovieID, r.AuthorUID, r.Username, r.Score, r.Body, r.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetReview(ctx context.Context, movieID, reviewID string) (*Review, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, movie_id, author_uid, username, score, body, created_at
		 FROM reviews WHERE movie_id=? AND id=?`,
		movieID, reviewID)

	r, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListReviews returns the newest reviews of a movie first.
func (s *SQLiteStore) ListReviews(ctx context.Context, movieID string) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, movie_id, author_uid, username, score, body, created_at
		 FROM reviews WHERE movie_id=? ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		movieID, s.listLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteReview(ctx context.Context, movieID, reviewID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM reviews WHERE movie_id=? AND id=?`, movieID, reviewID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) CountReviewsByAuthor(ctx context.Context, authorUID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE author_uid=?`, authorUID).Scan(&n)
	return n, err
}

func (s *SQLiteStore) CountReviews(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&n)
	return n, err
}

// Backup creates a consistent backup of the database at destPath.
func (s *SQLiteStore) Backup(ctx context.Context, destPath string) error {
	_, err := s.db.ExecContext(ctx, "VACUUM INTO ?", destPath)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReview(row scanner) (*Review, error) {
	r := &Review{}
	var createdAt int64
	if err := row.Scan(&r.ID, &r.MovieID, &r.AuthorUID, &r.Username, &r.Score, &r.Body, &createdAt); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	return r, nil
}
