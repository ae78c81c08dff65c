// Package storage persists movie reviews.
package storage

import (
	"context"
	"time"
)

// Review is a user review of a movie. AuthorUID is the identity that created
// it and is the only uid allowed to delete it, apart from moderators.
type Review struct {
	ID        string
	MovieID   string
	AuthorUID string
	Username  string
	Score     float64
	Body      string
	CreatedAt time.Time
}

// Store is the storage interface for reviews. Getters return (nil, nil)
// when the record does not exist.
type Store interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error

	// Reviews
	CreateReview(ctx context.Context, r *Review) error
	GetReview(ctx context.Context, movieID, reviewID string) (*Review, error)
	ListReviews(ctx context.Context, movieID string) ([]Review, error)
	// DeleteReview reports whether a review was removed.
	DeleteReview(ctx context.Context, movieID, reviewID string) (bool, error)
	CountReviewsByAuthor(ctx context.Context, authorUID string) (int64, error)
	CountReviews(ctx context.Context) (int64, error)

	// Backup creates a consistent backup of the database at destPath using VACUUM INTO.
	Backup(ctx context.Context, destPath string) error
}
