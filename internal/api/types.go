package api

import (
	"encoding/json"
	"mime/multipart"
	"time"

	"github.com/hatemosphere/movies-backend/internal/identity"
	"github.com/hatemosphere/movies-backend/internal/movies"
	"github.com/hatemosphere/movies-backend/internal/storage"
)

// --- Query param mixins ---

// MovieParams carries the movie_id query parameter. It is checked by the
// handlers so a missing id is reported as a 400 with the gateway error body.
type MovieParams struct {
	MovieID string `query:"movie_id" doc:"TMDB movie identifier"`
}

// ReviewParams identifies one review of a movie.
type ReviewParams struct {
	MovieID  string `query:"movie_id" doc:"TMDB movie identifier"`
	ReviewID string `query:"review_id" doc:"Review identifier"`
}

// --- Reusable sub-types ---

// UserRecord is the public view of an identity.
type UserRecord struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"displayName,omitempty"`
	EmailVerified bool   `json:"emailVerified"`
	PhotoURL      string `json:"photoURL,omitempty"`
}

func userRecord(id *identity.Identity) UserRecord {
	return UserRecord{
		UID:           id.UID,
		Email:         id.Email,
		DisplayName:   id.DisplayName,
		EmailVerified: id.EmailVerified,
		PhotoURL:      id.PhotoURL,
	}
}

// ReviewRecord is the public view of a stored review.
type ReviewRecord struct {
	ID        string    `json:"id"`
	MovieID   string    `json:"movie_id"`
	AuthorUID string    `json:"author_uid"`
	Username  string    `json:"username"`
	Score     float64   `json:"score"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"created_at"`
}

func reviewRecord(r *storage.Review) ReviewRecord {
	return ReviewRecord{
		ID:        r.ID,
		MovieID:   r.MovieID,
		AuthorUID: r.AuthorUID,
		Username:  r.Username,
		Score:     r.Score,
		Review:    r.Body,
		CreatedAt: r.CreatedAt,
	}
}

// MessageBody is a bare confirmation.
type MessageBody struct {
	Message string `json:"message"`
}

// --- Health ---

// HealthCheckOutput is the response for GET /.
type HealthCheckOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

// ReadinessOutput is the response for GET /readyz.
type ReadinessOutput struct {
	Body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
}

// --- Users ---

// SignUpInput is a multipart form: email, password, displayName?,
// emailVerified?, photo?.
type SignUpInput struct {
	RawBody multipart.Form
}

// UserOutput returns a user record.
type UserOutput struct {
	Body UserRecord
}

// UpdateProfilePicInput is a multipart form with a single photo file.
type UpdateProfilePicInput struct {
	RawBody multipart.Form
}

// UpdateProfilePicOutput returns the new photo URL.
type UpdateProfilePicOutput struct {
	Body struct {
		PhotoURL string `json:"photoURL"`
	}
}

// FormOrJSONInput accepts an urlencoded form or a JSON object.
type FormOrJSONInput struct {
	ContentType string `header:"Content-Type"`
	RawBody     []byte
}

// MessageOutput returns a confirmation message.
type MessageOutput struct {
	Body MessageBody
}

// --- Reviews ---

// PostReviewInput is the input for POST /movies/reviews.
type PostReviewInput struct {
	MovieParams
	ContentType string `header:"Content-Type"`
	RawBody     []byte
}

// ReviewOutput returns one review.
type ReviewOutput struct {
	Body ReviewRecord
}

// ListReviewsInput is the input for GET /movies/reviews.
type ListReviewsInput struct {
	MovieParams
}

// ListReviewsOutput lists a movie's reviews, newest first.
type ListReviewsOutput struct {
	Body struct {
		Reviews []ReviewRecord `json:"reviews"`
	}
}

// DeleteReviewInput is the input for DELETE /movies/reviews.
type DeleteReviewInput struct {
	ReviewParams
}

// --- Movies ---

// SearchMoviesInput is the input for GET /movies/search.
type SearchMoviesInput struct {
	Query string `query:"q" doc:"Search text"`
	Page  int    `query:"page" minimum:"1" maximum:"500" doc:"Result page, 1-based"`
}

// MovieDocumentOutput passes a TMDB document through unchanged.
type MovieDocumentOutput struct {
	Body json.RawMessage
}

// CarouselOutput lists now-playing movies.
type CarouselOutput struct {
	Body []movies.CarouselItem
}

// HomeListOutput lists popular movies.
type HomeListOutput struct {
	Body []movies.HomeItem
}
