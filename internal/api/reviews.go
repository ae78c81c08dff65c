package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/hatemosphere/movies-backend/internal/audit"
	"github.com/hatemosphere/movies-backend/internal/auth"
	"github.com/hatemosphere/movies-backend/internal/identity"
	"github.com/hatemosphere/movies-backend/internal/storage"
)

func (s *Server) registerListReviews(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getReviews",
		Method:      http.MethodGet,
		Path:        "/movies/reviews",
		Tags:        []string{"Reviews"},
		Summary:     "List reviews of a movie, newest first",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *ListReviewsInput) (*ListReviewsOutput, error) {
		movieID, err := requireMovieID(input.MovieID)
		if err != nil {
			return nil, apiError(err)
		}
		reviews, err := s.reviews.ListReviews(ctx, movieID)
		if err != nil {
			return nil, apiError(err)
		}
		out := &ListReviewsOutput{}
		out.Body.Reviews = make([]ReviewRecord, 0, len(reviews))
		for i := range reviews {
			out.Body.Reviews = append(out.Body.Reviews, reviewRecord(&reviews[i]))
		}
		return out, nil
	})
}

func (s *Server) registerReviewMutations(api huma.API) {
	security := []map[string][]string{{"bearer": {}}}

	huma.Register(api, huma.Operation{
		OperationID:   "postReview",
		Method:        http.MethodPost,
		Path:          "/movies/reviews",
		Tags:          []string{"Reviews"},
		Summary:       "Publish a review",
		DefaultStatus: http.StatusCreated,
		Security:      security,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *PostReviewInput) (*ReviewOutput, error) {
		ctx, err := auth.Run(ctx, auth.RequireAuthenticated())
		if err != nil {
			return nil, apiError(err)
		}
		caller := identity.FromContext(ctx)

		movieID, err := requireMovieID(input.MovieID)
		if err != nil {
			return nil, apiError(err)
		}
		vals, err := formValues(input.ContentType, input.RawBody)
		if err != nil {
			return nil, apiError(err)
		}
		form, err := parseReviewForm(vals)
		if err != nil {
			return nil, apiError(err)
		}

		username := form.Username
		if username == "" {
			username = caller.DisplayName()
		}
		r := &storage.Review{
			MovieID:   movieID,
			AuthorUID: caller.UID,
			Username:  username,
			Score:     *form.Score,
			Body:      form.Review,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.reviews.CreateReview(ctx, r); err != nil {
			return nil, apiError(err)
		}
		return &ReviewOutput{Body: reviewRecord(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deleteReview",
		Method:      http.MethodDelete,
		Path:        "/movies/reviews",
		Tags:        []string{"Reviews"},
		Summary:     "Delete a review; only its author or a moderator may",
		Security:    security,
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *DeleteReviewInput) (*MessageOutput, error) {
		movieID, err := requireMovieID(input.MovieID)
		if err != nil {
			return nil, apiError(err)
		}
		reviewID := strings.TrimSpace(input.ReviewID)
		if reviewID == "" {
			return nil, apiError(identity.InvalidInput("review identifier needed"))
		}
		resource := reviewResource(movieID, reviewID)

		ctx, err = auth.Run(ctx,
			auth.RequireAuthenticated(),
			s.policy.RequireOwner(resource, s.reviewOwner(movieID, reviewID)),
		)
		if err != nil {
			return nil, apiError(err)
		}

		deleted, err := s.reviews.DeleteReview(ctx, movieID, reviewID)
		if err != nil {
			return nil, apiError(err)
		}
		if !deleted {
			// Removed concurrently after the ownership check.
			return nil, apiError(identity.ErrNotFound)
		}

		caller := identity.FromContext(ctx)
		audit.Event{
			Actor:       caller.UID,
			Action:      "deleteReview",
			Status:      "succeeded",
			Resource:    resource,
			Fingerprint: caller.Fingerprint,
		}.Info("Audit Log: Review Deleted")
		return &MessageOutput{Body: MessageBody{Message: "Review deleted"}}, nil
	})
}

// reviewOwner looks up the author of a review for the ownership policy.
func (s *Server) reviewOwner(movieID, reviewID string) auth.OwnerLookup {
	return func(ctx context.Context) (string, error) {
		r, err := s.reviews.GetReview(ctx, movieID, reviewID)
		if err != nil {
			return "", err
		}
		if r == nil {
			return "", identity.ErrNotFound
		}
		return r.AuthorUID, nil
	}
}
