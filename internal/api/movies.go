package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/hatemosphere/movies-backend/internal/identity"
	"github.com/hatemosphere/movies-backend/internal/movies"
)

func (s *Server) registerMovies(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "searchMovie",
		Method:      http.MethodGet,
		Path:        "/movies/search",
		Tags:        []string{"Movies"},
		Summary:     "Search for movies",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *SearchMoviesInput) (*MovieDocumentOutput, error) {
		q := strings.TrimSpace(input.Query)
		if q == "" {
			return nil, apiError(identity.InvalidInput("search query needed"))
		}
		doc, err := s.movies.Search(ctx, q, input.Page)
		if err != nil {
			return nil, movieError(err)
		}
		return &MovieDocumentOutput{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getMovie",
		Method:      http.MethodGet,
		Path:        "/movies",
		Tags:        []string{"Movies"},
		Summary:     "Get movie details",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *MovieParams) (*MovieDocumentOutput, error) {
		id, err := requireMovieID(input.MovieID)
		if err != nil {
			return nil, apiError(err)
		}
		doc, err := s.movies.Movie(ctx, id)
		if err != nil {
			return nil, movieError(err)
		}
		return &MovieDocumentOutput{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getCredits",
		Method:      http.MethodGet,
		Path:        "/movies/credits",
		Tags:        []string{"Movies"},
		Summary:     "Get movie credits",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusInternalServerError},
	}, func(ctx context.Context, input *MovieParams) (*MovieDocumentOutput, error) {
		id, err := requireMovieID(input.MovieID)
		if err != nil {
			return nil, apiError(err)
		}
		doc, err := s.movies.Credits(ctx, id)
		if err != nil {
			return nil, movieError(err)
		}
		return &MovieDocumentOutput{Body: doc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getCarousel",
		Method:      http.MethodGet,
		Path:        "/movies/carousel",
		Tags:        []string{"Movies"},
		Summary:     "Now playing movies for the landing carousel",
	}, func(ctx context.Context, input *struct{}) (*CarouselOutput, error) {
		items, err := s.movies.Carousel(ctx)
		if err != nil {
			return nil, movieError(err)
		}
		return &CarouselOutput{Body: items}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "getHomeList",
		Method:      http.MethodGet,
		Path:        "/movies/home-list",
		Tags:        []string{"Movies"},
		Summary:     "Popular movies for the home page",
	}, func(ctx context.Context, input *struct{}) (*HomeListOutput, error) {
		items, err := s.movies.HomeList(ctx)
		if err != nil {
			return nil, movieError(err)
		}
		return &HomeListOutput{Body: items}, nil
	})
}

var errMovieLookup = errors.New("movie lookup failed")

// movieError maps movie service failures onto the gateway error kinds.
func movieError(err error) error {
	switch {
	case errors.Is(err, movies.ErrMissingID):
		return apiError(identity.InvalidInput("movie identifier needed"))
	case errors.Is(err, movies.ErrInvalidID):
		return apiError(identity.InvalidInput("movie identifier must be numeric"))
	case errors.Is(err, movies.ErrNotFound):
		return apiError(identity.ErrNotFound)
	default:
		return apiError(fmt.Errorf("%w: %w", errMovieLookup, err))
	}
}
