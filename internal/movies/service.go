package movies

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"
)

var (
	// ErrMissingID is returned when a movie id is empty.
	ErrMissingID = errors.New("movie identifier needed")
	// ErrInvalidID is returned for ids that are not TMDB numeric ids.
	ErrInvalidID = errors.New("movie identifier must be numeric")
)

// CarouselItem is one now-playing entry for the landing carousel.
type CarouselItem struct {
	BackdropPath string `json:"backdrop_path"`
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Overview     string `json:"overview"`
}

// HomeItem is one popular-movie entry for the home list.
type HomeItem struct {
	PosterPath string `json:"poster_path"`
	ID         int64  `json:"id"`
	Title      string `json:"title"`
}

// Service reads TMDB documents through a cache. Concurrent misses for the
// same document share a single upstream request.
type Service struct {
	fetch Fetcher
	cache Cache
	sf    singleflight.Group
}

// NewService creates a Service. A nil cache disables caching.
func NewService(f Fetcher, c Cache) *Service {
	return &Service{fetch: f, cache: c}
}

// Search returns TMDB search results for q. Pages start at 1.
func (s *Service) Search(ctx context.Context, q string, page int) (json.RawMessage, error) {
	query := url.Values{"query": {q}}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	return s.get(ctx, "search/movie", query)
}

// Movie returns the TMDB details document for id.
func (s *Service) Movie(ctx context.Context, id string) (json.RawMessage, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.get(ctx, "movie/"+id, nil)
}

// Credits returns cast and crew for id.
func (s *Service) Credits(ctx context.Context, id string) (json.RawMessage, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.get(ctx, "movie/"+id+"/credits", nil)
}

func checkID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return ErrInvalidID
		}
	}
	return nil
}

// Carousel projects the now-playing list.
func (s *Service) Carousel(ctx context.Context) ([]CarouselItem, error) {
	raw, err := s.get(ctx, "movie/now_playing", nil)
	if err != nil {
		return nil, err
	}
	var page struct {
		Results []CarouselItem `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, errors.Join(ErrUpstream, err)
	}
	if page.Results == nil {
		page.Results = []CarouselItem{}
	}
	return page.Results, nil
}

// HomeList projects the popular list.
func (s *Service) HomeList(ctx context.Context) ([]HomeItem, error) {
	raw, err := s.get(ctx, "movie/popular", nil)
	if err != nil {
		return nil, err
	}
	var page struct {
		Results []HomeItem `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, errors.Join(ErrUpstream, err)
	}
	if page.Results == nil {
		page.Results = []HomeItem{}
	}
	return page.Results, nil
}

func (s *Service) get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	key := path
	if len(query) > 0 {
		key += "?" + query.Encode()
	}
	if s.cache != nil {
		if v, ok := s.cache.Get(ctx, key); ok {
			return v, nil
		}
	}
	v, err, _ := s.sf.Do(key, func() (any, error) {
		body, err := s.fetch.Fetch(ctx, path, query)
		if err != nil {
			return nil, err
		}
		if !json.Valid(body) {
			return nil, errors.Join(ErrUpstream, errors.New("response is not JSON"))
		}
		if s.cache != nil {
			s.cache.Set(ctx, key, body)
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(v.([]byte)), nil
}
