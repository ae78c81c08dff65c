package api

import (
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/url"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/hatemosphere/movies-backend/internal/identity"
)

// requireMovieID checks the movie_id query parameter.
func requireMovieID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", identity.InvalidInput("movie identifier needed")
	}
	if len(id) > 64 {
		return "", identity.InvalidInput("movie identifier too long (max 64 characters)")
	}
	return id, nil
}

// formValues decodes an urlencoded form or a flat JSON object into string
// values. JSON booleans and numbers keep their literal text.
func formValues(contentType string, body []byte) (url.Values, error) {
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt == "application/json" {
		var obj map[string]any
		if err := json.Unmarshal(body, &obj); err != nil {
			return nil, identity.InvalidInput("malformed JSON body")
		}
		vals := url.Values{}
		for k, v := range obj {
			switch v := v.(type) {
			case nil:
			case string:
				vals.Set(k, v)
			case bool:
				vals.Set(k, strconv.FormatBool(v))
			case float64:
				vals.Set(k, strconv.FormatFloat(v, 'f', -1, 64))
			default:
				return nil, identity.InvalidInput("field %q must be a scalar", k)
			}
		}
		return vals, nil
	}
	vals, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, identity.InvalidInput("malformed form body")
	}
	return vals, nil
}

// multipartValues flattens the non-file fields of a multipart form.
func multipartValues(form *multipart.Form) url.Values {
	vals := url.Values{}
	if form == nil {
		return vals
	}
	for k, v := range form.Value {
		vals[k] = v
	}
	return vals
}

func optionalString(vals url.Values, key string) *string {
	if !vals.Has(key) {
		return nil
	}
	v := vals.Get(key)
	return &v
}

func optionalBool(vals url.Values, key string) (*bool, error) {
	if !vals.Has(key) {
		return nil, nil
	}
	b, err := strconv.ParseBool(vals.Get(key))
	if err != nil {
		return nil, identity.InvalidInput("%s must be true or false", key)
	}
	return &b, nil
}

// profileForm reads the fields of PUT /users/updateUserData.
func profileForm(vals url.Values) (identity.ProfileForm, error) {
	verified, err := optionalBool(vals, "emailVerified")
	if err != nil {
		return identity.ProfileForm{}, err
	}
	return identity.ProfileForm{
		Email:         optionalString(vals, "email"),
		DisplayName:   optionalString(vals, "displayName"),
		EmailVerified: verified,
	}, nil
}

// reviewForm is the body of POST /movies/reviews.
type reviewForm struct {
	Username string
	Score    *float64
	Review   string
}

func parseReviewForm(vals url.Values) (reviewForm, error) {
	f := reviewForm{
		Username: strings.TrimSpace(vals.Get("username")),
		Review:   strings.TrimSpace(vals.Get("review")),
	}
	if vals.Has("score") {
		score, err := strconv.ParseFloat(vals.Get("score"), 64)
		if err != nil {
			return f, identity.InvalidInput("score must be a number")
		}
		f.Score = &score
	}
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Username, validation.Length(0, 64)),
		validation.Field(&f.Score, validation.NotNil, validation.Min(0.0), validation.Max(10.0)),
		validation.Field(&f.Review, validation.Required, validation.Length(1, 5000)),
	)
	if err != nil {
		return f, identity.InvalidInput("%s", err.Error())
	}
	return f, nil
}
