package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/hatemosphere/movies-backend/internal/identity"
)

// APIError is the error body every route returns:
// {"kind": string, "code": string, "message": string}.
type APIError struct {
	status  int
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) GetStatus() int {
	return e.status
}

func init() {
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var ge *identity.Error
			if errors.As(err, &ge) {
				return &APIError{
					status:  ge.Kind.HTTPStatus(),
					Kind:    string(ge.Kind),
					Code:    ge.Code,
					Message: ge.Message,
				}
			}
		}
		// Request validation failures from huma itself are client input errors.
		if status == http.StatusUnprocessableEntity {
			status = http.StatusBadRequest
		}
		if msg == "" && len(errs) > 0 {
			msg = errs[0].Error()
		}
		if len(errs) > 0 && status == http.StatusBadRequest {
			for _, err := range errs {
				var d *huma.ErrorDetail
				if errors.As(err, &d) && d.Location != "" {
					msg += ": " + d.Location + " " + d.Message
					break
				}
			}
		}
		kind, code := kindForStatus(status)
		return &APIError{
			status:  status,
			Kind:    kind,
			Code:    code,
			Message: msg,
		}
	}
}

func kindForStatus(status int) (kind, code string) {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnsupportedMediaType:
		return string(identity.KindInvalidInput), "backend/invalid-input"
	case http.StatusUnauthorized:
		return string(identity.KindMissingCredential), identity.ErrMissingCredential.Code
	case http.StatusForbidden:
		return string(identity.KindForbidden), identity.ErrForbidden.Code
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return string(identity.KindNotFound), identity.ErrNotFound.Code
	default:
		return "Internal", "backend/internal"
	}
}

// apiError converts a domain error into the response error. Gateway errors
// keep their kind; anything else is logged and reported as a bare 500.
func apiError(err error) error {
	if k := identity.KindOf(err); k != "" {
		if k.HTTPStatus() >= http.StatusInternalServerError {
			slog.Error("request failed", "kind", k, "error", err)
		}
		return huma.NewError(k.HTTPStatus(), "", err)
	}
	slog.Error("internal error", "error", err)
	return huma.NewError(http.StatusInternalServerError, "internal error")
}

// writeError writes err from a middleware, before any handler ran.
func writeError(api huma.API, ctx huma.Context, err error) {
	status := http.StatusInternalServerError
	if k := identity.KindOf(err); k != "" {
		status = k.HTTPStatus()
	}
	_ = huma.WriteErr(api, ctx, status, "", err)
}
