package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind is the closed set of failure variants the gateway reports.
type Kind string

const (
	KindInvalidEmailFormat  Kind = "InvalidEmailFormat"
	KindInvalidInput        Kind = "InvalidInput"
	KindProviderRejected    Kind = "ProviderRejected"
	KindIdentityNotFound    Kind = "IdentityNotFound"
	KindMissingCredential   Kind = "MissingCredential"
	KindInvalidCredential   Kind = "InvalidCredential"
	KindForbidden           Kind = "Forbidden"
	KindNotFound            Kind = "NotFound"
	KindProviderUnavailable Kind = "ProviderUnavailable"
)

// HTTPStatus returns the response status a failure of this kind maps to.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidEmailFormat, KindInvalidInput:
		return http.StatusBadRequest
	case KindMissingCredential, KindInvalidCredential:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindIdentityNotFound, KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a gateway error variant. Code is the provider-native code for
// ProviderRejected failures and a backend code otherwise. Err holds the
// underlying cause and is never shown to clients.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind, so the package
// sentinels work with errors.Is regardless of code or message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidEmailFormat = &Error{
		Kind:    KindInvalidEmailFormat,
		Code:    "backend/invalid-email",
		Message: "The provided email has an invalid format",
	}
	ErrMissingCredential = &Error{
		Kind:    KindMissingCredential,
		Code:    "backend/missing-credential",
		Message: "Authorization bearer token not found on request",
	}
	// ErrInvalidCredential deliberately carries no detail about why
	// verification failed.
	ErrInvalidCredential = &Error{
		Kind:    KindInvalidCredential,
		Code:    "backend/invalid-credential",
		Message: "Invalid or expired credential",
	}
	ErrIdentityNotFound = &Error{
		Kind:    KindIdentityNotFound,
		Code:    "backend/identity-not-found",
		Message: "No user record found for the given identifier",
	}
	ErrForbidden = &Error{
		Kind:    KindForbidden,
		Code:    "backend/forbidden",
		Message: "Not allowed to modify this resource",
	}
	ErrNotFound = &Error{
		Kind:    KindNotFound,
		Code:    "backend/not-found",
		Message: "Resource not found",
	}
)

// InvalidInput returns a KindInvalidInput error with the given message.
func InvalidInput(format string, args ...any) *Error {
	return &Error{
		Kind:    KindInvalidInput,
		Code:    "backend/invalid-input",
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the Kind of err, or "" when err is not a gateway error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// ProviderError is what a Provider returns when the identity provider answered
// a request with an error. Code is the provider's native error code.
type ProviderError struct {
	Code    string
	Message string
	Status  int // HTTP status returned by the provider, 0 if unknown
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("identity provider error %s: %s", e.Code, e.Message)
}

// translate maps whatever a Provider returned into the gateway taxonomy. It is
// the only place that knows the provider's error vocabulary.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}

	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}

	var pe *ProviderError
	if !errors.As(err, &pe) {
		// Transport failure, timeout or cancellation: the provider never answered.
		return &Error{
			Kind:    KindProviderUnavailable,
			Code:    "backend/provider-unavailable",
			Message: "Identity provider unavailable",
			Err:     fmt.Errorf("%s: %w", op, err),
		}
	}

	code := strings.ToUpper(strings.TrimSpace(pe.Code))
	switch code {
	case "USER_NOT_FOUND", "AUTH/USER-NOT-FOUND":
		return &Error{Kind: KindIdentityNotFound, Code: pe.Code, Message: ErrIdentityNotFound.Message, Err: pe}
	case "INVALID_ID_TOKEN", "TOKEN_EXPIRED", "USER_DISABLED", "CREDENTIAL_TOO_OLD_LOGIN_AGAIN",
		"INVALID_CREDENTIAL", "AUTH/ID-TOKEN-EXPIRED", "AUTH/ID-TOKEN-REVOKED", "AUTH/ARGUMENT-ERROR":
		return &Error{Kind: KindInvalidCredential, Code: ErrInvalidCredential.Code, Message: ErrInvalidCredential.Message, Err: pe}
	case "INVALID_EMAIL", "AUTH/INVALID-EMAIL":
		return &Error{Kind: KindInvalidEmailFormat, Code: pe.Code, Message: ErrInvalidEmailFormat.Message, Err: pe}
	}

	if pe.Status >= http.StatusInternalServerError {
		return &Error{
			Kind:    KindProviderUnavailable,
			Code:    pe.Code,
			Message: "Identity provider unavailable",
			Err:     fmt.Errorf("%s: %w", op, pe),
		}
	}

	// Duplicate email, weak password, quota and anything else the provider
	// declined: code and message are passed through verbatim.
	return &Error{Kind: KindProviderRejected, Code: pe.Code, Message: pe.Message, Err: pe}
}
