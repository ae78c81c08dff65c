package identity

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"a@b.com", true},
		{"first.last+tag@sub.example.co.uk", true},
		{"u@test.com", true},
		{"not-an-email", false},
		{"a@b", false},
		{"", false},
		{"@b.com", false},
		{"a@@b.com", false},
		{"a@b@c.com", false},
		{"a b@c.com", false},
		{"a@b .com", false},
		{"a@b.com ", false},
		{"a\t@b.com", false},
		{"a@.com", false},
		{"a@b.", false},
		{"a@b..com", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ValidateEmail(tc.in), "ValidateEmail(%q)", tc.in)
	}
}

func TestValidateSignup(t *testing.T) {
	require.NoError(t, ValidateSignup(SignupForm{Email: "u@test.com", Password: "x", DisplayName: "U"}))

	err := ValidateSignup(SignupForm{Email: "not-an-email", Password: "x"})
	assert.ErrorIs(t, err, ErrInvalidEmailFormat)

	err = ValidateSignup(SignupForm{Email: "u@test.com"})
	assert.Equal(t, KindInvalidInput, KindOf(err))

	err = ValidateSignup(SignupForm{Password: "x"})
	assert.Equal(t, KindInvalidInput, KindOf(err), "a missing email is a missing field, not a format error")
}

func TestValidateProfileUpdate(t *testing.T) {
	name := "U2"
	bad := "a@b"
	empty := ""
	verified := true

	require.NoError(t, ValidateProfileUpdate(ProfileForm{DisplayName: &name}))
	require.NoError(t, ValidateProfileUpdate(ProfileForm{EmailVerified: &verified}))

	assert.Equal(t, KindInvalidInput, KindOf(ValidateProfileUpdate(ProfileForm{})))
	assert.ErrorIs(t, ValidateProfileUpdate(ProfileForm{Email: &bad}), ErrInvalidEmailFormat)
	assert.Equal(t, KindInvalidInput, KindOf(ValidateProfileUpdate(ProfileForm{Email: &empty})))
}

func TestTranslate(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantKind Kind
		wantCode string
	}{
		{"not found", &ProviderError{Code: "USER_NOT_FOUND", Status: 400}, KindIdentityNotFound, "USER_NOT_FOUND"},
		{"expired token", &ProviderError{Code: "TOKEN_EXPIRED", Status: 400}, KindInvalidCredential, ErrInvalidCredential.Code},
		{"invalid email", &ProviderError{Code: "INVALID_EMAIL", Status: 400}, KindInvalidEmailFormat, "INVALID_EMAIL"},
		{"duplicate", &ProviderError{Code: "EMAIL_EXISTS", Message: "in use", Status: 400}, KindProviderRejected, "EMAIL_EXISTS"},
		{"quota", &ProviderError{Code: "QUOTA_EXCEEDED", Status: 429}, KindProviderRejected, "QUOTA_EXCEEDED"},
		{"provider 503", &ProviderError{Code: "UNAVAILABLE", Status: 503}, KindProviderUnavailable, "UNAVAILABLE"},
		{"transport", errors.New("dial tcp: connection refused"), KindProviderUnavailable, "backend/provider-unavailable"},
		{"already translated", ErrForbidden, KindForbidden, ErrForbidden.Code},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := translate("op", tc.err)
			var ge *Error
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, tc.wantKind, ge.Kind)
			assert.Equal(t, tc.wantCode, ge.Code)
		})
	}

	assert.NoError(t, translate("op", nil))
}

func TestTranslate_RejectedPassesMessageThrough(t *testing.T) {
	err := translate("create", &ProviderError{Code: "WEAK_PASSWORD", Message: "Password should be at least 6 characters", Status: 400})
	var ge *Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "Password should be at least 6 characters", ge.Message)
	assert.Equal(t, http.StatusInternalServerError, ge.Kind.HTTPStatus())
}

func TestKindHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, KindInvalidEmailFormat.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, KindInvalidInput.HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, KindMissingCredential.HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, KindInvalidCredential.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, KindForbidden.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, KindIdentityNotFound.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, KindNotFound.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindProviderRejected.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, KindProviderUnavailable.HTTPStatus())
}

func TestAuthenticatedContext_HasClaim(t *testing.T) {
	a := &AuthenticatedContext{Claims: map[string]any{"admin": true, "editor": "true", "viewer": "no", "n": 1.0}}
	assert.True(t, a.HasClaim("admin"))
	assert.True(t, a.HasClaim("editor"))
	assert.False(t, a.HasClaim("viewer"))
	assert.False(t, a.HasClaim("n"))
	assert.False(t, a.HasClaim("missing"))
	assert.False(t, a.HasClaim(""))

	var nilCtx *AuthenticatedContext
	assert.False(t, nilCtx.HasClaim("admin"))
}
