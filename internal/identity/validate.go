package identity

import (
	"errors"
	"strings"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

// ValidateEmail reports whether candidate is structurally local@domain.tld:
// exactly one "@", a non-empty local part, a domain made of at least two
// non-empty dot-separated labels, and no whitespace anywhere. Deliverability
// and uniqueness are the provider's concern.
func ValidateEmail(candidate string) bool {
	if candidate == "" || strings.IndexFunc(candidate, unicode.IsSpace) >= 0 {
		return false
	}
	local, domain, ok := strings.Cut(candidate, "@")
	if !ok || local == "" || strings.Contains(domain, "@") {
		return false
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if l == "" {
			return false
		}
	}
	return true
}

var errMalformedEmail = errors.New("malformed email")

// emailRule adapts ValidateEmail to ozzo-validation. Empty values pass so that
// Required decides whether the field may be absent.
var emailRule = validation.By(func(value any) error {
	v, isNil := validation.Indirect(value)
	if isNil {
		return nil
	}
	s, _ := v.(string)
	if s == "" || ValidateEmail(s) {
		return nil
	}
	return errMalformedEmail
})

// SignupForm is the raw signup input before it reaches the provider.
type SignupForm struct {
	Email       string `json:"email"`
	Password    string `json:"password"` //nolint:gosec // field name, not a credential
	DisplayName string `json:"displayName"`
}

// ValidateSignup checks a signup form. A malformed email yields
// ErrInvalidEmailFormat, any other problem an InvalidInput error.
func ValidateSignup(f SignupForm) error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Email, validation.Required, emailRule),
		validation.Field(&f.Password, validation.Required, validation.Length(1, 4096)),
		validation.Field(&f.DisplayName, validation.Length(0, 256)),
	)
	return formError(err)
}

// ProfileForm is the raw input of a profile update. Nil fields are left
// untouched.
type ProfileForm struct {
	Email         *string `json:"email"`
	DisplayName   *string `json:"displayName"`
	EmailVerified *bool   `json:"emailVerified"`
}

// ValidateProfileUpdate checks a profile update form; at least one field must be set.
func ValidateProfileUpdate(f ProfileForm) error {
	if f.Email == nil && f.DisplayName == nil && f.EmailVerified == nil {
		return InvalidInput("at least one of email, displayName or emailVerified is required")
	}
	err := validation.ValidateStruct(&f,
		validation.Field(&f.Email, validation.NilOrNotEmpty, emailRule),
		validation.Field(&f.DisplayName, validation.Length(0, 256)),
	)
	return formError(err)
}

func formError(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if errors.As(err, &errs) {
		if errors.Is(errs["email"], errMalformedEmail) {
			return ErrInvalidEmailFormat
		}
		return InvalidInput("%s", errs.Error())
	}
	return InvalidInput("%s", err.Error())
}
