package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Client is the only component that talks to the identity provider. It runs
// input validation before provider calls and translates every provider
// failure into the gateway error taxonomy. Safe for concurrent use.
type Client struct {
	provider Provider
	accounts *accountCache // nil when the revocation check is off
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRevocationCheck makes VerifyCredential confirm that the account behind a
// valid token still exists, is enabled and has not revoked the token. Account
// records are cached for ttl.
func WithRevocationCheck(ttl time.Duration) ClientOption {
	return func(c *Client) {
		c.accounts = newAccountCache(c.lookup, ttl)
	}
}

// NewClient wraps provider.
func NewClient(provider Provider, opts ...ClientOption) *Client {
	c := &Client{provider: provider}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateIdentity creates a new identity. A malformed email fails with
// ErrInvalidEmailFormat without contacting the provider.
func (c *Client) CreateIdentity(ctx context.Context, req CreateRequest) (*Identity, error) {
	if !ValidateEmail(req.Email) {
		return nil, ErrInvalidEmailFormat
	}
	if req.Password == "" {
		return nil, InvalidInput("password is required")
	}

	start := time.Now()
	created, err := c.provider.Create(ctx, req)
	err = translate("create", err)
	observe("create", start, err)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// VerifyCredential verifies a raw bearer token. Every verification failure
// collapses into ErrInvalidCredential; the cause is kept for logging only.
func (c *Client) VerifyCredential(ctx context.Context, rawToken string) (*AuthenticatedContext, error) {
	if rawToken == "" {
		return nil, ErrMissingCredential
	}

	start := time.Now()
	tok, err := c.provider.Verify(ctx, rawToken)
	if err == nil && (tok == nil || tok.UID == "") {
		err = errors.New("verified token carries no uid")
	}
	if err != nil {
		err = invalidCredential(err)
		observe("verify", start, err)
		return nil, err
	}
	observe("verify", start, nil)

	if c.accounts != nil {
		if err := c.checkRevocation(ctx, tok); err != nil {
			return nil, err
		}
	}

	return &AuthenticatedContext{
		UID:       tok.UID,
		Email:     tok.Email,
		Claims:    tok.Claims,
		IssuedAt:  tok.IssuedAt,
		ExpiresAt: tok.ExpiresAt,
	}, nil
}

func (c *Client) checkRevocation(ctx context.Context, tok *Token) error {
	account, err := c.accounts.Get(ctx, tok.UID)
	switch {
	case errors.Is(err, ErrIdentityNotFound):
		return invalidCredential(err)
	case err != nil:
		return err
	case account.Disabled:
		return invalidCredential(errors.New("account disabled"))
	case !account.ValidSince.IsZero() && tok.IssuedAt.Before(account.ValidSince):
		return invalidCredential(errors.New("token issued before account revocation"))
	}
	return nil
}

// UpdateIdentity applies the non-nil fields of patch to uid.
func (c *Client) UpdateIdentity(ctx context.Context, uid string, patch Patch) (*Identity, error) {
	if patch.Email != nil && !ValidateEmail(*patch.Email) {
		return nil, ErrInvalidEmailFormat
	}
	if patch.Empty() {
		return nil, InvalidInput("nothing to update")
	}

	start := time.Now()
	updated, err := c.provider.Update(ctx, uid, patch)
	err = translate("update", err)
	observe("update", start, err)
	if err != nil {
		return nil, err
	}
	c.invalidate(uid)
	return updated, nil
}

// DeleteIdentity deletes uid. Deleting an identity that no longer exists
// fails with IdentityNotFound.
func (c *Client) DeleteIdentity(ctx context.Context, uid string) error {
	start := time.Now()
	err := translate("delete", c.provider.Delete(ctx, uid))
	observe("delete", start, err)
	if err == nil || errors.Is(err, ErrIdentityNotFound) {
		c.invalidate(uid)
	}
	return err
}

func (c *Client) lookup(ctx context.Context, uid string) (*Identity, error) {
	start := time.Now()
	account, err := c.provider.Lookup(ctx, uid)
	err = translate("lookup", err)
	observe("lookup", start, err)
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (c *Client) invalidate(uid string) {
	if c.accounts != nil {
		c.accounts.Invalidate(uid)
	}
}

func invalidCredential(cause error) *Error {
	slog.Debug("credential rejected", "reason", cause)
	return &Error{
		Kind:    KindInvalidCredential,
		Code:    ErrInvalidCredential.Code,
		Message: ErrInvalidCredential.Message,
		Err:     cause,
	}
}
