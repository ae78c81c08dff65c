// Package identitytest provides an in-memory identity.Provider for tests.
package identitytest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hatemosphere/movies-backend/internal/identity"
)

const (
	secret = "identitytest-signing-secret"
	issuer = "identitytest"
)

// Provider is an in-memory identity provider. Tokens are HS256 JWTs signed
// with a fixed secret and verified through identity.JWTVerifier, so expiry
// and tampering behave like they do against a real issuer.
type Provider struct {
	verifier *identity.JWTVerifier

	mu       sync.Mutex
	accounts map[string]*identity.Identity
	emails   map[string]string // email -> uid
	calls    map[string]int

	failures map[string]error // injected errors by operation
}

// New returns an empty provider.
func New() *Provider {
	v, err := identity.NewJWTVerifier(identity.JWTConfig{SigningKey: secret, Issuer: issuer})
	if err != nil {
		panic(err)
	}
	return &Provider{
		verifier: v,
		accounts: make(map[string]*identity.Identity),
		emails:   make(map[string]string),
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

var _ identity.Provider = (*Provider)(nil)

// Calls returns how many times op ("create", "verify", "update", "delete",
// "lookup") was invoked.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// TotalCalls returns the number of calls across all operations.
func (p *Provider) TotalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

// Fail makes every subsequent call to op return err. A nil err clears it.
func (p *Provider) Fail(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

func (p *Provider) begin(op string) error {
	p.calls[op]++
	return p.failures[op]
}

// Seed stores account directly, bypassing call counters.
func (p *Provider) Seed(account identity.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := account
	p.accounts[a.UID] = &a
	p.emails[a.Email] = a.UID
}

// Revoke marks every token of uid issued before now as revoked.
func (p *Provider) Revoke(uid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.accounts[uid]; ok {
		a.ValidSince = time.Now().Truncate(time.Second).Add(time.Second)
	}
}

// Disable sets the disabled flag of uid.
func (p *Provider) Disable(uid string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if a, ok := p.accounts[uid]; ok {
		a.Disabled = true
	}
}

// Token mints a token for uid valid for ttl. Extra claims are merged in.
func (p *Provider) Token(uid string, ttl time.Duration, extra map[string]any) string {
	p.mu.Lock()
	email := ""
	if a, ok := p.accounts[uid]; ok {
		email = a.Email
	}
	p.mu.Unlock()

	claims := jwt.MapClaims{"sub": uid, "iss": issuer}
	if email != "" {
		claims["email"] = email
	}
	if ttl < 0 {
		claims["iat"] = jwt.NewNumericDate(time.Now().Add(2 * ttl))
		claims["exp"] = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	for k, v := range extra {
		claims[k] = v
	}
	tok, err := identity.SignHS256(secret, claims, ttl)
	if err != nil {
		panic(err)
	}
	return tok
}

func (p *Provider) Create(_ context.Context, req identity.CreateRequest) (*identity.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("create"); err != nil {
		return nil, err
	}
	if _, taken := p.emails[req.Email]; taken {
		return nil, &identity.ProviderError{Code: "EMAIL_EXISTS", Message: "The email address is already in use by another account.", Status: http.StatusBadRequest}
	}
	if len(req.Password) < 1 {
		return nil, &identity.ProviderError{Code: "WEAK_PASSWORD", Message: "Password should be at least 1 character", Status: http.StatusBadRequest}
	}
	a := &identity.Identity{
		UID:           uuid.NewString(),
		Email:         req.Email,
		DisplayName:   req.DisplayName,
		EmailVerified: req.EmailVerified,
		PhotoURL:      req.PhotoURL,
	}
	p.accounts[a.UID] = a
	p.emails[a.Email] = a.UID
	out := *a
	return &out, nil
}

func (p *Provider) Verify(ctx context.Context, token string) (*identity.Token, error) {
	p.mu.Lock()
	err := p.begin("verify")
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return p.verifier.Verify(ctx, token)
}

func (p *Provider) Update(_ context.Context, uid string, patch identity.Patch) (*identity.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("update"); err != nil {
		return nil, err
	}
	a, ok := p.accounts[uid]
	if !ok {
		return nil, notFound(uid)
	}
	if patch.Email != nil && *patch.Email != a.Email {
		if _, taken := p.emails[*patch.Email]; taken {
			return nil, &identity.ProviderError{Code: "EMAIL_EXISTS", Message: "The email address is already in use by another account.", Status: http.StatusBadRequest}
		}
		delete(p.emails, a.Email)
		a.Email = *patch.Email
		p.emails[a.Email] = uid
	}
	if patch.DisplayName != nil {
		a.DisplayName = *patch.DisplayName
	}
	if patch.EmailVerified != nil {
		a.EmailVerified = *patch.EmailVerified
	}
	if patch.PhotoURL != nil {
		a.PhotoURL = *patch.PhotoURL
	}
	out := *a
	return &out, nil
}

func (p *Provider) Delete(_ context.Context, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("delete"); err != nil {
		return err
	}
	a, ok := p.accounts[uid]
	if !ok {
		return notFound(uid)
	}
	delete(p.emails, a.Email)
	delete(p.accounts, uid)
	return nil
}

func (p *Provider) Lookup(_ context.Context, uid string) (*identity.Identity, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.begin("lookup"); err != nil {
		return nil, err
	}
	a, ok := p.accounts[uid]
	if !ok {
		return nil, notFound(uid)
	}
	out := *a
	return &out, nil
}

// Get returns a copy of the stored account without counting a call.
func (p *Provider) Get(uid string) (identity.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.accounts[uid]
	if !ok {
		return identity.Identity{}, false
	}
	return *a, true
}

func notFound(uid string) error {
	return &identity.ProviderError{
		Code:    "USER_NOT_FOUND",
		Message: fmt.Sprintf("no user record for uid %s", uid),
		Status:  http.StatusBadRequest,
	}
}
