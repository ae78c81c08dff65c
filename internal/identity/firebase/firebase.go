// Package firebase implements identity.Provider on top of Firebase
// Authentication through the Identity Toolkit REST API.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"

	"github.com/hatemosphere/movies-backend/internal/identity"
)

const (
	cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

	// Firebase ID tokens are signed by this service account's rotating keys.
	securetokenJWKS = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
)

// Config configures the Firebase provider.
type Config struct {
	ProjectID       string
	CredentialsFile string        // service account JSON; empty = Application Default Credentials
	Endpoint        string        // Identity Toolkit base URL override (tests, emulators)
	Timeout         time.Duration // per-call HTTP timeout; 0 = 10s
	// Verifier overrides ID token verification. Nil means tokens are checked
	// against the securetoken JWKS for ProjectID.
	Verifier identity.TokenVerifier
}

// Provider talks to Firebase Authentication.
type Provider struct {
	rp       *identitytoolkit.RelyingpartyService
	verifier identity.TokenVerifier
}

var _ identity.Provider = (*Provider)(nil)

// New creates a Provider. Admin calls are authenticated with the service
// account in CredentialsFile, or with Application Default Credentials.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.ProjectID == "" {
		return nil, errors.New("firebase project id is required")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	var opts []option.ClientOption
	switch {
	case cfg.Endpoint != "" && cfg.CredentialsFile == "":
		opts = append(opts, option.WithoutAuthentication(), option.WithHTTPClient(&http.Client{Timeout: timeout}))
	case cfg.CredentialsFile != "":
		jsonKey, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account key: %w", err)
		}
		creds, err := google.CredentialsFromJSON(ctx, jsonKey, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("parse service account key: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	default:
		creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("find default credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	srv, err := identitytoolkit.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create identitytoolkit service: %w", err)
	}

	verifier := cfg.Verifier
	if verifier == nil {
		verifier, err = identity.NewOIDCVerifier(ctx, identity.OIDCConfig{
			Issuer:   "https://securetoken.google.com/" + cfg.ProjectID,
			Audience: cfg.ProjectID,
			JWKSURL:  securetokenJWKS,
		})
		if err != nil {
			return nil, err
		}
	}

	return &Provider{rp: srv.Relyingparty, verifier: verifier}, nil
}

func (p *Provider) Create(ctx context.Context, req identity.CreateRequest) (*identity.Identity, error) {
	resp, err := p.rp.SignupNewUser(&identitytoolkit.IdentitytoolkitRelyingpartySignupNewUserRequest{
		Email:         req.Email,
		Password:      req.Password,
		DisplayName:   req.DisplayName,
		EmailVerified: req.EmailVerified,
		PhotoUrl:      req.PhotoURL,
	}).Context(ctx).Do()
	if err != nil {
		return nil, providerError(err)
	}
	return &identity.Identity{
		UID:           resp.LocalId,
		Email:         resp.Email,
		DisplayName:   resp.DisplayName,
		EmailVerified: req.EmailVerified,
		PhotoURL:      req.PhotoURL,
	}, nil
}

// Verify checks the ID token locally against the provider's signing keys.
func (p *Provider) Verify(ctx context.Context, token string) (*identity.Token, error) {
	return p.verifier.Verify(ctx, token)
}

// Update sends only the fields set in patch, then reads back the full record.
func (p *Provider) Update(ctx context.Context, uid string, patch identity.Patch) (*identity.Identity, error) {
	req := &identitytoolkit.IdentitytoolkitRelyingpartySetAccountInfoRequest{LocalId: uid}
	if patch.Email != nil {
		req.Email = *patch.Email
	}
	if patch.DisplayName != nil {
		if *patch.DisplayName == "" {
			req.DeleteAttribute = append(req.DeleteAttribute, "DISPLAY_NAME")
		} else {
			req.DisplayName = *patch.DisplayName
		}
	}
	if patch.PhotoURL != nil {
		if *patch.PhotoURL == "" {
			req.DeleteAttribute = append(req.DeleteAttribute, "PHOTO_URL")
		} else {
			req.PhotoUrl = *patch.PhotoURL
		}
	}
	if patch.EmailVerified != nil {
		req.EmailVerified = *patch.EmailVerified
		req.ForceSendFields = append(req.ForceSendFields, "EmailVerified")
	}

	if _, err := p.rp.SetAccountInfo(req).Context(ctx).Do(); err != nil {
		return nil, providerError(err)
	}
	return p.Lookup(ctx, uid)
}

func (p *Provider) Delete(ctx context.Context, uid string) error {
	_, err := p.rp.DeleteAccount(&identitytoolkit.IdentitytoolkitRelyingpartyDeleteAccountRequest{
		LocalId: uid,
	}).Context(ctx).Do()
	if err != nil {
		return providerError(err)
	}
	return nil
}

func (p *Provider) Lookup(ctx context.Context, uid string) (*identity.Identity, error) {
	resp, err := p.rp.GetAccountInfo(&identitytoolkit.IdentitytoolkitRelyingpartyGetAccountInfoRequest{
		LocalId: []string{uid},
	}).Context(ctx).Do()
	if err != nil {
		return nil, providerError(err)
	}
	if len(resp.Users) == 0 {
		return nil, &identity.ProviderError{Code: "USER_NOT_FOUND", Message: "no user record for uid " + uid, Status: http.StatusBadRequest}
	}
	u := resp.Users[0]
	out := &identity.Identity{
		UID:           u.LocalId,
		Email:         u.Email,
		DisplayName:   u.DisplayName,
		EmailVerified: u.EmailVerified,
		PhotoURL:      u.PhotoUrl,
		Disabled:      u.Disabled,
	}
	if u.ValidSince > 0 {
		out.ValidSince = time.Unix(u.ValidSince, 0)
	}
	return out, nil
}

// providerError converts an Identity Toolkit API error into an
// identity.ProviderError. Firebase puts its error code first in the message,
// optionally followed by " : " and a description. Errors without an API
// response (network, timeout) are returned unchanged.
func providerError(err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return err
	}
	code, msg, found := strings.Cut(gerr.Message, " : ")
	code = strings.TrimSpace(code)
	if !found {
		msg = code
	}
	if code == "" {
		code = http.StatusText(gerr.Code)
	}
	return &identity.ProviderError{Code: code, Message: msg, Status: gerr.Code}
}
