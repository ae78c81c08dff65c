package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/hatemosphere/movies-backend/internal/audit"
	"github.com/hatemosphere/movies-backend/internal/identity"
)

// OwnerLookup returns the uid owning the resource a request targets, or an
// error matching identity.ErrNotFound when the resource does not exist.
type OwnerLookup func(ctx context.Context) (ownerUID string, err error)

// Policy decides whether an authenticated caller may mutate a resource.
type Policy struct {
	adminClaim  string
	adminUIDs   map[string]struct{}
	adminEmails map[string]struct{}
}

// NewPolicy creates a Policy. A nil config means only the default admin claim
// grants moderation rights.
func NewPolicy(cfg *PolicyConfig) *Policy {
	p := &Policy{
		adminClaim:  DefaultAdminClaim,
		adminUIDs:   make(map[string]struct{}),
		adminEmails: make(map[string]struct{}),
	}
	if cfg == nil {
		return p
	}
	if cfg.AdminClaim != "" {
		p.adminClaim = cfg.AdminClaim
	}
	for _, uid := range cfg.AdminUIDs {
		p.adminUIDs[uid] = struct{}{}
	}
	for _, email := range cfg.AdminEmails {
		p.adminEmails[strings.ToLower(email)] = struct{}{}
	}
	return p
}

// IsAdmin reports whether the caller may act on resources owned by others.
func (p *Policy) IsAdmin(a *identity.AuthenticatedContext) bool {
	if a == nil {
		return false
	}
	if a.HasClaim(p.adminClaim) {
		return true
	}
	if _, ok := p.adminUIDs[a.UID]; ok {
		return true
	}
	if a.Email != "" {
		if _, ok := p.adminEmails[strings.ToLower(a.Email)]; ok {
			return true
		}
	}
	return false
}

// RequireOwner passes when the caller owns the resource returned by lookup,
// or is an admin. resource names the target in audit entries.
//
// Non-admin callers get Forbidden both for resources owned by someone else
// and for resources that do not exist, so the response does not reveal which
// identifiers are valid. Admins get NotFound for missing resources.
func (p *Policy) RequireOwner(resource string, lookup OwnerLookup) Stage {
	return func(ctx context.Context) (context.Context, error) {
		caller := identity.FromContext(ctx)
		if caller == nil {
			return ctx, identity.ErrMissingCredential
		}
		admin := p.IsAdmin(caller)

		owner, err := lookup(ctx)
		switch {
		case errors.Is(err, identity.ErrNotFound):
			if admin {
				return ctx, identity.ErrNotFound
			}
			p.deny(caller, resource, "", "resource_not_found")
			return ctx, identity.ErrForbidden
		case err != nil:
			return ctx, err
		}

		if owner == caller.UID {
			return ctx, nil
		}
		if admin {
			slog.Debug("ownership bypass: caller is admin", "uid", caller.UID, "resource", resource)
			audit.Event{
				Actor:       caller.UID,
				Action:      "moderate",
				Status:      "granted",
				Resource:    resource,
				Owner:       owner,
				Reason:      "admin",
				Fingerprint: caller.Fingerprint,
			}.Info("Audit Log: Admin Override")
			return ctx, nil
		}
		p.deny(caller, resource, owner, "not_owner")
		return ctx, identity.ErrForbidden
	}
}

func (p *Policy) deny(caller *identity.AuthenticatedContext, resource, owner, reason string) {
	audit.Event{
		Actor:       caller.UID,
		Action:      "ownership_check",
		Status:      "denied",
		Resource:    resource,
		Owner:       owner,
		HTTPStatus:  identity.KindForbidden.HTTPStatus(),
		Reason:      reason,
		Fingerprint: caller.Fingerprint,
	}.Warn("Audit Log: Access Denied")
}
