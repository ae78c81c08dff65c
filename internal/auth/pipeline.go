package auth

import (
	"context"

	"github.com/hatemosphere/movies-backend/internal/identity"
)

// Stage is one step of a request's authorization pipeline. It returns the
// context for the next stage, or an error that ends the pipeline.
type Stage func(ctx context.Context) (context.Context, error)

// Run executes stages in order and stops at the first failure. The returned
// context carries whatever the successful stages attached.
func Run(ctx context.Context, stages ...Stage) (context.Context, error) {
	for _, stage := range stages {
		next, err := stage(ctx)
		if err != nil {
			return ctx, err
		}
		ctx = next
	}
	return ctx, nil
}

// RequireAuthenticated passes only when an earlier stage (or the guard
// middleware) attached an AuthenticatedContext. Account routes act on the
// caller's own identity, so this is their whole ownership check.
func RequireAuthenticated() Stage {
	return func(ctx context.Context) (context.Context, error) {
		if identity.FromContext(ctx) == nil {
			return ctx, identity.ErrMissingCredential
		}
		return ctx, nil
	}
}
