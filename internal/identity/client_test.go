package identity_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatemosphere/movies-backend/internal/identity"
	"github.com/hatemosphere/movies-backend/internal/identity/identitytest"
)

func ptr[T any](v T) *T { return &v }

func TestCreateIdentity_InvalidEmailNeverCallsProvider(t *testing.T) {
	for _, email := range []string{"not-an-email", "a@b", "", "a b@c.com"} {
		fake := identitytest.New()
		client := identity.NewClient(fake)

		_, err := client.CreateIdentity(context.Background(), identity.CreateRequest{Email: email, Password: "x"})
		require.ErrorIs(t, err, identity.ErrInvalidEmailFormat, "email %q", email)
		assert.Equal(t, 0, fake.TotalCalls(), "email %q reached the provider", email)
	}
}

func TestCreateIdentity_Success(t *testing.T) {
	fake := identitytest.New()
	client := identity.NewClient(fake)

	id, err := client.CreateIdentity(context.Background(), identity.CreateRequest{
		Email: "u@test.com", Password: "x", DisplayName: "U",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id.UID)
	assert.Equal(t, "u@test.com", id.Email)
	assert.Equal(t, "U", id.DisplayName)
	assert.Equal(t, 1, fake.Calls("create"))
}

func TestCreateIdentity_DuplicatePassesProviderCodeThrough(t *testing.T) {
	fake := identitytest.New()
	client := identity.NewClient(fake)
	ctx := context.Background()

	_, err := client.CreateIdentity(ctx, identity.CreateRequest{Email: "u@test.com", Password: "x"})
	require.NoError(t, err)

	_, err = client.CreateIdentity(ctx, identity.CreateRequest{Email: "u@test.com", Password: "y"})
	var ge *identity.Error
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, identity.KindProviderRejected, ge.Kind)
	assert.Equal(t, "EMAIL_EXISTS", ge.Code)
	assert.Contains(t, ge.Message, "already in use")
}

func TestCreateIdentity_TransportFailureIsUnavailable(t *testing.T) {
	fake := identitytest.New()
	fake.Fail("create", context.DeadlineExceeded)
	client := identity.NewClient(fake)

	_, err := client.CreateIdentity(context.Background(), identity.CreateRequest{Email: "u@test.com", Password: "x"})
	assert.Equal(t, identity.KindProviderUnavailable, identity.KindOf(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestVerifyCredential_Idempotent(t *testing.T) {
	fake := identitytest.New()
	client := identity.NewClient(fake)
	ctx := context.Background()

	created, err := client.CreateIdentity(ctx, identity.CreateRequest{Email: "u@test.com", Password: "x"})
	require.NoError(t, err)
	tok := fake.Token(created.UID, time.Hour, nil)

	first, err := client.VerifyCredential(ctx, tok)
	require.NoError(t, err)
	second, err := client.VerifyCredential(ctx, tok)
	require.NoError(t, err)

	assert.Equal(t, created.UID, first.UID)
	assert.Equal(t, first.UID, second.UID)
	assert.Equal(t, "u@test.com", first.Email)
}

func TestVerifyCredential_ExpiredOrTampered(t *testing.T) {
	fake := identitytest.New()
	client := identity.NewClient(fake)
	ctx := context.Background()

	expired := fake.Token("uid-1", -time.Minute, nil)

	valid := fake.Token("uid-1", time.Hour, nil)
	parts := strings.Split(valid, ".")
	require.Len(t, parts, 3)
	forged := fake.Token("uid-2", time.Hour, nil)
	tampered := parts[0] + "." + strings.Split(forged, ".")[1] + "." + parts[2]

	for name, tok := range map[string]string{
		"expired":   expired,
		"tampered":  tampered,
		"malformed": "not.a.jwt",
		"garbage":   "abc",
	} {
		t.Run(name, func(t *testing.T) {
			got, err := client.VerifyCredential(ctx, tok)
			assert.Nil(t, got)
			require.ErrorIs(t, err, identity.ErrInvalidCredential)

			var ge *identity.Error
			require.ErrorAs(t, err, &ge)
			assert.Equal(t, identity.ErrInvalidCredential.Message, ge.Message, "failure detail must not leak")
		})
	}
}

func TestVerifyCredential_ProviderFailureCollapses(t *testing.T) {
	fake := identitytest.New()
	fake.Fail("verify", &identity.ProviderError{Code: "INVALID_ID_TOKEN", Status: 400})
	client := identity.NewClient(fake)

	_, err := client.VerifyCredential(context.Background(), "whatever")
	assert.ErrorIs(t, err, identity.ErrInvalidCredential)
}

func TestVerifyCredential_RevocationCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("deleted account", func(t *testing.T) {
		fake := identitytest.New()
		client := identity.NewClient(fake, identity.WithRevocationCheck(time.Minute))
		created, err := client.CreateIdentity(ctx, identity.CreateRequest{Email: "u@test.com", Password: "x"})
		require.NoError(t, err)
		tok := fake.Token(created.UID, time.Hour, nil)

		_, err = client.VerifyCredential(ctx, tok)
		require.NoError(t, err)

		require.NoError(t, client.DeleteIdentity(ctx, created.UID))
		_, err = client.VerifyCredential(ctx, tok)
		assert.ErrorIs(t, err, identity.ErrInvalidCredential)
	})

	t.Run("disabled account", func(t *testing.T) {
		fake := identitytest.New()
		fake.Seed(identity.Identity{UID: "uid-d", Email: "d@test.com", Disabled: true})
		client := identity.NewClient(fake, identity.WithRevocationCheck(time.Minute))

		_, err := client.VerifyCredential(ctx, fake.Token("uid-d", time.Hour, nil))
		assert.ErrorIs(t, err, identity.ErrInvalidCredential)
	})

	t.Run("revoked tokens", func(t *testing.T) {
		fake := identitytest.New()
		fake.Seed(identity.Identity{UID: "uid-r", Email: "r@test.com"})
		client := identity.NewClient(fake, identity.WithRevocationCheck(time.Minute))
		tok := fake.Token("uid-r", time.Hour, nil)
		fake.Revoke("uid-r")

		_, err := client.VerifyCredential(ctx, tok)
		assert.ErrorIs(t, err, identity.ErrInvalidCredential)
	})

	t.Run("account lookups are cached", func(t *testing.T) {
		fake := identitytest.New()
		fake.Seed(identity.Identity{UID: "uid-c", Email: "c@test.com"})
		client := identity.NewClient(fake, identity.WithRevocationCheck(time.Minute))
		tok := fake.Token("uid-c", time.Hour, nil)

		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := client.VerifyCredential(ctx, tok)
				assert.NoError(t, err)
			}()
		}
		wg.Wait()
		_, err := client.VerifyCredential(ctx, tok)
		require.NoError(t, err)

		assert.LessOrEqual(t, fake.Calls("lookup"), 10)
		before := fake.Calls("lookup")
		_, _ = client.VerifyCredential(ctx, tok)
		assert.Equal(t, before, fake.Calls("lookup"), "warm cache must not hit the provider")
	})

	t.Run("provider outage is not a credential failure", func(t *testing.T) {
		fake := identitytest.New()
		fake.Seed(identity.Identity{UID: "uid-o", Email: "o@test.com"})
		fake.Fail("lookup", errors.New("connection reset"))
		client := identity.NewClient(fake, identity.WithRevocationCheck(time.Minute))

		_, err := client.VerifyCredential(ctx, fake.Token("uid-o", time.Hour, nil))
		assert.Equal(t, identity.KindProviderUnavailable, identity.KindOf(err))
	})
}

func TestUpdateIdentity_Partial(t *testing.T) {
	fake := identitytest.New()
	client := identity.NewClient(fake)
	ctx := context.Background()

	created, err := client.CreateIdentity(ctx, identity.CreateRequest{Email: "u@test.com", Password: "x", DisplayName: "U"})
	require.NoError(t, err)

	updated, err := client.UpdateIdentity(ctx, created.UID, identity.Patch{DisplayName: ptr("U2")})
	require.NoError(t, err)
	assert.Equal(t, "U2", updated.DisplayName)
	assert.Equal(t, "u@test.com", updated.Email, "unspecified fields stay untouched")
}

func TestUpdateIdentity_Errors(t *testing.T) {
	fake := identitytest.New()
	client := identity.NewClient(fake)
	ctx := context.Background()

	_, err := client.UpdateIdentity(ctx, "uid-x", identity.Patch{Email: ptr("a@b")})
	require.ErrorIs(t, err, identity.ErrInvalidEmailFormat)
	assert.Equal(t, 0, fake.TotalCalls())

	_, err = client.UpdateIdentity(ctx, "uid-x", identity.Patch{})
	assert.Equal(t, identity.KindInvalidInput, identity.KindOf(err))

	_, err = client.UpdateIdentity(ctx, "missing", identity.Patch{DisplayName: ptr("n")})
	assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
}

func TestDeleteIdentity_Twice(t *testing.T) {
	fake := identitytest.New()
	client := identity.NewClient(fake)
	ctx := context.Background()

	created, err := client.CreateIdentity(ctx, identity.CreateRequest{Email: "u@test.com", Password: "x"})
	require.NoError(t, err)

	require.NoError(t, client.DeleteIdentity(ctx, created.UID))
	err = client.DeleteIdentity(ctx, created.UID)
	require.ErrorIs(t, err, identity.ErrIdentityNotFound)
	assert.Equal(t, 2, fake.Calls("delete"))
}
