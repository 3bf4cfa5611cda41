package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/collabgrow/collabgrow/internal/apperror"
	"github.com/collabgrow/collabgrow/internal/model"
)

func newProfileService() (*ProfileService, *memStore) {
	store := newMemStore()
	return NewProfileService(store, discardLogger()), store
}

// =========================================================================
// SUBMIT
// =========================================================================

func TestSubmit_AnonymousCreatesByEmail(t *testing.T) {
	svc, store := newProfileService()

	p, created, err := svc.Submit(context.Background(), nil, model.Profile{
		Name:  "Ada",
		Email: "  Ada@Example.COM ",
		UID:   "spoofed",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Empty(t, p.UID, "uid from the body must be ignored")
	assert.Len(t, store.profiles, 1)
}

func TestSubmit_AnonymousRequiresEmail(t *testing.T) {
	svc, _ := newProfileService()

	_, _, err := svc.Submit(context.Background(), nil, model.Profile{Name: "Ada"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestSubmit_InvalidEmailRejected(t *testing.T) {
	svc, _ := newProfileService()

	_, _, err := svc.Submit(context.Background(), nil, model.Profile{Email: "not-an-email"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestSubmit_AnonymousReplacesAnonymous(t *testing.T) {
	svc, store := newProfileService()
	ctx := context.Background()

	first, _, err := svc.Submit(ctx, nil, model.Profile{Name: "Ada", Email: "ada@example.com", Skills: []string{"Go"}})
	require.NoError(t, err)

	second, created, err := svc.Submit(ctx, nil, model.Profile{Name: "Ada L.", Email: "ADA@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	stored := store.profiles[first.ID]
	assert.Equal(t, "Ada L.", stored.Name)
	assert.Empty(t, stored.Skills, "the whole document is replaced")
}

func TestSubmit_AnonymousCannotOverwriteLinkedProfile(t *testing.T) {
	svc, _ := newProfileService()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, &Caller{UID: "u1"}, model.Profile{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	_, _, err = svc.Submit(ctx, nil, model.Profile{Name: "Mallory", Email: "ada@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
}

func TestSubmit_SignedInKeysByUID(t *testing.T) {
	svc, store := newProfileService()
	ctx := context.Background()
	caller := &Caller{UID: "u1", Email: "Ada@Example.com"}

	first, created, err := svc.Submit(ctx, caller, model.Profile{Name: "Ada", UID: "someone-else"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "u1", first.UID)
	assert.Equal(t, "ada@example.com", first.Email, "email falls back to the token's")

	second, created, err := svc.Submit(ctx, caller, model.Profile{Name: "Ada L.", Email: "ADA@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.profiles, 1)
	assert.Equal(t, "Ada L.", store.profiles[first.ID].Name)
}

func TestSubmit_SignedInEmailMustMatchToken(t *testing.T) {
	svc, store := newProfileService()
	caller := &Caller{UID: "mallory", Email: "mallory@example.com"}

	_, _, err := svc.Submit(context.Background(), caller, model.Profile{Name: "Mallory", Email: "alice@example.com"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrForbidden))
	assert.Empty(t, store.profiles)
}

func TestSubmit_SignedInWithoutTokenEmailMayChangeEmail(t *testing.T) {
	svc, store := newProfileService()
	ctx := context.Background()
	caller := &Caller{UID: "u1"}

	first, _, err := svc.Submit(ctx, caller, model.Profile{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	second, created, err := svc.Submit(ctx, caller, model.Profile{Name: "Ada", Email: "new@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "new@example.com", store.profiles[first.ID].Email)
}

func TestSubmit_SignedInClaimsAnonymousProfile(t *testing.T) {
	svc, store := newProfileService()
	ctx := context.Background()

	anon, _, err := svc.Submit(ctx, nil, model.Profile{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	caller := &Caller{UID: "u1", Email: "ADA@example.com", EmailVerified: true}
	claimed, created, err := svc.Submit(ctx, caller, model.Profile{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, anon.ID, claimed.ID)
	assert.Equal(t, "u1", store.profiles[anon.ID].UID)
}

func TestSubmit_ClaimRequiresVerifiedMatchingEmail(t *testing.T) {
	tests := []struct {
		name   string
		caller *Caller
	}{
		{"unverified token email", &Caller{UID: "mallory", Email: "alice+dev@x.com"}},
		{"no token email", &Caller{UID: "mallory"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newProfileService()
			ctx := context.Background()

			anon, _, err := svc.Submit(ctx, nil, model.Profile{Name: "Alice", Email: "Alice+dev@X.com"})
			require.NoError(t, err)

			_, _, err = svc.Submit(ctx, tt.caller, model.Profile{Name: "Mallory", Email: "alice+dev@x.com"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrConflict))

			stored := store.profiles[anon.ID]
			assert.Equal(t, "Alice", stored.Name)
			assert.Empty(t, stored.UID)
			assert.Len(t, store.profiles, 1)
		})
	}
}

func TestSubmit_SignedInCannotTakeLinkedEmail(t *testing.T) {
	svc, store := newProfileService()
	ctx := context.Background()

	victim, _, err := svc.Submit(ctx, &Caller{UID: "u1"}, model.Profile{Name: "Ada", Email: "shared@example.com"})
	require.NoError(t, err)

	// A verified email does not help: the address already belongs to u1.
	for _, caller := range []*Caller{
		{UID: "u2"},
		{UID: "u2", Email: "shared@example.com", EmailVerified: true},
	} {
		_, _, err = svc.Submit(ctx, caller, model.Profile{Name: "Mallory", Email: "shared@example.com"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, apperror.ErrConflict))
	}

	assert.Len(t, store.profiles, 1)
	p, err := svc.GetByEmail(ctx, "shared@example.com")
	require.NoError(t, err)
	assert.Equal(t, victim.ID, p.ID)
	assert.Equal(t, "u1", p.UID)
}

func TestSubmit_StoreFailureIsWrapped(t *testing.T) {
	svc, store := newProfileService()
	store.failWith = errors.New("disk full")

	_, _, err := svc.Submit(context.Background(), &Caller{UID: "u1"}, model.Profile{Email: "a@example.com"})
	require.Error(t, err)
	assert.False(t, isDomainError(err))
	assert.Contains(t, err.Error(), "disk full")
}

// =========================================================================
// LOOKUPS
// =========================================================================

func TestGetByEmail(t *testing.T) {
	svc, _ := newProfileService()
	ctx := context.Background()

	_, _, err := svc.Submit(ctx, nil, model.Profile{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	t.Run("case insensitive", func(t *testing.T) {
		p, err := svc.GetByEmail(ctx, " ADA@Example.com")
		require.NoError(t, err)
		assert.Equal(t, "Ada", p.Name)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := svc.GetByEmail(ctx, "nobody@example.com")
		assert.True(t, errors.Is(err, apperror.ErrNotFound))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := svc.GetByEmail(ctx, "  ")
		assert.True(t, errors.Is(err, apperror.ErrValidation))
	})
}

func TestGetByUID(t *testing.T) {
	svc, _ := newProfileService()
	ctx := context.Background()

	_, err := svc.GetByUID(ctx, "")
	assert.True(t, errors.Is(err, apperror.ErrUnauthorized))

	_, err = svc.GetByUID(ctx, "u1")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	_, _, err = svc.Submit(ctx, &Caller{UID: "u1"}, model.Profile{Name: "Ada"})
	require.NoError(t, err)

	p, err := svc.GetByUID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
}
