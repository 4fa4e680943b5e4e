package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chatia/server/internal/auth"
)

func TestResolveCreatesUserOnFirstLogin(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	svc := NewIdentityService(s, []string{"root@example.com"})

	user, err := svc.Resolve(ctx, &auth.Identity{
		ExternalID: "g-1",
		Email:      "ana@example.com",
		Name:       "Ana",
		AvatarURL:  "https://example.com/ana.png",
	})
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.Equal(t, "Ana", user.Name)
	require.False(t, user.IsAdmin)

	stored, err := s.GetUserByGoogleID(ctx, "g-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, user.ID, stored.ID)
}

func TestResolveGrantsAdminByConfiguredEmail(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	svc := NewIdentityService(s, []string{"root@example.com"})

	admin, err := svc.Resolve(ctx, &auth.Identity{ExternalID: "g-1", Email: "root@example.com", Name: "Root"})
	require.NoError(t, err)
	require.True(t, admin.IsAdmin)
}

func TestResolveRefreshesProfileOnReturn(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	svc := NewIdentityService(s, nil)

	first, err := svc.Resolve(ctx, &auth.Identity{ExternalID: "g-1", Email: "ana@example.com", Name: "Ana"})
	require.NoError(t, err)

	second, err := svc.Resolve(ctx, &auth.Identity{ExternalID: "g-1", Email: "ana@example.com", Name: "Ana Maria", AvatarURL: "https://example.com/new.png"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Ana Maria", second.Name)

	stored, err := s.GetUserByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "Ana Maria", stored.Name)
	require.Equal(t, "https://example.com/new.png", stored.AvatarURL)
}

func TestResolveMatchesByEmailAndRelinks(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	svc := NewIdentityService(s, nil)

	first, err := svc.Resolve(ctx, &auth.Identity{ExternalID: "g-old", Email: "ana@example.com", Name: "Ana"})
	require.NoError(t, err)

	// Same email shows up under a new provider identity.
	second, err := svc.Resolve(ctx, &auth.Identity{ExternalID: "g-new", Email: "ana@example.com", Name: "Ana"})
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	stored, err := s.GetUserByGoogleID(ctx, "g-new")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, first.ID, stored.ID)
}

func TestUpdateProfileKeepsUnsetFields(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	svc := NewIdentityService(s, nil)

	user, err := svc.Resolve(ctx, &auth.Identity{ExternalID: "g-1", Email: "ana@example.com", Name: "Ana", AvatarURL: "https://example.com/ana.png"})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateProfile(ctx, user, "Ana M.", ""))

	stored, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "Ana M.", stored.Name)
	require.Equal(t, "https://example.com/ana.png", stored.AvatarURL)
}
