package core

import (
	"context"
	"fmt"

	"github.com/chatia/server/internal/auth"
	"github.com/chatia/server/internal/store"
)

// IdentityService maps verified external identities to local user records.
type IdentityService struct {
	dbStore     *store.SQLiteStore
	adminEmails map[string]bool
}

func NewIdentityService(db *store.SQLiteStore, adminEmails []string) *IdentityService {
	admins := make(map[string]bool, len(adminEmails))
	for _, email := range adminEmails {
		if email != "" {
			admins[email] = true
		}
	}
	return &IdentityService{dbStore: db, adminEmails: admins}
}

// Resolve finds or creates the local user for a verified external identity.
// Lookup order: external id, then email (so a user whose provider identity
// changed keeps their account, with the stored external id re-linked), then
// creation. Name and avatar are refreshed from the provider on every login.
func (s *IdentityService) Resolve(ctx context.Context, ident *auth.Identity) (*store.User, error) {
	user, err := s.dbStore.GetUserByGoogleID(ctx, ident.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user by external id: %w", err)
	}

	if user == nil {
		user, err = s.dbStore.GetUserByEmail(ctx, ident.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user by email: %w", err)
		}
		if user != nil && user.GoogleID != ident.ExternalID {
			if err := s.dbStore.LinkGoogleID(ctx, user.ID, ident.ExternalID); err != nil {
				return nil, err
			}
			user.GoogleID = ident.ExternalID
		}
	}

	if user == nil {
		user = &store.User{
			GoogleID:  ident.ExternalID,
			Email:     ident.Email,
			Name:      ident.Name,
			AvatarURL: ident.AvatarURL,
			IsAdmin:   s.adminEmails[ident.Email],
		}
		if err := s.dbStore.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return user, nil
	}

	if user.Name != ident.Name || user.AvatarURL != ident.AvatarURL {
		if err := s.dbStore.UpdateUserProfile(ctx, user.ID, ident.Name, ident.AvatarURL); err != nil {
			return nil, err
		}
		user.Name = ident.Name
		user.AvatarURL = ident.AvatarURL
	}
	return user, nil
}

// UpdateProfile applies a user-initiated profile change. Empty fields are
// left untouched.
func (s *IdentityService) UpdateProfile(ctx context.Context, user *store.User, name, avatarURL string) error {
	if name == "" {
		name = user.Name
	}
	if avatarURL == "" {
		avatarURL = user.AvatarURL
	}
	if err := s.dbStore.UpdateUserProfile(ctx, user.ID, name, avatarURL); err != nil {
		return err
	}
	user.Name = name
	user.AvatarURL = avatarURL
	return nil
}
