package core

import (
	"context"
	"fmt"

	"github.com/chatia/server/internal/store"
)

// AccessGate decides whether a user may read or write a chat. Membership is
// the only grant for writing; administrators may additionally read any chat.
type AccessGate struct {
	dbStore *store.SQLiteStore
}

func NewAccessGate(db *store.SQLiteStore) *AccessGate {
	return &AccessGate{dbStore: db}
}

func (g *AccessGate) CanRead(ctx context.Context, user *store.User, chatID string) (bool, error) {
	if user.IsAdmin {
		return true, nil
	}
	member, err := g.dbStore.IsMember(ctx, user.ID, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return member, nil
}

func (g *AccessGate) CanWrite(ctx context.Context, user *store.User, chatID string) (bool, error) {
	member, err := g.dbStore.IsMember(ctx, user.ID, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return member, nil
}
