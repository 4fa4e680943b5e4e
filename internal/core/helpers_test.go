package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/chatia/server/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *store.SQLiteStore, googleID, email, name string) *store.User {
	t.Helper()

	user := &store.User{GoogleID: googleID, Email: email, Name: name}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func seedAdmin(t *testing.T, s *store.SQLiteStore, googleID, email, name string) *store.User {
	t.Helper()

	user := &store.User{GoogleID: googleID, Email: email, Name: name, IsAdmin: true}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func seedChat(t *testing.T, s *store.SQLiteStore, creator *store.User, name string) *store.Chat {
	t.Helper()

	chat, err := s.CreateChat(context.Background(), name, creator.ID)
	require.NoError(t, err)
	return chat
}

func seedHumanMessage(t *testing.T, s *store.SQLiteStore, chatID string, userID int64, content string) *store.Message {
	t.Helper()

	msg := store.Message{ChatID: chatID, Sender: store.HumanSender(userID), Content: content}
	require.NoError(t, s.CreateMessage(context.Background(), &msg))
	return &msg
}

func seedAIMessage(t *testing.T, s *store.SQLiteStore, chatID, content string) *store.Message {
	t.Helper()

	msg := store.Message{ChatID: chatID, Sender: store.AISender(), Content: content}
	require.NoError(t, s.CreateMessage(context.Background(), &msg))
	return &msg
}

// stubCompleter is a Completer with a canned reply or failure.
type stubCompleter struct {
	reply   string
	err     error
	calls   int
	prompts []string
}

func (c *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.calls++
	c.prompts = append(c.prompts, prompt)
	if c.err != nil {
		return "", c.err
	}
	return c.reply, nil
}

func newTestChatService(t *testing.T, s *store.SQLiteStore, completer Completer) *ChatService {
	t.Helper()

	logger, err := zap.NewDevelopment()
	require.NoError(t, err)
	return NewChatService(logger.Sugar(), s, completer)
}
