package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostMessageRequiresContentOrImage(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	svc := newTestChatService(t, s, &stubCompleter{reply: "ok"})

	user := seedUser(t, s, "g-1", "ana@example.com", "Ana")
	chat := seedChat(t, s, user, "General")

	_, err := svc.PostMessage(ctx, user, chat.ID, "", nil)
	require.ErrorIs(t, err, ErrEmptyMessage)

	// Nothing was persisted for the rejected post.
	messages, err := s.GetMessagesByChatID(ctx, chat.ID)
	require.NoError(t, err)
	require.Empty(t, messages)

	url := "https://example.com/cat.png"
	msg, err := svc.PostMessage(ctx, user, chat.ID, "", &url)
	require.NoError(t, err)
	require.NotNil(t, msg.ImageURL)
}

func TestPostMessageRequiresMembership(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	svc := newTestChatService(t, s, &stubCompleter{reply: "ok"})

	ana := seedUser(t, s, "g-1", "ana@example.com", "Ana")
	eve := seedUser(t, s, "g-2", "eve@example.com", "Eve")
	chat := seedChat(t, s, ana, "Private")
	seedHumanMessage(t, s, chat.ID, ana.ID, "secret")

	_, err := svc.PostMessage(ctx, eve, chat.ID, "let me in", nil)
	require.ErrorIs(t, err, ErrNotMember)

	_, err = svc.Messages(ctx, eve, chat.ID)
	require.ErrorIs(t, err, ErrNotMember)
}

func TestAdminReadsButDoesNotWrite(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	svc := newTestChatService(t, s, &stubCompleter{reply: "ok"})

	ana := seedUser(t, s, "g-1", "ana@example.com", "Ana")
	admin := seedAdmin(t, s, "g-2", "root@example.com", "Root")
	chat := seedChat(t, s, ana, "Private")
	seedHumanMessage(t, s, chat.ID, ana.ID, "hello")

	messages, err := svc.Messages(ctx, admin, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	_, err = svc.PostMessage(ctx, admin, chat.ID, "admin barging in", nil)
	require.ErrorIs(t, err, ErrNotMember)
}

func TestPostMessageUnknownChat(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	svc := newTestChatService(t, s, &stubCompleter{reply: "ok"})

	admin := seedAdmin(t, s, "g-1", "root@example.com", "Root")

	// Admins pass the read gate, so a missing chat surfaces as not found.
	_, err := svc.Messages(ctx, admin, "no-such-chat")
	require.ErrorIs(t, err, ErrChatNotFound)
}

func TestPostMessageTriggersAIReply(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	completer := &stubCompleter{reply: "generated reply"}
	svc := newTestChatService(t, s, completer)

	user := seedUser(t, s, "g-1", "ana@example.com", "Ana")
	chat := seedChat(t, s, user, "General")

	for i := 1; i <= 4; i++ {
		_, err := svc.PostMessage(ctx, user, chat.ID, fmt.Sprintf("message %d", i), nil)
		require.NoError(t, err)
	}
	require.Zero(t, completer.calls)

	_, err := svc.PostMessage(ctx, user, chat.ID, "message 5", nil)
	require.NoError(t, err)
	require.Equal(t, 1, completer.calls)

	messages, err := s.GetMessagesByChatID(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 6)

	last := messages[len(messages)-1]
	require.True(t, last.Sender.IsAI())
	require.Equal(t, "generated reply", last.Content)

	// The human message always precedes its triggered reply.
	require.Equal(t, "message 5", messages[len(messages)-2].Content)
}

func TestAIDoesNotReplyToItself(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	completer := &stubCompleter{reply: "generated reply"}
	svc := newTestChatService(t, s, completer)

	user := seedUser(t, s, "g-1", "ana@example.com", "Ana")
	chat := seedChat(t, s, user, "General")

	for i := 1; i <= 5; i++ {
		_, err := svc.PostMessage(ctx, user, chat.ID, "human message", nil)
		require.NoError(t, err)
	}
	require.Equal(t, 1, completer.calls)

	// Four more messages stay under the threshold: the counter restarted at
	// the AI reply, not at any human message.
	for i := 1; i <= 4; i++ {
		_, err := svc.PostMessage(ctx, user, chat.ID, "more", nil)
		require.NoError(t, err)
	}
	require.Equal(t, 1, completer.calls)

	_, err := svc.PostMessage(ctx, user, chat.ID, "fifth since reply", nil)
	require.NoError(t, err)
	require.Equal(t, 2, completer.calls)
}

func TestCompletionFailureDoesNotFailHumanMessage(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	completer := &stubCompleter{err: errors.New("upstream timeout")}
	svc := newTestChatService(t, s, completer)

	user := seedUser(t, s, "g-1", "ana@example.com", "Ana")
	chat := seedChat(t, s, user, "General")

	var lastErr error
	for i := 1; i <= 5; i++ {
		_, lastErr = svc.PostMessage(ctx, user, chat.ID, "message", nil)
		require.NoError(t, lastErr)
	}
	require.Equal(t, 1, completer.calls)

	messages, err := s.GetMessagesByChatID(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 5)
	for _, msg := range messages {
		require.False(t, msg.Sender.IsAI())
	}
}

func TestAIDisabledSkipsCadence(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	completer := &stubCompleter{reply: "generated reply"}
	svc := newTestChatService(t, s, completer)

	user := seedUser(t, s, "g-1", "ana@example.com", "Ana")
	chat := seedChat(t, s, user, "General")

	toggled, err := svc.SetAIEnabled(ctx, user, chat.ID, false)
	require.NoError(t, err)
	require.False(t, toggled.AIEnabled)

	for i := 1; i <= 10; i++ {
		_, err := svc.PostMessage(ctx, user, chat.ID, "message", nil)
		require.NoError(t, err)
	}
	require.Zero(t, completer.calls)

	toggled, err = svc.SetAIEnabled(ctx, user, chat.ID, true)
	require.NoError(t, err)
	require.True(t, toggled.AIEnabled)
}

func TestSetAIEnabledRequiresMembership(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	svc := newTestChatService(t, s, &stubCompleter{reply: "ok"})

	ana := seedUser(t, s, "g-1", "ana@example.com", "Ana")
	eve := seedUser(t, s, "g-2", "eve@example.com", "Eve")
	chat := seedChat(t, s, ana, "Private")

	_, err := svc.SetAIEnabled(ctx, eve, chat.ID, false)
	require.ErrorIs(t, err, ErrNotMember)
}

func TestCreateChatDefaultsName(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	svc := newTestChatService(t, s, &stubCompleter{reply: "ok"})

	user := seedUser(t, s, "g-1", "ana@example.com", "Ana")

	chat, err := svc.CreateChat(ctx, user, "")
	require.NoError(t, err)
	require.Equal(t, "New Chat", chat.Name)

	// The creator can immediately read and write.
	_, err = svc.PostMessage(ctx, user, chat.ID, "first!", nil)
	require.NoError(t, err)
	messages, err := svc.Messages(ctx, user, chat.ID)
	require.NoError(t, err)
	require.Len(t, messages, 1)
}

func TestSettingsAdminOnlyRoundTrip(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx := context.Background()
	svc := newTestChatService(t, s, &stubCompleter{reply: "ok"})

	user := seedUser(t, s, "g-1", "ana@example.com", "Ana")
	admin := seedAdmin(t, s, "g-2", "root@example.com", "Root")

	_, err := svc.Settings(ctx, user)
	require.ErrorIs(t, err, ErrNotAdmin)
	err = svc.UpdateSettings(ctx, user, map[string]string{"ai_frequency": "3"})
	require.ErrorIs(t, err, ErrNotAdmin)

	require.NoError(t, svc.UpdateSettings(ctx, admin, map[string]string{"ai_frequency": "3"}))
	settings, err := svc.Settings(ctx, admin)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"ai_frequency": "3"}, settings)

	// The next cadence evaluation uses the new threshold.
	chat := seedChat(t, s, admin, "Admin chat")
	completer := &stubCompleter{reply: "generated reply"}
	svc2 := newTestChatService(t, s, completer)
	for i := 1; i <= 3; i++ {
		_, err := svc2.PostMessage(ctx, admin, chat.ID, "message", nil)
		require.NoError(t, err)
	}
	require.Equal(t, 1, completer.calls)
}
