package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chatia/server/internal/store"
)

const defaultChatName = "New Chat"

// ChatService orchestrates message ingestion, authorization, the cadence
// check, and automated reply generation.
type ChatService struct {
	logger    *zap.SugaredLogger
	dbStore   *store.SQLiteStore
	access    *AccessGate
	cadence   *CadenceEngine
	prompts   *PromptBuilder
	completer Completer
}

func NewChatService(logger *zap.SugaredLogger, db *store.SQLiteStore, completer Completer) *ChatService {
	return &ChatService{
		logger:    logger,
		dbStore:   db,
		access:    NewAccessGate(db),
		cadence:   NewCadenceEngine(db),
		prompts:   NewPromptBuilder(db),
		completer: completer,
	}
}

// CreateChat creates a chat with the given user as its first member. The two
// writes are transactional in the store.
func (s *ChatService) CreateChat(ctx context.Context, user *store.User, name string) (*store.Chat, error) {
	if name == "" {
		name = defaultChatName
	}
	chat, err := s.dbStore.CreateChat(ctx, name, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return chat, nil
}

func (s *ChatService) Chats(ctx context.Context, user *store.User) ([]store.ChatSummary, error) {
	return s.dbStore.GetChatsByUserID(ctx, user.ID)
}

// Messages returns the chat's messages in chronological order, provided the
// user may read the chat.
func (s *ChatService) Messages(ctx context.Context, user *store.User, chatID string) ([]store.Message, error) {
	canRead, err := s.access.CanRead(ctx, user, chatID)
	if err != nil {
		return nil, err
	}
	if !canRead {
		return nil, ErrNotMember
	}

	chat, err := s.dbStore.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	return s.dbStore.GetMessagesByChatID(ctx, chatID)
}

// PostMessage persists a human message and, if the chat's automated
// participant is enabled and the cadence threshold is met, generates and
// persists an automated reply. A completion failure never fails the human
// message: the reply is skipped and the error only logged.
func (s *ChatService) PostMessage(ctx context.Context, user *store.User, chatID, content string, imageURL *string) (*store.Message, error) {
	if content == "" && imageURL == nil {
		return nil, ErrEmptyMessage
	}

	canWrite, err := s.access.CanWrite(ctx, user, chatID)
	if err != nil {
		return nil, err
	}
	if !canWrite {
		return nil, ErrNotMember
	}

	chat, err := s.dbStore.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	msg := store.Message{
		ChatID:   chatID,
		Sender:   store.HumanSender(user.ID),
		Content:  content,
		ImageURL: imageURL,
	}
	if err := s.dbStore.CreateMessage(ctx, &msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	if chat.AIEnabled {
		s.maybeRespond(ctx, chatID)
	}

	return &msg, nil
}

// maybeRespond runs the cadence check and, when it fires, the generation
// pipeline. All failures here are recovered locally: the triggering message
// is already durable and the caller never sees an error.
func (s *ChatService) maybeRespond(ctx context.Context, chatID string) {
	respond, err := s.cadence.ShouldRespond(ctx, chatID)
	if err != nil {
		s.logger.Errorw("cadence check failed", "chat_id", chatID, "error", err)
		return
	}
	if !respond {
		return
	}

	prompt, err := s.prompts.Build(ctx, chatID)
	if err != nil {
		s.logger.Errorw("prompt construction failed", "chat_id", chatID, "error", err)
		return
	}

	reply, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		s.logger.Errorw("ai reply generation failed", "chat_id", chatID, "error", err)
		return
	}

	aiMsg := store.Message{
		ChatID:  chatID,
		Sender:  store.AISender(),
		Content: reply,
	}
	if err := s.dbStore.CreateMessage(ctx, &aiMsg); err != nil {
		s.logger.Errorw("failed to store ai reply", "chat_id", chatID, "error", err)
	}
}

// SetAIEnabled toggles the chat's automated participant. Requires write
// access.
func (s *ChatService) SetAIEnabled(ctx context.Context, user *store.User, chatID string, enabled bool) (*store.Chat, error) {
	canWrite, err := s.access.CanWrite(ctx, user, chatID)
	if err != nil {
		return nil, err
	}
	if !canWrite {
		return nil, ErrNotMember
	}

	chat, err := s.dbStore.GetChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, ErrChatNotFound
	}

	if err := s.dbStore.SetChatAIEnabled(ctx, chatID, enabled); err != nil {
		return nil, err
	}
	chat.AIEnabled = enabled
	return chat, nil
}

// Settings returns the global settings map. Administrator only.
func (s *ChatService) Settings(ctx context.Context, user *store.User) (map[string]string, error) {
	if !user.IsAdmin {
		return nil, ErrNotAdmin
	}
	return s.dbStore.GetAllSettings(ctx)
}

// UpdateSettings upserts one setting row per supplied key. Administrator
// only.
func (s *ChatService) UpdateSettings(ctx context.Context, user *store.User, settings map[string]string) error {
	if !user.IsAdmin {
		return ErrNotAdmin
	}
	for key, value := range settings {
		if err := s.dbStore.UpsertSetting(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}
