package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatia/server/internal/store"
)

const (
	defaultHistoryLimit = 20

	// aiDisplayName labels the automated participant's own prior messages in
	// the transcript and doubles as the trailing cue.
	aiDisplayName = "AI"
)

// PromptBuilder renders a bounded chat transcript plus the configured persona
// into a single completion prompt.
type PromptBuilder struct {
	dbStore      *store.SQLiteStore
	historyLimit int
}

func NewPromptBuilder(db *store.SQLiteStore) *PromptBuilder {
	return &PromptBuilder{dbStore: db, historyLimit: defaultHistoryLimit}
}

// Build assembles the prompt for a chat. Human senders are rendered with
// their current display name, resolved at build time, so renamed users appear
// under their new name even in old messages. Never fails on an empty history.
func (b *PromptBuilder) Build(ctx context.Context, chatID string) (string, error) {
	personality, ok, err := b.dbStore.GetSetting(ctx, SettingAIPersonality)
	if err != nil {
		return "", fmt.Errorf("failed to read personality setting: %w", err)
	}
	if !ok || personality == "" {
		personality = defaultPersonality
	}

	messages, err := b.dbStore.GetLastNMessagesByChatID(ctx, chatID, b.historyLimit)
	if err != nil {
		return "", fmt.Errorf("failed to load chat history: %w", err)
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You are a helpful AI assistant in a group chat. Your personality is: %s.\n\nChat History:\n", personality)

	names := make(map[int64]string)
	for _, msg := range messages {
		name := aiDisplayName
		if !msg.Sender.IsAI() {
			name, err = b.senderName(ctx, msg.Sender.UserID, names)
			if err != nil {
				return "", err
			}
		}
		fmt.Fprintf(&prompt, "%s: %s\n", name, msg.Content)
	}

	prompt.WriteString(aiDisplayName + ":")
	return prompt.String(), nil
}

func (b *PromptBuilder) senderName(ctx context.Context, userID int64, cache map[int64]string) (string, error) {
	if name, ok := cache[userID]; ok {
		return name, nil
	}
	name := "User"
	user, err := b.dbStore.GetUserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve sender name: %w", err)
	}
	if user != nil {
		name = user.Name
	}
	cache[userID] = name
	return name, nil
}
