package core

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chatia/server/internal/store"
)

const (
	SettingAIFrequency   = "ai_frequency"
	SettingAIPersonality = "ai_personality"

	defaultFrequency   = 5
	defaultPersonality = "Helpful and polite"
)

// CadenceEngine decides whether the automated participant should reply after
// a human message, based purely on persisted history and the configured
// frequency threshold.
type CadenceEngine struct {
	dbStore *store.SQLiteStore
}

func NewCadenceEngine(db *store.SQLiteStore) *CadenceEngine {
	return &CadenceEngine{dbStore: db}
}

// ShouldRespond reports whether at least `frequency` messages have
// accumulated since the last automated message. The threshold is re-read from
// settings on every call so admin changes apply to the very next message.
func (e *CadenceEngine) ShouldRespond(ctx context.Context, chatID string) (bool, error) {
	frequency, err := e.frequency(ctx)
	if err != nil {
		return false, err
	}
	// A threshold of zero or below means the automated participant answers
	// every message.
	if frequency <= 0 {
		return true, nil
	}

	lastAI, err := e.dbStore.GetLastAIMessage(ctx, chatID)
	if err != nil {
		return false, fmt.Errorf("failed to find last ai message: %w", err)
	}

	count, err := e.dbStore.CountMessagesAfter(ctx, chatID, lastAI)
	if err != nil {
		return false, fmt.Errorf("failed to count messages since last ai message: %w", err)
	}

	return count >= frequency, nil
}

func (e *CadenceEngine) frequency(ctx context.Context) (int, error) {
	value, ok, err := e.dbStore.GetSetting(ctx, SettingAIFrequency)
	if err != nil {
		return 0, fmt.Errorf("failed to read frequency setting: %w", err)
	}
	if !ok {
		return defaultFrequency, nil
	}
	frequency, err := strconv.Atoi(value)
	if err != nil {
		// A malformed setting must not silence the participant forever.
		return defaultFrequency, nil
	}
	return frequency, nil
}
