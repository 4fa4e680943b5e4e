package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chatia/server/internal/auth"
	"github.com/chatia/server/internal/core"
	"github.com/chatia/server/internal/store"
)

type contextKey string

const userContextKey contextKey = "user"

type APIHandler struct {
	logger      *zap.SugaredLogger
	dbStore     *store.SQLiteStore
	chatService *core.ChatService
	identity    *core.IdentityService
	verifier    auth.Verifier
	sessions    *auth.SessionManager
}

func NewAPIHandler(logger *zap.SugaredLogger, db *store.SQLiteStore, cs *core.ChatService, is *core.IdentityService, verifier auth.Verifier, sessions *auth.SessionManager) *APIHandler {
	return &APIHandler{
		logger:      logger,
		dbStore:     db,
		chatService: cs,
		identity:    is,
		verifier:    verifier,
		sessions:    sessions,
	}
}

// SessionMiddleware resolves the session token to the current user and
// rejects the request as unauthenticated when there is none.
func (h *APIHandler) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := h.sessions.TokenFromRequest(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		userID, err := h.sessions.Parse(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid session")
			return
		}

		user, err := h.dbStore.GetUserByID(r.Context(), userID)
		if err != nil {
			h.logger.Errorw("failed to load session user", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to process user identity")
			return
		}
		if user == nil {
			writeError(w, http.StatusUnauthorized, "Unknown user")
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentUser(r *http.Request) *store.User {
	return r.Context().Value(userContextKey).(*store.User)
}

type LoginRequest struct {
	Credential string `json:"credential"`
}

// LoginHandler exchanges a provider credential for a local session.
func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Credential == "" {
		writeError(w, http.StatusBadRequest, "Credential is required")
		return
	}

	ident, err := h.verifier.Verify(r.Context(), req.Credential)
	if err != nil {
		h.logger.Infow("login credential rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "Invalid credential")
		return
	}

	user, err := h.identity.Resolve(r.Context(), ident)
	if err != nil {
		h.logger.Errorw("failed to resolve identity", "external_id", ident.ExternalID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process user identity")
		return
	}

	token, err := h.sessions.Issue(user.ID)
	if err != nil {
		h.logger.Errorw("failed to issue session", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	h.sessions.SetCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *APIHandler) MeHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

type UpdateProfileRequest struct {
	Name       string `json:"name"`
	ProfilePic string `json:"profile_pic"`
}

func (h *APIHandler) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.identity.UpdateProfile(r.Context(), user, req.Name, req.ProfilePic); err != nil {
		h.logger.Errorw("failed to update profile", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type CreateChatRequest struct {
	Name string `json:"name"`
}

func (h *APIHandler) CreateChatHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	var req CreateChatRequest
	if r.Body != http.NoBody {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	chat, err := h.chatService.CreateChat(r.Context(), user, req.Name)
	if err != nil {
		h.logger.Errorw("failed to create chat", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create chat")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": chat.ID, "name": chat.Name})
}

func (h *APIHandler) ListChatsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	chats, err := h.chatService.Chats(r.Context(), user)
	if err != nil {
		h.logger.Errorw("failed to list chats", "user_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list chats")
		return
	}
	if chats == nil {
		chats = []store.ChatSummary{}
	}
	writeJSON(w, http.StatusOK, chats)
}

func (h *APIHandler) ListMessagesHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	chatID := chi.URLParam(r, "chatID")

	messages, err := h.chatService.Messages(r.Context(), user, chatID)
	if err != nil {
		h.writeServiceError(w, err, "failed to list messages", user.ID, chatID)
		return
	}
	if messages == nil {
		messages = []store.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

type PostMessageRequest struct {
	Content  string  `json:"content"`
	ImageURL *string `json:"image_url"`
}

func (h *APIHandler) PostMessageHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	chatID := chi.URLParam(r, "chatID")

	var req PostMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	msg, err := h.chatService.PostMessage(r.Context(), user, chatID, req.Content, req.ImageURL)
	if err != nil {
		h.writeServiceError(w, err, "failed to post message", user.ID, chatID)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

type ToggleAIRequest struct {
	Enabled bool `json:"enabled"`
}

func (h *APIHandler) ToggleAIHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	chatID := chi.URLParam(r, "chatID")

	var req ToggleAIRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	chat, err := h.chatService.SetAIEnabled(r.Context(), user, chatID, req.Enabled)
	if err != nil {
		h.writeServiceError(w, err, "failed to toggle ai", user.ID, chatID)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "ai_enabled": chat.AIEnabled})
}

func (h *APIHandler) GetSettingsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	settings, err := h.chatService.Settings(r.Context(), user)
	if err != nil {
		h.writeServiceError(w, err, "failed to read settings", user.ID, "")
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (h *APIHandler) UpdateSettingsHandler(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	// Decode with json.Number so numeric values keep their literal form when
	// coerced to strings ("3" stays "3").
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	var raw map[string]interface{}
	if err := decoder.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	settings := make(map[string]string, len(raw))
	for key, value := range raw {
		settings[key] = fmt.Sprint(value)
	}

	if err := h.chatService.UpdateSettings(r.Context(), user, settings); err != nil {
		h.writeServiceError(w, err, "failed to update settings", user.ID, "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// writeServiceError maps service errors onto the HTTP taxonomy. Authorization
// failures deliberately carry no detail about the chat.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, msg string, userID int64, chatID string) {
	switch {
	case errors.Is(err, core.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, core.ErrNotMember), errors.Is(err, core.ErrNotAdmin):
		writeError(w, http.StatusForbidden, "Unauthorized")
	case errors.Is(err, core.ErrChatNotFound):
		writeError(w, http.StatusNotFound, "Chat not found")
	default:
		h.logger.Errorw(msg, "user_id", userID, "chat_id", chatID, "error", err)
		writeError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
