package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(apiHandler *APIHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	r.Post("/auth/login", apiHandler.LoginHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Session-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.SessionMiddleware)

			r.Get("/me", apiHandler.MeHandler)
			r.Post("/user/update", apiHandler.UpdateProfileHandler)

			r.Get("/chats", apiHandler.ListChatsHandler)
			r.Post("/chats", apiHandler.CreateChatHandler)
			r.Get("/chats/{chatID}/messages", apiHandler.ListMessagesHandler)
			r.Post("/chats/{chatID}/messages", apiHandler.PostMessageHandler)
			r.Post("/chats/{chatID}/ai", apiHandler.ToggleAIHandler)

			// Admin-only; the service enforces the role
			r.Get("/admin/settings", apiHandler.GetSettingsHandler)
			r.Post("/admin/settings", apiHandler.UpdateSettingsHandler)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(apiHandler.SessionMiddleware)
		r.Post("/auth/logout", apiHandler.LogoutHandler)
	})

	return r
}

// requestLogger logs one line per incoming request.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Info("incoming http request",
				zap.String("method", r.Method),
				zap.String("uri", r.URL.RequestURI()),
				zap.String("ip", r.RemoteAddr),
			)
			next.ServeHTTP(w, r)
		})
	}
}
