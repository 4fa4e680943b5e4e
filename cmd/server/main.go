package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chatia/server/internal/api"
	"github.com/chatia/server/internal/auth"
	"github.com/chatia/server/internal/config"
	"github.com/chatia/server/internal/core"
	"github.com/chatia/server/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		sugar.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	// Initialize completion client
	completer, err := core.NewGeminiCompleter(context.Background(), cfg.GeminiAPIKey, cfg.CompletionTimeout)
	if err != nil {
		sugar.Fatalf("Failed to initialize completion client: %v", err)
	}
	defer completer.Close()

	// Initialize services
	chatService := core.NewChatService(sugar, dbStore, completer)
	identityService := core.NewIdentityService(dbStore, cfg.AdminEmails)
	verifier := auth.NewGoogleVerifier(cfg.GoogleClientID)
	sessions := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionTTL)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(sugar, dbStore, chatService, identityService, verifier, sessions)
	router := api.NewRouter(apiHandler, logger)

	serverAddr := fmt.Sprintf(":%s", cfg.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // completion calls can take time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		sugar.Infof("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	sugar.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		sugar.Fatalf("Server forced to shutdown: %v", err)
	}

	sugar.Info("Server exiting gracefully")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "DEBUG" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
