package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"feed-lab/auth"
	"feed-lab/hub"
	"feed-lab/internal"
	"feed-lab/moderation"
	"feed-lab/observability"
	"feed-lab/repositories"
	"feed-lab/runtime"
	"feed-lab/runtime/workers"
	"feed-lab/server"
	"feed-lab/services"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes
// error reporting, so every defer (database cleanup included) executes before
// the process exits.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()

	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := internal.NewLogger(config.LogLevel)

	maskChar, err := maskRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	// 2. Durable store
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("badger open failed: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Error closing badger", "error", err)
		}
	}()

	conversationRepository, err := repositories.NewConversationRepository(db, logger)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = conversationRepository.Close() }()

	userRepository, err := repositories.NewUserRepository(db)
	if err != nil {
		return exitRuntime, err
	}
	defer func() { _ = userRepository.Close() }()

	// 3. Routing components. The registry is constructed here and injected;
	// its lifetime is the lifetime of the process.
	registry := runtime.NewRegistry()

	var moderator *moderation.Moderator
	if words := splitWords(config.CensoredWords); len(words) > 0 {
		m, err := moderation.NewModerator(words, maskChar)
		if err != nil {
			return exitConfig, fmt.Errorf("moderation init failed: %w", err)
		}
		moderator = &m
	}

	chatHub := hub.NewHub(logger, conversationRepository, userRepository, registry, moderator)

	tokens := auth.NewTokens(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	monitor := observability.NewMonitor(logger, registry)

	srv := server.New(logger, chatHub, conversationRepository, userRepository,
		authService, tokens, monitor, config.ConnectionBufferSize)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised background workers
	sup := workers.NewSupervisor(logger)
	sup.Add(workers.NewBadgerGCWorker(db, config.BadgerGCInterval, logger))
	go sup.Run(ctx)

	// 6. HTTP server
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final Cleanup (Graceful Shutdown)
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func maskRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("CHARACTER_REPLACEMENT must be a single character, got %q", str)
	}
	return r[0], nil
}

func splitWords(csv string) []string {
	var words []string
	for _, w := range strings.Split(csv, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}
