package main

import (
	"clchat/domain/chat"
	"clchat/httpapi"
	"clchat/internal"
	"clchat/moderation"
	"clchat/observability"
	"clchat/repositories"
	"clchat/runtime"
	"clchat/runtime/workers"
	"clchat/services"
	"clchat/transport"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	exitOK      = 0
	exitConfig  = 1
	exitRuntime = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes every component and manages the server lifecycle, so that
// defers execute and shutdown stays graceful whatever triggered the exit.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := internal.GetLoggerFromString(config.LogLevel)

	// 2. Durable stores (BadgerDB history + Bluge search index)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	indexWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = indexWriter.Close()
	}()

	messageRepository := repositories.NewMessageRepository(db, log, config.HistoryLimit)
	seenRepository := repositories.NewSeenRepository(db)
	searchRepository := repositories.NewSearchRepository(indexWriter, log)

	// 3. Moderation
	moderator, err := buildModerator(config, log)
	if err != nil {
		return exitConfig, err
	}

	// 4. Routing core
	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewCollector(promRegistry)

	registry := runtime.NewRegistry(config.PresenceBufferSize)
	tracker, err := runtime.NewPresenceTracker(registry, seenRepository, log)
	if err != nil {
		return exitRuntime, fmt.Errorf("presence restore failed: %w", err)
	}

	indexCh := make(chan chat.Message, config.IndexBatchSize*2)
	router := runtime.NewRouter(registry, messageRepository, moderator, metrics, indexCh, log)
	ledger := runtime.NewLedger(registry, messageRepository, metrics, log)
	chatService := services.NewChatService(registry, tracker, router, ledger, messageRepository, metrics, log)

	// 5. Context, signals & supervised workers
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	indexer := workers.NewIndexerWorker(searchRepository, indexCh, config.IndexBatchSize, config.IndexFlushInterval, log)
	sup := workers.NewSupervisor(log).Add(tracker, indexer)
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. HTTP surface (websocket + REST + metrics)
	sessionCfg := transport.SessionConfig{
		SendBufferSize:     config.SendBufferSize,
		MaxMessageSize:     config.MaxMessageSize,
		EventRatePerSecond: config.EventRatePerSecond,
		EventBurst:         config.EventBurst,
		WriteTimeout:       config.WriteTimeout,
		PongTimeout:        config.PongTimeout,
	}
	wsHandler := transport.NewHandler(chatService, metrics, sessionCfg, log)
	api := httpapi.NewHandler(messageRepository, searchRepository, tracker, registry, config.SearchResultLimit, log)
	metricsHandler := promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:    address,
		Handler: api.Router(wsHandler, metricsHandler),
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting chat server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for stop or error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 8. Final cleanup: stop accepting, drain sessions, then stop workers so
	// the indexer flushes its pending batch before the index closes.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}

	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return exitOK, nil
}

// buildModerator loads the censored word list when one is configured; with no
// list the moderator passes content through untouched.
func buildModerator(config internal.Config, log *slog.Logger) (*moderation.Moderator, error) {
	replacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return nil, err
	}
	if config.CensoredWordsFile == "" {
		return moderation.NewModerator(nil, replacement)
	}

	words, err := moderation.LoadWords(config.CensoredWordsFile)
	if err != nil {
		return nil, fmt.Errorf("censored words file: %w", err)
	}
	log.Info("Loaded censored word list", "words", len(words))
	return moderation.NewModerator(words, replacement)
}
