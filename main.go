package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cpmpazar/cpm-pazar/config"
	"github.com/cpmpazar/cpm-pazar/internal/contact"
	"github.com/cpmpazar/cpm-pazar/internal/llm"
	"github.com/cpmpazar/cpm-pazar/internal/storage"
	"github.com/cpmpazar/cpm-pazar/internal/ui"
	"github.com/cpmpazar/cpm-pazar/internal/web"
)

const (
	logFileName     = "cpm-pazar.log"
	shutdownTimeout = 10 * time.Second
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Try to load existing .env file
	config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("invalid LOG_LEVEL")
	}
	zerolog.SetGlobalLevel(level)

	// JOURNAL_STREAM is set by systemd when running as a service.
	// Skip file logging under systemd (journald handles it).
	if _, underSystemd := os.LookupEnv("JOURNAL_STREAM"); underSystemd {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		// Local development: log to both stderr and file
		logFile, err := os.OpenFile(logFileName, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to open log file")
		}
		defer logFile.Close()

		consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr}
		fileWriter := zerolog.ConsoleWriter{Out: logFile, NoColor: true}
		log.Logger = log.Output(io.MultiWriter(consoleWriter, fileWriter))

		log.Info().Str("logFile", logFileName).Msg("logging to file")
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize generation store")
	}
	defer store.Close()
	log.Info().Str("dbPath", cfg.DBPath).Msg("generation store initialized")

	if cfg.GenerationCacheTTL > 0 {
		if n, err := store.PruneGenerationCache(cfg.GenerationCacheTTL); err != nil {
			log.Warn().Err(err).Msg("failed to prune generation cache")
		} else if n > 0 {
			log.Info().Int64("removed", n).Msg("pruned expired generation cache entries")
		}
	}

	// Create context that cancels on SIGINT or SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	describer := newDescriber(ctx, cfg, store)
	contacter := newContacter(cfg)

	registry := ui.NewRegistry(ui.Deps{Describer: describer, Contacter: contacter}, cfg.SessionIdleTimeout)
	defer registry.Shutdown()

	server, err := web.NewServer(web.Options{
		Registry:          registry,
		Usage:             store,
		MaxImageBytes:     cfg.MaxImageBytes,
		GenerationTimeout: cfg.GenerationTimeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize web server")
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("stopping http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Drop sessions of browsers that went away
	g.Go(func() error {
		registry.Run(ctx)
		return nil
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("shutdown with error")
	} else {
		log.Info().Msg("shutdown complete")
	}
}

// newDescriber wires the ad-copy client. Without an API key every request
// yields the missing-key text.
func newDescriber(ctx context.Context, cfg *config.Config, store storage.GenerationStore) *llm.DescriptionClient {
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set, ai descriptions are disabled")
		return llm.NewDescriptionClient(nil, cfg.GenerationTimeout)
	}

	gemini, err := llm.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize gemini client, ai descriptions are disabled")
		return llm.NewDescriptionClient(nil, cfg.GenerationTimeout)
	}
	log.Info().Str("model", gemini.Model()).Dur("cacheTTL", cfg.GenerationCacheTTL).Msg("gemini client initialized")

	return llm.NewDescriptionClient(llm.NewCachedGenerator(gemini, store, cfg.GenerationCacheTTL), cfg.GenerationTimeout)
}

func newContacter(cfg *config.Config) contact.Contacter {
	if !cfg.TelegramEnabled() {
		return contact.Simulated{}
	}
	relay, err := contact.NewTelegramRelayFromToken(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Error().Err(err).Msg("telegram relay unavailable, contact seller is simulated")
		return contact.Simulated{}
	}
	return relay
}
