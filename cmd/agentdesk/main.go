package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/agentdesk/internal/config"
	"github.com/gosuda/agentdesk/internal/dispatch"
	"github.com/gosuda/agentdesk/internal/domain"
	"github.com/gosuda/agentdesk/internal/hosting"
	"github.com/gosuda/agentdesk/internal/hosting/gitea"
	"github.com/gosuda/agentdesk/internal/hosting/github"
	"github.com/gosuda/agentdesk/internal/jobexec"
	"github.com/gosuda/agentdesk/internal/notify"
	"github.com/gosuda/agentdesk/internal/server"
	"github.com/gosuda/agentdesk/internal/store/postgres"
	redisstore "github.com/gosuda/agentdesk/internal/store/redis"
	"github.com/gosuda/agentdesk/internal/stream"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	logLevel := os.Getenv("AGENTDESK_LOG_LEVEL")
	level, parseErr := zerolog.ParseLevel(logLevel)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFormat := os.Getenv("AGENTDESK_LOG_FORMAT")
	if logFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	ctx := context.Background()

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Database.MaxConns < 0 || cfg.Database.MaxConns > math.MaxInt32 {
		return fmt.Errorf("database max_conns %d out of int32 range", cfg.Database.MaxConns)
	}

	// Connect to PostgreSQL.
	store, err := postgres.New(ctx, cfg.Database.DSN(), int32(cfg.Database.MaxConns)) //nolint:gosec // bounds checked above
	if err != nil {
		return err
	}
	defer store.Close()

	// Connect to Redis.
	pubsub, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer pubsub.Close()

	// Job-execution backend client. Unreachable at startup is not fatal:
	// the backend may come up after the console.
	execClient := jobexec.New(cfg.Jobexec.BaseURL, cfg.Jobexec.Token, cfg.Jobexec.Timeout)
	if err := execClient.CheckConnection(ctx); err != nil {
		log.Warn().Err(err).Str("base_url", cfg.Jobexec.BaseURL).Msg("job-execution backend unreachable")
	}

	// Stream sessions and the adaptive status reconciler.
	monitors := stream.NewManager(execClient.Subscribe)
	defer monitors.Shutdown()

	reconciler := stream.NewReconciler(
		store.Jobs(),
		pubsub,
		redisstore.JobStatusChannel,
		cfg.Stream.PollActive,
		cfg.Stream.PollIdle,
	)
	defer reconciler.Shutdown()

	// Hosting platform clients.
	registry := hosting.NewRegistry()
	registry.Register(domain.PlatformGitHub, github.New(ctx, cfg.Hosting.GitHubToken))
	if cfg.Hosting.GiteaBaseURL != "" {
		registry.Register(domain.PlatformGitea, gitea.New(cfg.Hosting.GiteaBaseURL, cfg.Hosting.GiteaToken, cfg.Hosting.HTTPTimeout))
	}

	// Slack notifications; disabled unless both token and channel are set.
	notifier := notify.New(cfg.Slack.BotToken, cfg.Slack.Channel)

	dispatcher := dispatch.New(
		store.Jobs(),
		store.Repositories(),
		store.Settings(),
		execClient,
		monitors,
		reconciler,
		pubsub,
		redisstore.JobStreamChannel,
		notifier,
		cfg.Jobexec.WorkflowURL,
		cfg.Stream.MaxChunks,
	)
	defer dispatcher.Shutdown()

	// Re-attach stream sessions for jobs still active from the last run.
	if err := dispatcher.Resume(ctx); err != nil {
		return err
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Create HTTP server with all routes wired.
	srv := server.New(cfg, store, pubsub, dispatcher, reconciler, monitors, registry)

	// Start server in background goroutine.
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(ctx); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
		}
	}()

	// Block until shutdown signal.
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}
