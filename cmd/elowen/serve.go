package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	chatinfra "github.com/elowen/skin-coach-bfa-go/internal/chat/infra"
	chatport "github.com/elowen/skin-coach-bfa-go/internal/chat/port"
	chatservice "github.com/elowen/skin-coach-bfa-go/internal/chat/service"
	"github.com/elowen/skin-coach-bfa-go/internal/config"
	"github.com/elowen/skin-coach-bfa-go/internal/handler"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/client"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/gemini"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/observability"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/resilience"
	"github.com/elowen/skin-coach-bfa-go/internal/port"
	"github.com/elowen/skin-coach-bfa-go/internal/service"
	"github.com/elowen/skin-coach-bfa-go/internal/session"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	var configPath, envFile string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, envFile)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "YAML config file (environment variables take precedence)")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	return cmd
}

func runServe(ctx context.Context, configPath, envFile string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.Development())
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("environment", cfg.Environment),
		zap.String("collaborator", cfg.Collaborator),
		zap.Duration("collaborator_timeout", cfg.CollaboratorTimeout),
		zap.Duration("session_ttl", cfg.SessionTTL),
		zap.Duration("coach_reply_delay", cfg.CoachReplyDelay),
		zap.Bool("coach_agent", cfg.CoachAgentURL != ""),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "elowen-skin-coach")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(tctx); err != nil {
			logger.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Collaborators ---
	collab, agent, guards, err := buildCollaborators(ctx, cfg, metrics)
	if err != nil {
		return err
	}
	coach := chatservice.NewCoachService(agent, chatservice.DefaultStrategies(logger), metrics, logger)

	// --- Sessions ---
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("calendar timezone: %w", err)
	}
	sessions := service.NewSessions(service.SessionsConfig{
		IdleTTL:            cfg.SessionTTL,
		DefaultDisplayName: cfg.DefaultDisplayName,
		Session: session.Config{
			CollaboratorTimeout: cfg.CollaboratorTimeout,
			CoachReplyDelay:     cfg.CoachReplyDelay,
			Location:            loc,
			// The Gemini client doubles as coach agent without a coach URL.
			CoachSharesCollaborator: cfg.Collaborator == config.CollaboratorGemini && cfg.CoachAgentURL == "",
		},
	}, session.Deps{Collaborator: collab, Coach: coach, Metrics: metrics, Logger: logger})
	defer sessions.Close()

	// --- Server ---
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		Handler: handler.NewRouter(handler.Deps{
			Sessions:      sessions,
			Guards:        guards,
			Metrics:       metrics,
			Logger:        logger,
			MaxImageBytes: cfg.MaxImageBytes,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// buildCollaborators selects the collaborator backend and the coach agent.
// A nil agent leaves the coach on scripted replies. Collaborator calls are
// bounded by the session's COLLABORATOR_TIMEOUT context, coach calls by
// HTTP_TIMEOUT.
func buildCollaborators(ctx context.Context, cfg *config.Config, metrics *observability.Metrics) (port.Collaborator, chatport.CoachAgentCaller, []*resilience.Guard, error) {
	rcfg := resilience.Config{MaxConcurrency: cfg.MaxConcurrency}

	var (
		collab port.Collaborator
		agent  chatport.CoachAgentCaller
		guards []*resilience.Guard
	)

	switch cfg.Collaborator {
	case config.CollaboratorGemini:
		guard := resilience.NewGuard("gemini", rcfg)
		gc, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, guard, metrics)
		if err != nil {
			return nil, nil, nil, err
		}
		collab, agent = gc, gc
		guards = append(guards, guard)
	case config.CollaboratorHTTP:
		guard := resilience.NewGuard("agent", rcfg)
		collab = client.NewAgentClient(&http.Client{}, cfg.AgentAPIURL, guard, metrics)
		guards = append(guards, guard)
	default:
		return nil, nil, nil, fmt.Errorf("unknown collaborator %q", cfg.Collaborator)
	}

	if cfg.CoachAgentURL != "" {
		guard := resilience.NewGuard("coach-agent", rcfg)
		agent = chatinfra.NewCoachAgentClient(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.CoachAgentURL, guard)
		guards = append(guards, guard)
	}
	return collab, agent, guards, nil
}
