// Package service implements the CoachService, which answers transcript
// messages for the skin coach.
//
// ============================================================
// Strategy routing
// ============================================================
//
// The CoachService receives a message with a snapshot of the user's skin
// context, detects the intent of the message and delegates to the first
// registered strategy that accepts it.
//
// Flow:
//  1. The session appends the user message and starts a reply task
//  2. The task calls CoachService.Reply()
//  3. The intent is detected from keywords (breakout? hydration? general?)
//  4. The first strategy whose CanHandle accepts the intent answers
//  5. Otherwise the default path asks the coach agent, if one is configured
//  6. If the agent is missing or fails, a scripted reply is returned
//
// Available strategies:
//   - BreakoutStrategy: scripted barrier-repair advice
//   - HydrationStrategy: scripted humectant advice
package service

import (
	"context"
	"strings"

	"github.com/elowen/skin-coach-bfa-go/internal/chat/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/chat/port"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// coachTracer is the OpenTelemetry tracer for the coach module.
var coachTracer = otel.Tracer("chat/service")

// Intents recognised by detectIntent.
const (
	IntentBreakout  = "breakout"
	IntentHydration = "hydration"
	IntentGeneral   = "general"
)

// Reply sources.
const (
	SourceScripted = "scripted"
	SourceAgent    = "agent"
)

// generalFallback answers general questions when no agent can.
const generalFallback = "Thanks for sharing. Keep following your routine consistently for two weeks, " +
	"and log a new photo so we can see how your skin responds."

// ============================================================
// CoachStrategy
// ============================================================

// CoachStrategy is one way of answering a message.
type CoachStrategy interface {
	// CanHandle reports whether the strategy answers the given intent.
	CanHandle(intent string) bool

	// Handle produces the reply.
	Handle(ctx context.Context, coachCtx *domain.CoachContext) (*domain.CoachReply, error)
}

// ============================================================
// CoachService
// ============================================================

// CoachService routes messages to strategies.
type CoachService struct {
	// agent may be nil, in which case general questions get a scripted reply
	agent      port.CoachAgentCaller
	strategies []CoachStrategy
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewCoachService creates the service. Strategy order matters: the first
// one that accepts the intent wins.
func NewCoachService(
	agent port.CoachAgentCaller,
	strategies []CoachStrategy,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *CoachService {
	return &CoachService{
		agent:      agent,
		strategies: strategies,
		metrics:    metrics,
		logger:     logger,
	}
}

// DefaultStrategies returns the scripted strategies in routing order.
func DefaultStrategies(logger *zap.Logger) []CoachStrategy {
	return []CoachStrategy{
		NewBreakoutStrategy(logger),
		NewHydrationStrategy(logger),
	}
}

// Reply answers the message in coachCtx. It only fails when ctx is done.
func (s *CoachService) Reply(ctx context.Context, coachCtx *domain.CoachContext) (*domain.CoachReply, error) {
	ctx, span := coachTracer.Start(ctx, "CoachService.Reply")
	defer span.End()

	intent := detectIntent(coachCtx.Query)
	coachCtx.DetectedIntent = intent
	span.SetAttributes(
		attribute.String("session.id", coachCtx.SessionID),
		attribute.String("coach.intent", intent),
	)

	s.logger.Debug("coach message received",
		zap.String("session_id", coachCtx.SessionID),
		zap.String("intent", intent),
		zap.Int("query_length", len(coachCtx.Query)),
	)

	for _, strategy := range s.strategies {
		if strategy.CanHandle(intent) {
			return strategy.Handle(ctx, coachCtx)
		}
	}

	return s.defaultHandle(ctx, coachCtx)
}

// defaultHandle asks the coach agent and falls back to a scripted answer.
func (s *CoachService) defaultHandle(ctx context.Context, coachCtx *domain.CoachContext) (*domain.CoachReply, error) {
	if s.agent == nil {
		return &domain.CoachReply{Answer: generalFallback, Source: SourceScripted}, nil
	}

	s.metrics.IncrCollaboratorCall("coach")
	resp, err := s.agent.AskCoach(ctx, buildAgentRequest(coachCtx))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && ctxErr != context.DeadlineExceeded {
			return nil, ctxErr
		}
		s.metrics.IncrCollaboratorError("coach")
		s.logger.Warn("coach agent call failed, using scripted reply",
			zap.String("session_id", coachCtx.SessionID),
			zap.Error(err),
		)
		return &domain.CoachReply{Answer: generalFallback, Source: SourceScripted}, nil
	}
	if strings.TrimSpace(resp.Answer) == "" {
		return &domain.CoachReply{Answer: generalFallback, Source: SourceScripted}, nil
	}

	return &domain.CoachReply{Answer: resp.Answer, Source: SourceAgent}, nil
}

// buildAgentRequest flattens the coach context into the agent contract.
func buildAgentRequest(c *domain.CoachContext) *domain.CoachAgentRequest {
	req := &domain.CoachAgentRequest{
		Query:         c.Query,
		SessionID:     c.SessionID,
		Context:       c.DetectedIntent,
		DisplayName:   c.DisplayName,
		LatestMetrics: c.LatestMetrics,
		Progress:      c.Progress,
	}
	if c.Assessment != nil {
		req.SkinType = string(c.Assessment.SkinType)
		req.Concerns = append([]string{}, c.Assessment.Concerns...)
		req.Sensitivity = c.Assessment.Sensitivity
	}
	return req
}

// ============================================================
// detectIntent
// ============================================================

var intentKeywords = []struct {
	intent   string
	keywords []string
}{
	{IntentBreakout, []string{"breakout", "break out", "acne", "pimple", "blemish", "zit"}},
	{IntentHydration, []string{"dry", "hydration", "hydrate", "dehydrated", "flaky", "tight", "moistur"}},
}

// detectIntent maps a query to an intent by keyword. The first matching
// group wins; anything else is "general".
func detectIntent(query string) string {
	lower := strings.ToLower(query)
	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				return group.intent
			}
		}
	}
	return IntentGeneral
}
