package service

import (
	"context"

	"github.com/elowen/skin-coach-bfa-go/internal/chat/domain"

	"go.uber.org/zap"
)

// Scripted answers for the two intents the coach handles locally.
const (
	breakoutReply = "Analyzing your concern. Based on your profile, it's likely a localized barrier disruption. " +
		"Try stripping back to just your gentle cleanser and moisturizer for 48 hours."

	hydrationReply = "Noted. Your current hydration levels are trending lower, so consider swapping the AM serum " +
		"for a humectant-rich essence."

	sensitiveAddendum = " Since your skin is highly sensitive, pause any exfoliating acids until it settles."
)

// ============================================================
// BreakoutStrategy
// ============================================================

// BreakoutStrategy answers breakout and acne questions with barrier-repair advice.
type BreakoutStrategy struct {
	logger *zap.Logger
}

// NewBreakoutStrategy creates the strategy.
func NewBreakoutStrategy(logger *zap.Logger) *BreakoutStrategy {
	return &BreakoutStrategy{logger: logger}
}

// CanHandle accepts the breakout intent.
func (s *BreakoutStrategy) CanHandle(intent string) bool {
	return intent == IntentBreakout
}

// Handle returns the scripted reply, with an extra caution for high sensitivity.
func (s *BreakoutStrategy) Handle(ctx context.Context, coachCtx *domain.CoachContext) (*domain.CoachReply, error) {
	_, span := coachTracer.Start(ctx, "BreakoutStrategy.Handle")
	defer span.End()

	answer := breakoutReply
	if a := coachCtx.Assessment; a != nil && a.Sensitivity >= 4 {
		answer += sensitiveAddendum
	}

	s.logger.Debug("breakout reply", zap.String("session_id", coachCtx.SessionID))
	return &domain.CoachReply{Answer: answer, Source: SourceScripted}, nil
}

// ============================================================
// HydrationStrategy
// ============================================================

// HydrationStrategy answers dryness and hydration questions.
type HydrationStrategy struct {
	logger *zap.Logger
}

// NewHydrationStrategy creates the strategy.
func NewHydrationStrategy(logger *zap.Logger) *HydrationStrategy {
	return &HydrationStrategy{logger: logger}
}

// CanHandle accepts the hydration intent.
func (s *HydrationStrategy) CanHandle(intent string) bool {
	return intent == IntentHydration
}

// Handle returns the scripted reply.
func (s *HydrationStrategy) Handle(ctx context.Context, coachCtx *domain.CoachContext) (*domain.CoachReply, error) {
	_, span := coachTracer.Start(ctx, "HydrationStrategy.Handle")
	defer span.End()

	s.logger.Debug("hydration reply", zap.String("session_id", coachCtx.SessionID))
	return &domain.CoachReply{Answer: hydrationReply, Source: SourceScripted}, nil
}
