package session

import (
	"context"
	"strings"
	"time"

	chatdomain "github.com/elowen/skin-coach-bfa-go/internal/chat/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// fallbackReply is used when the coach produced nothing at all.
const fallbackReply = "I'm here for you. Could you tell me a little more about how your skin feels today?"

func (s *Session) greeting() chatdomain.Message {
	return chatdomain.Message{
		ID:     uuid.NewString(),
		Role:   chatdomain.RoleAssistant,
		Text:   chatdomain.Greeting(s.cfg.DisplayName),
		SentAt: s.cfg.Now(),
	}
}

// SendChat appends a user message and starts a reply task. The assistant
// message is appended by the loop no sooner than CoachReplyDelay later.
func (s *Session) SendChat(ctx context.Context, text string) (chatdomain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chatdomain.Message{}, &domain.ErrValidation{Field: "text", Message: "message is empty"}
	}

	var msg chatdomain.Message
	err := s.do(ctx, func() {
		msg = chatdomain.Message{
			ID:     uuid.NewString(),
			Role:   chatdomain.RoleUser,
			Text:   text,
			SentAt: s.cfg.Now(),
		}
		s.transcript = append(s.transcript, msg)
		s.metrics.IncrChatMessage(string(chatdomain.RoleUser))

		s.pendingReplies++
		s.dispatchReply(ctx, s.generation, s.coachContext(text))
	})
	return msg, err
}

// coachContext snapshots what the coach may know about the user.
func (s *Session) coachContext(query string) *chatdomain.CoachContext {
	cc := &chatdomain.CoachContext{
		SessionID:   s.id,
		DisplayName: s.cfg.DisplayName,
		Query:       query,
		Progress:    s.store.ProgressRatio(),
	}
	profile := s.store.Profile()
	if ready, ok := profile.ReadyPlan(); ok {
		a := ready.Assessment
		cc.Assessment = &a
	}
	if latest, ok := s.store.LatestAnalysis(); ok {
		m := latest.Metrics
		cc.LatestMetrics = &m
	}
	return cc
}

func (s *Session) dispatchReply(parent context.Context, gen uint64, cc *chatdomain.CoachContext) {
	timeout := s.cfg.CollaboratorTimeout
	if timeout > 0 {
		timeout += s.cfg.CoachReplyDelay
	}
	ctx, cancel := s.taskContext(parent, timeout)
	s.spawn(func() {
		defer cancel()
		ctx, span := tracer.Start(ctx, "Session.CoachReply")
		defer span.End()

		start := time.Now()
		text := fallbackReply
		if s.coach != nil {
			reply, err := s.askCoach(ctx, cc)
			switch {
			case err != nil:
				span.RecordError(err)
				s.logger.Warn("coach reply failed", zap.Error(err))
			case reply != nil && reply.Answer != "":
				text = reply.Answer
			}
		}

		if wait := s.cfg.CoachReplyDelay - time.Since(start); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-s.life.Done():
				return
			}
		}

		s.post(func() {
			if s.stale(gen, "coach_reply") {
				return
			}
			s.transcript = append(s.transcript, chatdomain.Message{
				ID:     uuid.NewString(),
				Role:   chatdomain.RoleAssistant,
				Text:   text,
				SentAt: s.cfg.Now(),
			})
			s.metrics.IncrChatMessage(string(chatdomain.RoleAssistant))
			s.pendingReplies--
			s.notifyIdle()
		})
	})
}

// askCoach runs the coach, holding the collaborator slot when the coach
// agent is the collaborator.
func (s *Session) askCoach(ctx context.Context, cc *chatdomain.CoachContext) (*chatdomain.CoachReply, error) {
	if s.cfg.CoachSharesCollaborator {
		release, err := s.acquireSlot(ctx)
		if err != nil {
			return nil, err
		}
		defer release()
	}
	return s.coach.Reply(ctx, cc)
}

// Transcript returns a copy of the conversation, oldest first.
func (s *Session) Transcript(ctx context.Context) ([]chatdomain.Message, error) {
	var out []chatdomain.Message
	err := s.do(ctx, func() {
		out = append([]chatdomain.Message{}, s.transcript...)
	})
	return out, err
}
