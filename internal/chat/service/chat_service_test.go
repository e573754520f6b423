package service

import (
	"context"
	"errors"
	"testing"

	"github.com/elowen/skin-coach-bfa-go/internal/chat/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/chat/port"
	maindomain "github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/observability"

	"go.uber.org/zap"
)

type mockAgent struct {
	resp *domain.CoachAgentResponse
	err  error
	got  *domain.CoachAgentRequest
}

func (m *mockAgent) AskCoach(_ context.Context, req *domain.CoachAgentRequest) (*domain.CoachAgentResponse, error) {
	m.got = req
	return m.resp, m.err
}

func newService(agent *mockAgent) *CoachService {
	logger := zap.NewNop()
	var caller port.CoachAgentCaller
	if agent != nil {
		caller = agent
	}
	return NewCoachService(caller, DefaultStrategies(logger), observability.NewMetrics(), logger)
}

func TestDetectIntent(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"I have a breakout on my chin", IntentBreakout},
		{"New PIMPLE appeared", IntentBreakout},
		{"acne and dryness", IntentBreakout},
		{"my cheeks feel dry", IntentHydration},
		{"Is my skin dehydrated?", IntentHydration},
		{"what about niacinamide?", IntentGeneral},
		{"", IntentGeneral},
	}
	for _, tt := range tests {
		if got := detectIntent(tt.query); got != tt.want {
			t.Errorf("detectIntent(%q) = %q, want %q", tt.query, got, tt.want)
		}
	}
}

func TestReply_ScriptedStrategies(t *testing.T) {
	svc := newService(&mockAgent{err: errors.New("should not be called")})

	reply, err := svc.Reply(context.Background(), &domain.CoachContext{Query: "breakout again"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Answer != breakoutReply || reply.Source != SourceScripted {
		t.Errorf("unexpected breakout reply: %+v", reply)
	}

	reply, err = svc.Reply(context.Background(), &domain.CoachContext{Query: "so dry today"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Answer != hydrationReply {
		t.Errorf("unexpected hydration reply: %q", reply.Answer)
	}
}

func TestReply_BreakoutAddsCautionForSensitiveSkin(t *testing.T) {
	svc := newService(nil)
	cc := &domain.CoachContext{
		Query:      "acne flare",
		Assessment: &maindomain.Assessment{SkinType: maindomain.SkinSensitive, Sensitivity: 5},
	}

	reply, err := svc.Reply(context.Background(), cc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Answer != breakoutReply+sensitiveAddendum {
		t.Errorf("expected sensitivity addendum, got %q", reply.Answer)
	}
	if cc.DetectedIntent != IntentBreakout {
		t.Errorf("expected detected intent to be recorded, got %q", cc.DetectedIntent)
	}
}

func TestReply_GeneralUsesAgentWithSkinContext(t *testing.T) {
	agent := &mockAgent{resp: &domain.CoachAgentResponse{Answer: "Try azelaic acid.", TokensUsed: 42}}
	svc := newService(agent)
	metrics := maindomain.SkinMetrics{Hydration: 55, Clarity: 70, Texture: 60, Redness: 30}

	reply, err := svc.Reply(context.Background(), &domain.CoachContext{
		SessionID:     "s-1",
		DisplayName:   "Melissa",
		Query:         "what about redness serums?",
		Assessment:    &maindomain.Assessment{SkinType: maindomain.SkinCombination, Concerns: []string{"Redness"}, Sensitivity: 2},
		LatestMetrics: &metrics,
		Progress:      0.5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Source != SourceAgent || reply.Answer != "Try azelaic acid." {
		t.Errorf("unexpected reply: %+v", reply)
	}

	got := agent.got
	if got == nil {
		t.Fatal("agent was not called")
	}
	if got.SkinType != "Combination" || got.Sensitivity != 2 || len(got.Concerns) != 1 {
		t.Errorf("skin context not forwarded: %+v", got)
	}
	if got.Context != IntentGeneral || got.SessionID != "s-1" || got.Progress != 0.5 {
		t.Errorf("unexpected request: %+v", got)
	}
	if got.LatestMetrics == nil || got.LatestMetrics.Hydration != 55 {
		t.Errorf("latest metrics not forwarded: %+v", got.LatestMetrics)
	}
}

func TestReply_AgentFailureFallsBack(t *testing.T) {
	svc := newService(&mockAgent{err: &maindomain.ErrExternalService{Service: "coach-agent", Err: errors.New("502")}})

	reply, err := svc.Reply(context.Background(), &domain.CoachContext{Query: "tell me about retinol"})
	if err != nil {
		t.Fatalf("expected fallback, got error %v", err)
	}
	if reply.Source != SourceScripted || reply.Answer != generalFallback {
		t.Errorf("unexpected fallback reply: %+v", reply)
	}
}

func TestReply_EmptyAgentAnswerFallsBack(t *testing.T) {
	svc := newService(&mockAgent{resp: &domain.CoachAgentResponse{Answer: "  "}})

	reply, err := svc.Reply(context.Background(), &domain.CoachContext{Query: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Answer != generalFallback {
		t.Errorf("expected fallback, got %q", reply.Answer)
	}
}

func TestReply_NoAgentConfigured(t *testing.T) {
	reply, err := newService(nil).Reply(context.Background(), &domain.CoachContext{Query: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Source != SourceScripted {
		t.Errorf("expected scripted reply, got %+v", reply)
	}
}

func TestReply_CancelledContextIsReturned(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := newService(&mockAgent{err: context.Canceled})

	if _, err := svc.Reply(ctx, &domain.CoachContext{Query: "hello"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
