// Package domain defines the types of the conversational skin coach.
//
// The transcript is an append-only ordered log of user and assistant
// messages. Replies are produced by a CoachService that detects the intent
// of the user's message and delegates to a strategy; the session posts the
// reply back into its event queue once ready.
package domain

import (
	"time"

	maindomain "github.com/elowen/skin-coach-bfa-go/internal/domain"
)

// ============================================================
// Transcript
// ============================================================

// Role is the author of a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one transcript entry.
type Message struct {
	ID     string    `json:"id"`
	Role   Role      `json:"role"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

// ChatRequest is the body of POST /v1/sessions/{id}/chat.
type ChatRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

// ============================================================
// Strategy context
// ============================================================

// CoachContext is everything a strategy needs to answer a message.
// It is a read-only snapshot taken on the session loop.
type CoachContext struct {
	SessionID      string
	DisplayName    string
	Query          string
	DetectedIntent string

	// Assessment is nil until a routine has been generated.
	Assessment    *maindomain.Assessment
	LatestMetrics *maindomain.SkinMetrics
	Progress      float64
}

// CoachReply is the answer produced by a strategy.
type CoachReply struct {
	Answer string
	Source string // scripted, agent
}

// ============================================================
// Coach agent wire contract
// ============================================================

// CoachAgentRequest is sent to a remote coach agent (POST /v1/chat).
type CoachAgentRequest struct {
	Query         string                  `json:"query"`
	SessionID     string                  `json:"session_id,omitempty"`
	Context       string                  `json:"context,omitempty"`
	DisplayName   string                  `json:"display_name,omitempty"`
	SkinType      string                  `json:"skin_type,omitempty"`
	Concerns      []string                `json:"concerns,omitempty"`
	Sensitivity   int                     `json:"sensitivity,omitempty"`
	LatestMetrics *maindomain.SkinMetrics `json:"latest_metrics,omitempty"`
	Progress      float64                 `json:"progress"`
}

// CoachAgentResponse is the remote agent's answer.
type CoachAgentResponse struct {
	Answer     string `json:"answer"`
	TokensUsed int    `json:"tokens_used"`
}

// Greeting is the first assistant message of every transcript.
func Greeting(displayName string) string {
	return "Hello " + displayName + "! I'm your Elowen Skin Coach. How are you feeling about your routine today?"
}
