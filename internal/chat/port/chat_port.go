// Package port defines the interface for the remote coach agent used by
// the default coach strategy.
package port

import (
	"context"

	chatdomain "github.com/elowen/skin-coach-bfa-go/internal/chat/domain"
)

// CoachAgentCaller sends a message with the user's skin context to a coach
// agent. Implemented by the HTTP agent client and the Gemini client.
type CoachAgentCaller interface {
	AskCoach(ctx context.Context, req *chatdomain.CoachAgentRequest) (*chatdomain.CoachAgentResponse, error)
}
