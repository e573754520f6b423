// Package infra holds the HTTP client for the remote coach agent.
package infra

import (
	"context"
	"net/http"

	"github.com/elowen/skin-coach-bfa-go/internal/chat/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/client"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// tracer is the OpenTelemetry tracer for chat/infra.
var tracer = otel.Tracer("chat/infra")

// ============================================================
// CoachAgentClient
// ============================================================
//
// Calls POST /v1/chat on the coach agent with a small contract:
//
//	Request:  {"query": "...", "skin_type": "Dry", "concerns": [...], ...}
//	Response: {"answer": "...", "tokens_used": 312}

// CoachAgentClient implements port.CoachAgentCaller over HTTP.
type CoachAgentClient struct {
	httpClient *http.Client
	baseURL    string
	guard      *resilience.Guard
}

// NewCoachAgentClient creates the client. baseURL excludes the /v1/chat path.
func NewCoachAgentClient(httpClient *http.Client, baseURL string, guard *resilience.Guard) *CoachAgentClient {
	return &CoachAgentClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		guard:      guard,
	}
}

// AskCoach sends one message with the user's skin context.
func (c *CoachAgentClient) AskCoach(ctx context.Context, req *domain.CoachAgentRequest) (*domain.CoachAgentResponse, error) {
	ctx, span := tracer.Start(ctx, "CoachAgentClient.AskCoach")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", req.SessionID),
		attribute.String("coach.context", req.Context),
	)

	var resp domain.CoachAgentResponse
	err := c.guard.Execute(ctx, "coach", func(ctx context.Context) error {
		return client.PostJSON(ctx, c.httpClient, c.baseURL+"/v1/chat", req, &resp)
	})
	if err != nil {
		span.RecordError(err)
		return nil, client.Classify("coach-agent", err)
	}

	span.SetAttributes(attribute.Int("coach.tokens_used", resp.TokensUsed))
	return &resp, nil
}
