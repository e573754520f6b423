// Package client contains HTTP clients for the AI agent service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/observability"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("client")

// maxErrorBody bounds how much of an error response is kept for logs.
const maxErrorBody = 512

// Usage is the token accounting returned by the agent.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type routineRequest struct {
	Assessment domain.Assessment `json:"assessment"`
}

type routineResponse struct {
	Routine *domain.DailyRoutine `json:"routine"`
	Usage   Usage                `json:"usage"`
}

type analysisRequest struct {
	// Image is base64 encoded by encoding/json.
	Image    []byte `json:"image"`
	MIMEType string `json:"mime_type"`
	ImageRef string `json:"image_ref,omitempty"`
}

type analysisResponse struct {
	Metrics   *domain.PartialMetrics `json:"metrics,omitempty"`
	Summary   string                 `json:"summary,omitempty"`
	CoachNote string                 `json:"coachNote,omitempty"`
	Usage     Usage                  `json:"usage"`
}

// AgentClient is the HTTP collaborator. It implements port.Collaborator
// against an agent exposing POST /v1/routines and POST /v1/analyses.
type AgentClient struct {
	httpClient *http.Client
	baseURL    string
	guard      *resilience.Guard
	metrics    *observability.Metrics
}

// NewAgentClient creates a new AgentClient.
func NewAgentClient(httpClient *http.Client, baseURL string, guard *resilience.Guard, metrics *observability.Metrics) *AgentClient {
	return &AgentClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		guard:      guard,
		metrics:    metrics,
	}
}

// GenerateRoutine asks the agent for a routine. Shape checks beyond JSON
// decoding are left to the caller.
func (c *AgentClient) GenerateRoutine(ctx context.Context, assessment domain.Assessment) (*domain.DailyRoutine, error) {
	ctx, span := tracer.Start(ctx, "AgentClient.GenerateRoutine")
	defer span.End()
	span.SetAttributes(attribute.String("assessment.skin_type", string(assessment.SkinType)))

	var resp routineResponse
	err := c.guard.Execute(ctx, "generate_routine", func(ctx context.Context) error {
		return PostJSON(ctx, c.httpClient, c.baseURL+"/v1/routines", routineRequest{Assessment: assessment}, &resp)
	})
	if err != nil {
		span.RecordError(err)
		return nil, Classify("agent", err)
	}
	c.metrics.RecordTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	if resp.Routine == nil {
		return nil, &domain.ErrExternalService{Service: "agent", Err: errors.New("response has no routine")}
	}
	return resp.Routine, nil
}

// AnalyzeImage sends the photo to the agent for scoring.
func (c *AgentClient) AnalyzeImage(ctx context.Context, img domain.ImagePayload) (*domain.AnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "AgentClient.AnalyzeImage")
	defer span.End()
	span.SetAttributes(
		attribute.String("image.mime_type", img.MIMEType),
		attribute.Int("image.bytes", len(img.Data)),
	)

	req := analysisRequest{Image: img.Data, MIMEType: img.MIMEType, ImageRef: img.Ref}
	var resp analysisResponse
	err := c.guard.Execute(ctx, "analyze_image", func(ctx context.Context) error {
		return PostJSON(ctx, c.httpClient, c.baseURL+"/v1/analyses", req, &resp)
	})
	if err != nil {
		span.RecordError(err)
		return nil, Classify("agent", err)
	}
	c.metrics.RecordTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	return &domain.AnalysisResult{
		Metrics:   resp.Metrics,
		Summary:   resp.Summary,
		CoachNote: resp.CoachNote,
	}, nil
}

// PostJSON sends in as a JSON body and decodes a 200 response into out.
func PostJSON(ctx context.Context, httpClient *http.Client, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("http call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%s returned status %d: %s", url, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Classify keeps breaker and timeout errors as they are and wraps
// everything else as an external service failure.
func Classify(service string, err error) error {
	var (
		open    *domain.ErrCircuitOpen
		timeout *domain.ErrTimeout
	)
	if errors.As(err, &open) || errors.As(err, &timeout) {
		return err
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}
