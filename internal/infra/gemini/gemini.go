// Package gemini implements the collaborator and coach agent ports on top
// of the Gemini API.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	chatdomain "github.com/elowen/skin-coach-bfa-go/internal/chat/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/client"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/observability"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/resilience"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/genai"
)

var tracer = otel.Tracer("gemini")

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

const serviceName = "gemini"

// contentGenerator is the slice of the genai API this package needs.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client talks to Gemini. It implements port.Collaborator and
// chat port.CoachAgentCaller.
type Client struct {
	models  contentGenerator
	model   string
	guard   *resilience.Guard
	metrics *observability.Metrics
}

// NewClient creates a Gemini-backed client.
func NewClient(ctx context.Context, apiKey, model string, guard *resilience.Guard, metrics *observability.Metrics) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newClient(gc.Models, model, guard, metrics), nil
}

func newClient(models contentGenerator, model string, guard *resilience.Guard, metrics *observability.Metrics) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{models: models, model: model, guard: guard, metrics: metrics}
}

// ============================================================
// Routine generation
// ============================================================

// wireStep is the step shape the model is asked to produce.
type wireStep struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	Description     string `json:"description"`
	WhyNeeded       string `json:"whyNeeded"`
	WhatToLookFor   string `json:"whatToLookFor"`
	Recommendations []struct {
		ProductName     string `json:"productName"`
		Description     string `json:"description"`
		LearnMoreURL    string `json:"learnMoreUrl"`
		HydrationImpact string `json:"hydrationImpact"`
	} `json:"recommendations"`
}

type wireRoutine struct {
	AM []wireStep `json:"am"`
	PM []wireStep `json:"pm"`
}

// GenerateRoutine asks the model for an AM/PM routine as structured JSON.
func (c *Client) GenerateRoutine(ctx context.Context, assessment domain.Assessment) (*domain.DailyRoutine, error) {
	ctx, span := tracer.Start(ctx, "Client.GenerateRoutine")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", c.model),
		attribute.String("assessment.skin_type", string(assessment.SkinType)),
	)

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   routineSchema(),
	}
	text, err := c.generate(ctx, "generate_routine", genai.Text(routinePrompt(assessment)), cfg)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	routine, err := parseRoutine(text)
	if err != nil {
		span.RecordError(err)
		return nil, &domain.ErrExternalService{Service: serviceName, Err: err}
	}
	return routine, nil
}

func routinePrompt(a domain.Assessment) string {
	var b strings.Builder
	b.WriteString("Based on this skin assessment, generate a personalized AM and PM skincare routine.\n")
	fmt.Fprintf(&b, "Skin Type: %s\n", a.SkinType)
	fmt.Fprintf(&b, "Concerns: %s\n", strings.Join(a.Concerns, ", "))
	fmt.Fprintf(&b, "Sensitivity (1-5): %d\n", a.Sensitivity)
	fmt.Fprintf(&b, "Lifestyle: %s\n", strings.Join(a.Lifestyle, ", "))
	if a.CurrentRoutine != "" {
		fmt.Fprintf(&b, "Current routine: %s\n", a.CurrentRoutine)
	}
	b.WriteString("\nExplain why each step is included and what ingredients or features to look for in products. ")
	b.WriteString("Give every step an id that is unique within its half of the day. ")
	b.WriteString("For each step, provide 2-3 real product recommendations that fit this skin profile, ")
	b.WriteString(`and estimate each product's "hydrationImpact" as "High", "Medium" or "Low".`)
	return b.String()
}

func parseRoutine(text string) (*domain.DailyRoutine, error) {
	var w wireRoutine
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil, fmt.Errorf("decode routine: %w", err)
	}
	return &domain.DailyRoutine{AM: toSteps(w.AM), PM: toSteps(w.PM)}, nil
}

func toSteps(in []wireStep) []domain.RoutineStep {
	out := make([]domain.RoutineStep, 0, len(in))
	for _, s := range in {
		step := domain.RoutineStep{
			ID:              s.ID,
			Name:            s.Name,
			Category:        s.Type,
			Description:     s.Description,
			Rationale:       s.WhyNeeded,
			ProductGuidance: s.WhatToLookFor,
			Recommendations: make([]domain.Recommendation, 0, len(s.Recommendations)),
		}
		for _, r := range s.Recommendations {
			step.Recommendations = append(step.Recommendations, domain.Recommendation{
				ProductName:     r.ProductName,
				Description:     r.Description,
				ReferenceURL:    r.LearnMoreURL,
				HydrationImpact: r.HydrationImpact,
			})
		}
		out = append(out, step)
	}
	return out
}

func routineSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }

	recommendation := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"productName":  str(),
			"description":  str(),
			"learnMoreUrl": str(),
			"hydrationImpact": {
				Type:        genai.TypeString,
				Description: "The level of hydration this product provides: High, Medium or Low",
			},
		},
		Required: []string{"productName", "description", "learnMoreUrl", "hydrationImpact"},
	}
	step := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id":              str(),
			"name":            str(),
			"type":            str(),
			"description":     str(),
			"whyNeeded":       str(),
			"whatToLookFor":   str(),
			"recommendations": {Type: genai.TypeArray, Items: recommendation},
		},
		Required: []string{"id", "name", "type", "description", "whyNeeded", "whatToLookFor", "recommendations"},
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"am": {Type: genai.TypeArray, Items: step},
			"pm": {Type: genai.TypeArray, Items: step},
		},
		Required: []string{"am", "pm"},
	}
}

// ============================================================
// Photo analysis
// ============================================================

const analysisPrompt = "Analyze this skin photo. Provide numerical metrics (0-100) for hydration, clarity, texture, and redness. " +
	"Also provide a summary and a supportive coach's note."

// AnalyzeImage sends the photo inline and decodes whatever fields the model returned.
func (c *Client) AnalyzeImage(ctx context.Context, img domain.ImagePayload) (*domain.AnalysisResult, error) {
	ctx, span := tracer.Start(ctx, "Client.AnalyzeImage")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", c.model),
		attribute.String("image.mime_type", img.MIMEType),
		attribute.Int("image.bytes", len(img.Data)),
	)

	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(img.Data, mime),
			genai.NewPartFromText(analysisPrompt),
		}, genai.RoleUser),
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   analysisSchema(),
	}

	text, err := c.generate(ctx, "analyze_image", contents, cfg)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	res, err := parseAnalysis(text)
	if err != nil {
		span.RecordError(err)
		return nil, &domain.ErrExternalService{Service: serviceName, Err: err}
	}
	return res, nil
}

func parseAnalysis(text string) (*domain.AnalysisResult, error) {
	var res domain.AnalysisResult
	if err := json.Unmarshal([]byte(text), &res); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &res, nil
}

func analysisSchema() *genai.Schema {
	num := func() *genai.Schema { return &genai.Schema{Type: genai.TypeNumber} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"metrics": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"hydration": num(),
					"clarity":   num(),
					"texture":   num(),
					"redness":   num(),
				},
			},
			"summary":   {Type: genai.TypeString},
			"coachNote": {Type: genai.TypeString},
		},
	}
}

// ============================================================
// Coach
// ============================================================

// AskCoach answers a free-form coach question with the user's skin context.
func (c *Client) AskCoach(ctx context.Context, req *chatdomain.CoachAgentRequest) (*chatdomain.CoachAgentResponse, error) {
	ctx, span := tracer.Start(ctx, "Client.AskCoach")
	defer span.End()
	span.SetAttributes(
		attribute.String("gemini.model", c.model),
		attribute.String("coach.context", req.Context),
	)

	var tokens int
	text, err := c.generateCounting(ctx, "coach", genai.Text(coachPrompt(req)), nil, &tokens)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &chatdomain.CoachAgentResponse{Answer: strings.TrimSpace(text), TokensUsed: tokens}, nil
}

func coachPrompt(req *chatdomain.CoachAgentRequest) string {
	var b strings.Builder
	b.WriteString("You are Elowen, a warm and concise skincare coach. Answer in at most three sentences. ")
	b.WriteString("Do not diagnose medical conditions; suggest a dermatologist for persistent issues.\n\n")
	if req.DisplayName != "" {
		fmt.Fprintf(&b, "User: %s\n", req.DisplayName)
	}
	if req.SkinType != "" {
		fmt.Fprintf(&b, "Skin type: %s\n", req.SkinType)
	}
	if len(req.Concerns) > 0 {
		fmt.Fprintf(&b, "Concerns: %s\n", strings.Join(req.Concerns, ", "))
	}
	if req.Sensitivity > 0 {
		fmt.Fprintf(&b, "Sensitivity (1-5): %d\n", req.Sensitivity)
	}
	if m := req.LatestMetrics; m != nil {
		fmt.Fprintf(&b, "Latest scan: hydration %.0f, clarity %.0f, texture %.0f, redness %.0f\n",
			m.Hydration, m.Clarity, m.Texture, m.Redness)
	}
	fmt.Fprintf(&b, "Today's routine progress: %.0f%%\n\n", req.Progress*100)
	fmt.Fprintf(&b, "Question: %s", req.Query)
	return b.String()
}

// ============================================================
// Shared call path
// ============================================================

func (c *Client) generate(ctx context.Context, operation string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	var tokens int
	return c.generateCounting(ctx, operation, contents, cfg, &tokens)
}

// generateCounting runs one guarded GenerateContent call, records token
// usage and returns the response text.
func (c *Client) generateCounting(ctx context.Context, operation string, contents []*genai.Content, cfg *genai.GenerateContentConfig, tokens *int) (string, error) {
	var resp *genai.GenerateContentResponse
	err := c.guard.Execute(ctx, operation, func(ctx context.Context) error {
		var err error
		resp, err = c.models.GenerateContent(ctx, c.model, contents, cfg)
		return err
	})
	if err != nil {
		return "", client.Classify(serviceName, err)
	}

	if u := resp.UsageMetadata; u != nil {
		c.metrics.RecordTokens(int(u.PromptTokenCount), int(u.CandidatesTokenCount))
		*tokens = int(u.PromptTokenCount) + int(u.CandidatesTokenCount)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &domain.ErrExternalService{Service: serviceName, Err: errors.New("empty response")}
	}
	return text, nil
}
