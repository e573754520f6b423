package gemini

import (
	"context"
	"errors"
	"testing"

	chatdomain "github.com/elowen/skin-coach-bfa-go/internal/chat/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/domain"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/observability"
	"github.com/elowen/skin-coach-bfa-go/internal/infra/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	text string
	err  error

	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model, f.contents, f.config = model, contents, config
	if f.err != nil {
		return nil, f.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []*genai.Part{{Text: f.text}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 30, CandidatesTokenCount: 12},
	}, nil
}

func newTestClient(f *fakeModels) *Client {
	return newClient(f, "", resilience.NewGuard(serviceName, resilience.Config{MaxConcurrency: 2}), observability.NewMetrics())
}

const routineJSON = `{
  "am": [{
    "id": "am-1", "name": "Gentle Cleanse", "type": "cleanser",
    "description": "Low pH gel", "whyNeeded": "Removes overnight sebum",
    "whatToLookFor": "Glycerin, no sulfates",
    "recommendations": [{"productName": "CeraVe Hydrating", "description": "Creamy", "learnMoreUrl": "https://example.com/cerave", "hydrationImpact": "High"}]
  }],
  "pm": [{
    "id": "pm-1", "name": "Barrier Cream", "type": "moisturizer",
    "description": "Rich cream", "whyNeeded": "Overnight repair",
    "whatToLookFor": "Ceramides", "recommendations": []
  }]
}`

func TestGenerateRoutine_MapsWireFields(t *testing.T) {
	f := &fakeModels{text: routineJSON}
	c := newTestClient(f)

	r, err := c.GenerateRoutine(context.Background(), domain.Assessment{
		SkinType: domain.SkinDry, Concerns: []string{"Acne", "Redness"}, Sensitivity: 4, Lifestyle: []string{"Poor Sleep"},
	})
	require.NoError(t, err)

	require.Len(t, r.AM, 1)
	step := r.AM[0]
	assert.Equal(t, "am-1", step.ID)
	assert.Equal(t, "cleanser", step.Category)
	assert.Equal(t, "Removes overnight sebum", step.Rationale)
	assert.Equal(t, "Glycerin, no sulfates", step.ProductGuidance)
	assert.False(t, step.IsCompleted)
	require.Len(t, step.Recommendations, 1)
	assert.Equal(t, "https://example.com/cerave", step.Recommendations[0].ReferenceURL)
	assert.Equal(t, "High", step.Recommendations[0].HydrationImpact)
	assert.NotNil(t, r.PM[0].Recommendations)
	assert.NoError(t, r.CheckWellFormed())

	assert.Equal(t, DefaultModel, f.model)
	assert.Equal(t, "application/json", f.config.ResponseMIMEType)
	assert.Equal(t, []string{"am", "pm"}, f.config.ResponseSchema.Required)

	prompt := f.contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Skin Type: Dry")
	assert.Contains(t, prompt, "Concerns: Acne, Redness")
	assert.Contains(t, prompt, "Sensitivity (1-5): 4")
}

func TestGenerateRoutine_BadJSON(t *testing.T) {
	c := newTestClient(&fakeModels{text: `{"am": [`})

	_, err := c.GenerateRoutine(context.Background(), domain.NewAssessment())
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, serviceName, ext.Service)
}

func TestGenerateRoutine_CallFailure(t *testing.T) {
	c := newTestClient(&fakeModels{err: errors.New("quota exceeded")})

	_, err := c.GenerateRoutine(context.Background(), domain.NewAssessment())
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGenerateRoutine_EmptyResponse(t *testing.T) {
	c := newTestClient(&fakeModels{text: "  "})

	_, err := c.GenerateRoutine(context.Background(), domain.NewAssessment())
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
}

func TestAnalyzeImage_SendsInlineBytes(t *testing.T) {
	f := &fakeModels{text: `{"metrics": {"hydration": 81, "redness": 120}, "coachNote": "Nice glow."}`}
	c := newTestClient(f)

	img := []byte{0x89, 'P', 'N', 'G'}
	res, err := c.AnalyzeImage(context.Background(), domain.ImagePayload{Data: img, MIMEType: "image/png"})
	require.NoError(t, err)

	parts := f.contents[0].Parts
	require.Len(t, parts, 2)
	require.NotNil(t, parts[0].InlineData)
	assert.Equal(t, img, parts[0].InlineData.Data)
	assert.Equal(t, "image/png", parts[0].InlineData.MIMEType)
	assert.Equal(t, analysisPrompt, parts[1].Text)

	m, summary, note := res.Resolve()
	assert.Equal(t, domain.SkinMetrics{Hydration: 81, Clarity: 70, Texture: 65, Redness: 100}, m)
	assert.Equal(t, domain.DefaultSummary, summary)
	assert.Equal(t, "Nice glow.", note)
}

func TestAnalyzeImage_DefaultsMIMEType(t *testing.T) {
	f := &fakeModels{text: `{}`}
	c := newTestClient(f)

	_, err := c.AnalyzeImage(context.Background(), domain.ImagePayload{Data: []byte{0xff, 0xd8}})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", f.contents[0].Parts[0].InlineData.MIMEType)
}

func TestAskCoach(t *testing.T) {
	f := &fakeModels{text: "  Keep using a gentle cleanser.\n"}
	c := newTestClient(f)

	resp, err := c.AskCoach(context.Background(), &chatdomain.CoachAgentRequest{
		Query:         "should I exfoliate daily?",
		DisplayName:   "Melissa",
		SkinType:      "Sensitive",
		Sensitivity:   5,
		LatestMetrics: &domain.SkinMetrics{Hydration: 50, Clarity: 60, Texture: 55, Redness: 45},
		Progress:      0.25,
	})
	require.NoError(t, err)
	assert.Equal(t, "Keep using a gentle cleanser.", resp.Answer)
	assert.Equal(t, 42, resp.TokensUsed)

	prompt := f.contents[0].Parts[0].Text
	assert.Contains(t, prompt, "Skin type: Sensitive")
	assert.Contains(t, prompt, "redness 45")
	assert.Contains(t, prompt, "progress: 25%")
	assert.Contains(t, prompt, "Question: should I exfoliate daily?")
	assert.Nil(t, f.config)
}
