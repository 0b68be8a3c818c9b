package report

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when the model answers without any text
var ErrEmptyResponse = errors.New("model returned an empty response")

// Model produces a JSON document matching schema for the given contents
type Model interface {
	GenerateJSON(ctx context.Context, contents []*genai.Content, schema *genai.Schema) (string, error)
}

// GeminiModel calls generateContent on the Gemini API
type GeminiModel struct {
	client *genai.Client
	model  string
}

// NewGeminiModel creates a client for the Gemini API backend
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiModel{client: client, model: model}, nil
}

// GenerateJSON implements Model
func (m *GeminiModel) GenerateJSON(ctx context.Context, contents []*genai.Content, schema *genai.Schema) (string, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   schema,
	})
	if err != nil {
		return "", fmt.Errorf("generate content (%s): %w", m.model, err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func reportSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"technicalScore":  {Type: genai.TypeInteger},
			"behaviorScore":   {Type: genai.TypeInteger},
			"confidenceScore": {Type: genai.TypeInteger},
			"selected":        {Type: genai.TypeBoolean},
			"feedback":        {Type: genai.TypeString},
			"strengths":       {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"weaknesses":      {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		},
		Required: []string{"technicalScore", "behaviorScore", "confidenceScore", "selected", "feedback", "strengths", "weaknesses"},
	}
}

func resumeSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"text":  {Type: genai.TypeString},
			"score": {Type: genai.TypeInteger},
		},
		Required: []string{"text", "score"},
	}
}

func rolesSchema() *genai.Schema {
	return &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}
}
