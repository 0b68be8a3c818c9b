package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// ErrResumeAnalysis is returned when a resume could not be read or scored
var ErrResumeAnalysis = errors.New("failed to analyze resume, please ensure it is a valid PDF")

// FallbackRoles is returned when role recommendation fails
var FallbackRoles = []string{"Software Engineer", "Product Manager", "Data Analyst"}

const (
	resumePromptLimit = 2000

	resumeAnalysisPrompt = `You are an expert technical recruiter and resume analyst.

Task:
1. Extract the full text content from the provided PDF resume.
2. Analyze the quality of the resume based on structure, clarity, impact metrics, and keywords.
3. Assign a "Resume Score" from 0 to 100.

Return JSON:
{
  "text": "The full extracted text...",
  "score": 85
}`
)

type resumeAnalysis struct {
	Text  string `json:"text"`
	Score int    `json:"score"`
}

// AnalyzeResume extracts the text of a PDF resume and scores it
func (g *Generator) AnalyzeResume(ctx context.Context, pdf []byte) (string, int, error) {
	if len(pdf) == 0 {
		return "", 0, fmt.Errorf("%w: empty document", ErrResumeAnalysis)
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(pdf, "application/pdf"),
			genai.NewPartFromText(resumeAnalysisPrompt),
		}, genai.RoleUser),
	}

	var result resumeAnalysis
	err := g.call(ctx, func(ctx context.Context) error {
		raw, err := g.model.GenerateJSON(ctx, contents, resumeSchema())
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), &result)
	})
	if err != nil {
		g.logger.Error().Err(err).Int("bytes", len(pdf)).Msg("Error analyzing resume")
		return "", 0, fmt.Errorf("%w: %v", ErrResumeAnalysis, err)
	}
	return result.Text, result.Score, nil
}

// RecommendRoles suggests job titles for a resume. It never fails; errors
// and empty answers fall back to FallbackRoles.
func (g *Generator) RecommendRoles(ctx context.Context, resumeText string) []string {
	prompt := fmt.Sprintf(`Analyze the following resume summary and suggest 3 specific, modern job titles that this candidate is best suited for.
Focus on the tech industry if applicable.

Resume: %q

Return ONLY a JSON array of strings. Example: ["Senior Frontend Engineer", "Product Manager", "DevOps Specialist"]`, truncateRunes(resumeText, resumePromptLimit))

	var roles []string
	err := g.call(ctx, func(ctx context.Context) error {
		raw, err := g.model.GenerateJSON(ctx, genai.Text(prompt), rolesSchema())
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(raw), &roles)
	})
	if err != nil {
		g.logger.Warn().Err(err).Msg("Error getting recommendations")
		return append([]string(nil), FallbackRoles...)
	}

	cleaned := roles[:0]
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return append([]string(nil), FallbackRoles...)
	}
	return cleaned
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
