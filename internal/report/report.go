package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/intervu/live-interview/internal/live"
	"github.com/intervu/live-interview/internal/observability"
	"github.com/intervu/live-interview/internal/resilience"
)

const (
	noAudioFeedback = "No audio was detected during the interview session. Please check your microphone settings and try again."
	errorFeedback   = "Could not generate report due to an error."
)

// Report is the post-interview assessment
type Report struct {
	ID              string                `json:"id,omitempty" bson:"_id,omitempty"`
	UserID          string                `json:"userId,omitempty" bson:"userId,omitempty"`
	TechnicalScore  int                   `json:"technicalScore" bson:"technicalScore"`
	BehaviorScore   int                   `json:"behaviorScore" bson:"behaviorScore"`
	ConfidenceScore int                   `json:"confidenceScore" bson:"confidenceScore"`
	Selected        bool                  `json:"selected" bson:"selected"`
	Feedback        string                `json:"feedback" bson:"feedback"`
	Strengths       []string              `json:"strengths" bson:"strengths"`
	Weaknesses      []string              `json:"weaknesses" bson:"weaknesses"`
	Transcript      []live.TranscriptItem `json:"transcript" bson:"transcript"`
	Company         string                `json:"company" bson:"company"`
	Role            string                `json:"role" bson:"role"`
	Date            string                `json:"date" bson:"date"`
	CreatedAt       time.Time             `json:"createdAt" bson:"createdAt"`
}

// assessment is the part of Report the model fills in
type assessment struct {
	TechnicalScore  int      `json:"technicalScore"`
	BehaviorScore   int      `json:"behaviorScore"`
	ConfidenceScore int      `json:"confidenceScore"`
	Selected        bool     `json:"selected"`
	Feedback        string   `json:"feedback"`
	Strengths       []string `json:"strengths"`
	Weaknesses      []string `json:"weaknesses"`
}

// Generator turns a finished transcript into a Report
type Generator struct {
	model  Model
	policy *resilience.Policy
	logger zerolog.Logger
	now    func() time.Time
}

// NewGenerator creates a report generator. policy may be nil to call the model directly.
func NewGenerator(model Model, policy *resilience.Policy) *Generator {
	return &Generator{
		model:  model,
		policy: policy,
		logger: observability.WithComponent("report"),
		now:    time.Now,
	}
}

// Generate always returns a report. An empty transcript yields the no-audio
// report without calling the model; a model failure yields the error report
// and the failure is returned alongside it.
func (g *Generator) Generate(ctx context.Context, transcript []live.TranscriptItem, company, role string) (*Report, error) {
	now := g.now()
	rep := &Report{
		Transcript: transcript,
		Company:    company,
		Role:       role,
		Date:       now.Format("2006-01-02"),
		CreatedAt:  now,
		Strengths:  []string{},
		Weaknesses: []string{},
	}

	if len(transcript) == 0 {
		rep.Transcript = []live.TranscriptItem{}
		rep.Feedback = noAudioFeedback
		rep.Weaknesses = []string{"Microphone input not detected", "Session too short"}
		return rep, nil
	}

	start := time.Now()
	var result assessment
	err := g.call(ctx, func(ctx context.Context) error {
		raw, err := g.model.GenerateJSON(ctx, genai.Text(buildReportPrompt(transcript, company, role)), reportSchema())
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(raw), &result); err != nil {
			return fmt.Errorf("decode report: %w", err)
		}
		return nil
	})
	observability.RecordReport(err == nil, time.Since(start))

	if err != nil {
		g.logger.Error().Err(err).Str("company", company).Str("role", role).Msg("Error generating report")
		observability.RecordError("report_generation", "report")
		rep.Feedback = errorFeedback
		return rep, err
	}

	rep.TechnicalScore = result.TechnicalScore
	rep.BehaviorScore = result.BehaviorScore
	rep.ConfidenceScore = result.ConfidenceScore
	rep.Selected = result.Selected
	rep.Feedback = result.Feedback
	if result.Strengths != nil {
		rep.Strengths = result.Strengths
	}
	if result.Weaknesses != nil {
		rep.Weaknesses = result.Weaknesses
	}

	g.logger.Info().
		Int("transcript_items", len(transcript)).
		Bool("selected", rep.Selected).
		Dur("latency", time.Since(start)).
		Msg("Report generated")
	return rep, nil
}

func (g *Generator) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if g.policy == nil {
		return fn(ctx)
	}
	return g.policy.Do(ctx, fn)
}

// FormatTranscript renders one "ROLE: text" line per item
func FormatTranscript(transcript []live.TranscriptItem) string {
	lines := make([]string, 0, len(transcript))
	for _, item := range transcript {
		lines = append(lines, strings.ToUpper(string(item.Role))+": "+item.Text)
	}
	return strings.Join(lines, "\n")
}

func buildReportPrompt(transcript []live.TranscriptItem, company, role string) string {
	return fmt.Sprintf(`Analyze the following job interview transcript for a %s position at %s.
Provide a detailed assessment in JSON format.

Transcript:
%s

Requirement:
- technicalScore: 0-100. (If the interview is purely behavioral/HR, base this score on the candidate's knowledge of the role, company, and industry).
- behaviorScore: 0-100 based on soft skills, STAR method usage, and cultural fit.
- confidenceScore: 0-100 based on clarity, tone, and delivery.
- selected: boolean (true if passed, false if rejected).
- feedback: A paragraph summarizing the performance.
- strengths: Array of strings (key strengths).
- weaknesses: Array of strings (areas for improvement).
`, role, company, FormatTranscript(transcript))
}
