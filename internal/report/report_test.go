package report

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/genai"

	"github.com/intervu/live-interview/internal/live"
)

type fakeModel struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	contents [][]*genai.Content
	schemas  []*genai.Schema
}

func (m *fakeModel) GenerateJSON(ctx context.Context, contents []*genai.Content, schema *genai.Schema) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.contents = append(m.contents, contents)
	m.schemas = append(m.schemas, schema)
	return m.response, m.err
}

func (m *fakeModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *fakeModel) promptText(i int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b strings.Builder
	for _, c := range m.contents[i] {
		for _, p := range c.Parts {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

func newTestGenerator(model Model) *Generator {
	g := NewGenerator(model, nil)
	g.now = func() time.Time { return time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC) }
	return g
}

func sampleTranscript() []live.TranscriptItem {
	return []live.TranscriptItem{
		{Role: live.RoleAssistant, Text: "Tell me about yourself."},
		{Role: live.RoleUser, Text: "I build backend systems."},
	}
}

func TestGenerate_EmptyTranscriptSkipsModel(t *testing.T) {
	model := &fakeModel{}
	g := newTestGenerator(model)

	rep, err := g.Generate(context.Background(), nil, "Acme", "Backend Engineer")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if model.Calls() != 0 {
		t.Errorf("Expected no model call, got %d", model.Calls())
	}
	if rep.Feedback != noAudioFeedback {
		t.Errorf("Unexpected feedback %q", rep.Feedback)
	}
	if rep.Selected || rep.TechnicalScore != 0 {
		t.Error("Expected zero scores and not selected")
	}
	if len(rep.Weaknesses) != 2 {
		t.Errorf("Expected 2 weaknesses, got %v", rep.Weaknesses)
	}
	if rep.Transcript == nil || len(rep.Transcript) != 0 {
		t.Error("Expected an empty, non-nil transcript")
	}
	if rep.Date != "2025-03-14" || rep.Company != "Acme" || rep.Role != "Backend Engineer" {
		t.Errorf("Unexpected metadata %+v", rep)
	}
}

func TestGenerate_ParsesModelAssessment(t *testing.T) {
	model := &fakeModel{response: `{"technicalScore":82,"behaviorScore":75,"confidenceScore":90,"selected":true,"feedback":"Solid.","strengths":["Clear answers"],"weaknesses":["Few metrics"]}`}
	g := newTestGenerator(model)

	rep, err := g.Generate(context.Background(), sampleTranscript(), "Acme", "Backend Engineer")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if rep.TechnicalScore != 82 || rep.BehaviorScore != 75 || rep.ConfidenceScore != 90 {
		t.Errorf("Unexpected scores %+v", rep)
	}
	if !rep.Selected || rep.Feedback != "Solid." {
		t.Errorf("Unexpected verdict %+v", rep)
	}
	if len(rep.Strengths) != 1 || len(rep.Weaknesses) != 1 {
		t.Errorf("Unexpected lists %v / %v", rep.Strengths, rep.Weaknesses)
	}
	if len(rep.Transcript) != 2 {
		t.Errorf("Expected transcript attached, got %d items", len(rep.Transcript))
	}

	prompt := model.promptText(0)
	if !strings.Contains(prompt, "ASSISTANT: Tell me about yourself.\nUSER: I build backend systems.") {
		t.Errorf("Expected formatted transcript in prompt, got %q", prompt)
	}
	if !strings.Contains(prompt, "Backend Engineer position at Acme") {
		t.Error("Expected role and company in prompt")
	}
	if model.schemas[0].Type != genai.TypeObject || len(model.schemas[0].Required) != 7 {
		t.Errorf("Unexpected schema %+v", model.schemas[0])
	}
}

func TestGenerate_ModelErrorFallsBack(t *testing.T) {
	model := &fakeModel{err: errors.New("invalid api key")}
	g := newTestGenerator(model)

	rep, err := g.Generate(context.Background(), sampleTranscript(), "Acme", "Backend Engineer")
	if err == nil {
		t.Error("Expected the model error to be returned")
	}
	if rep == nil {
		t.Fatal("Expected a fallback report")
	}
	if rep.Feedback != errorFeedback {
		t.Errorf("Unexpected feedback %q", rep.Feedback)
	}
	if len(rep.Transcript) != 2 {
		t.Error("Expected the transcript on the fallback report")
	}
}

func TestGenerate_MalformedJSONFallsBack(t *testing.T) {
	g := newTestGenerator(&fakeModel{response: "not json"})

	rep, err := g.Generate(context.Background(), sampleTranscript(), "Acme", "Backend Engineer")
	if err == nil {
		t.Error("Expected a decode error")
	}
	if rep.Feedback != errorFeedback {
		t.Errorf("Unexpected feedback %q", rep.Feedback)
	}
}

func TestFormatTranscript(t *testing.T) {
	got := FormatTranscript(sampleTranscript())
	want := "ASSISTANT: Tell me about yourself.\nUSER: I build backend systems."
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
	if FormatTranscript(nil) != "" {
		t.Error("Expected empty string for empty transcript")
	}
}
