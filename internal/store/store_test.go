package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/intervu/live-interview/internal/live"
	"github.com/intervu/live-interview/internal/report"
)

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*MongoStore)(nil)
)

func TestMemoryStore_Profile(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetProfile(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	score := 81
	if err := s.UpdateProfile(ctx, &live.Profile{ID: "u1", Name: "Jordan", ResumeScore: &score}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	p, err := s.GetProfile(ctx, "u1")
	if err != nil {
		t.Fatalf("Expected profile, got %v", err)
	}
	if p.Name != "Jordan" || p.ResumeScore == nil || *p.ResumeScore != 81 {
		t.Errorf("Unexpected profile %+v", p)
	}

	if err := s.UpdateProfile(ctx, &live.Profile{Name: "no id"}); err == nil {
		t.Error("Expected an error for a profile without id")
	}
}

func TestMemoryStore_ReportsNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, offset := range []time.Duration{0, 48 * time.Hour, 24 * time.Hour} {
		rep := &report.Report{UserID: "u1", Company: string(rune('A' + i)), CreatedAt: base.Add(offset)}
		if err := s.SaveReport(ctx, rep); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if rep.ID == "" {
			t.Error("Expected an id to be assigned")
		}
	}
	s.SaveReport(ctx, &report.Report{UserID: "u2", CreatedAt: base})

	reports, err := s.ListReports(ctx, "u1")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("Expected 3 reports, got %d", len(reports))
	}
	want := []string{"B", "C", "A"}
	for i, r := range reports {
		if r.Company != want[i] {
			t.Errorf("Position %d: expected %s, got %s", i, want[i], r.Company)
		}
	}

	empty, _ := s.ListReports(ctx, "nobody")
	if empty == nil || len(empty) != 0 {
		t.Error("Expected an empty, non-nil list")
	}
}

func TestReportsFindOptions_SortsByCreatedAtDesc(t *testing.T) {
	sortSpec, ok := reportsFindOptions().Sort.(bson.D)
	if !ok || len(sortSpec) != 1 {
		t.Fatalf("Expected a single sort key, got %#v", reportsFindOptions().Sort)
	}
	if sortSpec[0].Key != "createdAt" || sortSpec[0].Value != -1 {
		t.Errorf("Expected createdAt descending, got %v", sortSpec[0])
	}
}
