package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/intervu/live-interview/internal/live"
	"github.com/intervu/live-interview/internal/report"
)

// ErrNotFound is returned when a profile does not exist
var ErrNotFound = errors.New("not found")

// Store persists candidate profiles and interview reports
type Store interface {
	GetProfile(ctx context.Context, userID string) (*live.Profile, error)
	UpdateProfile(ctx context.Context, profile *live.Profile) error
	SaveReport(ctx context.Context, rep *report.Report) error
	// ListReports returns a user's reports, newest first
	ListReports(ctx context.Context, userID string) ([]report.Report, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func sortNewestFirst(reports []report.Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].CreatedAt.After(reports[j].CreatedAt)
	})
}

func ensureReportID(rep *report.Report) {
	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
}

// MemoryStore keeps everything in process. Used when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]live.Profile
	reports  []report.Report
}

// NewMemoryStore creates an empty in-process store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{profiles: make(map[string]live.Profile)}
}

func (s *MemoryStore) GetProfile(ctx context.Context, userID string) (*live.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) UpdateProfile(ctx context.Context, profile *live.Profile) error {
	if profile.ID == "" {
		return errors.New("profile id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = *profile
	return nil
}

func (s *MemoryStore) SaveReport(ctx context.Context, rep *report.Report) error {
	ensureReportID(rep)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, *rep)
	return nil
}

func (s *MemoryStore) ListReports(ctx context.Context, userID string) ([]report.Report, error) {
	s.mu.RLock()
	out := make([]report.Report, 0)
	for _, r := range s.reports {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error  { return nil }
func (s *MemoryStore) Close(ctx context.Context) error { return nil }
