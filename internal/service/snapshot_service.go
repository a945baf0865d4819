package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/repository"
)

const (
	snapshotCacheKey     = "snapshot:v1"
	snapshotCachePattern = "snapshot:*"
)

type timetableViewer interface {
	View() repository.TimetableView
}

type teacherCatalog interface {
	List(filter models.TeacherFilter) []models.Teacher
	Departments() []models.Department
}

type requestLister interface {
	List(filter models.AbsenceFilter) []models.AbsenceRequest
}

// SnapshotService assembles the start-up view of timetables, teachers and
// requests.
type SnapshotService struct {
	timetable timetableViewer
	teachers  teacherCatalog
	requests  requestLister
	cache     *CacheService
	ttl       time.Duration
	logger    *zap.Logger
}

// NewSnapshotService constructs the service. cache may be nil.
func NewSnapshotService(timetable timetableViewer, teachers teacherCatalog, requests requestLister, cache *CacheService, ttl time.Duration, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{timetable: timetable, teachers: teachers, requests: requests, cache: cache, ttl: ttl, logger: logger}
}

// Snapshot returns the current state, served from cache when possible.
func (s *SnapshotService) Snapshot(ctx context.Context) (*dto.TimetableSnapshot, error) {
	var snapshot dto.TimetableSnapshot
	hit, err := s.cache.Remember(ctx, snapshotCacheKey, &snapshot, s.ttl, s.build)
	if err != nil {
		return nil, err
	}
	if hit {
		s.logger.Debug("snapshot served from cache")
	}
	return &snapshot, nil
}

func (s *SnapshotService) build(ctx context.Context) (interface{}, error) {
	view := s.timetable.View()
	return &dto.TimetableSnapshot{
		Sections:    view.Sections,
		Master:      view.Master,
		Teachers:    s.teachers.List(models.TeacherFilter{}),
		Requests:    s.requests.List(models.AbsenceFilter{}),
		Departments: s.teachers.Departments(),
		Days:        view.Days,
		Periods:     view.Periods,
		Subjects:    view.Subjects,
	}, nil
}

// Invalidate drops cached snapshots.
func (s *SnapshotService) Invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, snapshotCachePattern); err != nil {
		s.logger.Warn("snapshot invalidation failed", zap.Error(err))
	}
}
