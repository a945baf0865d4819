package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type slotReader interface {
	BusyTeachers(day string, period int) map[string]struct{}
	ListSlotsForTeacher(name, day string) []models.ScheduledSlot
	ValidDay(day string) bool
	ValidPeriod(period int) bool
	Periods() []int
}

type teacherLookup interface {
	List(filter models.TeacherFilter) []models.Teacher
	FindByID(id int64) (models.Teacher, error)
}

type pendingSubstitutes interface {
	PendingSubstitutes(day string, period int) map[string]int64
}

const defaultRecommenderTimeout = 8 * time.Second

// AvailabilityServiceOption configures the resolver.
type AvailabilityServiceOption func(*AvailabilityService)

// WithRecommender consults r before falling back to the deterministic pick.
func WithRecommender(r Recommender, timeout time.Duration) AvailabilityServiceOption {
	return func(s *AvailabilityService) {
		s.recommender = r
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithAvailabilityMetrics records recommendation outcomes.
func WithAvailabilityMetrics(metrics *MetricsService) AvailabilityServiceOption {
	return func(s *AvailabilityService) {
		s.metrics = metrics
	}
}

// WithPendingSubstitutes treats teachers already requested or accepted for
// another absence at the same time as busy.
func WithPendingSubstitutes(pending pendingSubstitutes) AvailabilityServiceOption {
	return func(s *AvailabilityService) {
		s.pending = pending
	}
}

// AvailabilityService resolves which teachers can cover a slot.
type AvailabilityService struct {
	slots       slotReader
	teachers    teacherLookup
	pending     pendingSubstitutes
	recommender Recommender
	timeout     time.Duration
	metrics     *MetricsService
	logger      *zap.Logger
}

// NewAvailabilityService constructs the resolver.
func NewAvailabilityService(slots slotReader, teachers teacherLookup, logger *zap.Logger, opts ...AvailabilityServiceOption) *AvailabilityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &AvailabilityService{
		slots:    slots,
		teachers: teachers,
		timeout:  defaultRecommenderTimeout,
		logger:   logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// FindCandidates returns every teacher free at (day, period) other than the
// absent one. A teacher held by another open request at that time is not
// free. Teachers of subject come first, then names ascend.
func (s *AvailabilityService) FindCandidates(ctx context.Context, day string, period int, subject string, absentTeacherID int64) ([]models.Teacher, error) {
	if err := s.validateSlot(day, period); err != nil {
		return nil, err
	}
	busy := s.slots.BusyTeachers(day, period)
	var held map[string]int64
	if s.pending != nil {
		held = s.pending.PendingSubstitutes(day, period)
	}

	candidates := make([]models.Teacher, 0)
	for _, t := range s.teachers.List(models.TeacherFilter{}) {
		if t.ID == absentTeacherID {
			continue
		}
		if _, taken := busy[t.Name]; taken {
			continue
		}
		if _, taken := held[t.Name]; taken {
			continue
		}
		candidates = append(candidates, t)
	}
	if len(candidates) == 0 {
		return nil, appErrors.ErrNoCandidates
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		mi, mj := candidates[i].Teaches(subject), candidates[j].Teaches(subject)
		if mi != mj {
			return mi
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates, nil
}

// Recommend picks one candidate. The recommender is consulted when
// configured; anything other than a named candidate within the timeout falls
// back to the first candidate.
func (s *AvailabilityService) Recommend(ctx context.Context, day string, period int, subject string, absentTeacherID int64) (*models.Suggestion, error) {
	candidates, err := s.FindCandidates(ctx, day, period, subject, absentTeacherID)
	if err != nil {
		return nil, err
	}
	fallback := deterministicSuggestion(candidates, subject)

	if s.recommender == nil {
		s.metrics.RecordRecommendation(models.SuggestionSourceRules, "")
		return fallback, nil
	}

	suggestion, reason := s.consult(ctx, models.SuggestionRequest{
		Candidates: candidates,
		Subject:    subject,
		Day:        day,
		Period:     period,
	})
	if suggestion == nil {
		s.logger.Warn("recommender fallback",
			zap.String("reason", reason),
			zap.String("day", day),
			zap.Int("period", period),
			zap.String("fallback", fallback.SubstituteName),
		)
		s.metrics.RecordRecommendation(models.SuggestionSourceRules, reason)
		return fallback, nil
	}
	s.metrics.RecordRecommendation(models.SuggestionSourceAI, "")
	return suggestion, nil
}

func (s *AvailabilityService) consult(ctx context.Context, req models.SuggestionRequest) (*models.Suggestion, string) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	answer, err := s.recommender.Suggest(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, "timeout"
		}
		return nil, "error"
	}
	if answer == nil || answer.SubstituteName == "" {
		return nil, "empty"
	}
	for _, c := range req.Candidates {
		if c.Name != answer.SubstituteName {
			continue
		}
		reasoning := answer.Reasoning
		if reasoning == "" {
			reasoning = fallbackReasoning(c, req.Subject)
		}
		return &models.Suggestion{
			SubstituteID:   c.ID,
			SubstituteName: c.Name,
			Reasoning:      reasoning,
			Source:         models.SuggestionSourceAI,
			Candidates:     req.Candidates,
		}, ""
	}
	return nil, "unknown_candidate"
}

// Teachers lists the directory ordered by name.
func (s *AvailabilityService) Teachers(ctx context.Context, filter models.TeacherFilter) []models.Teacher {
	return s.teachers.List(filter)
}

// TeacherDay reports a teacher's free and busy periods for one day.
func (s *AvailabilityService) TeacherDay(ctx context.Context, teacherID int64, day string) (*models.TeacherDay, error) {
	if !s.slots.ValidDay(day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", day))
	}
	teacher, err := s.teachers.FindByID(teacherID)
	if err != nil {
		return nil, err
	}
	taught := make(map[int]models.TimetableSlot)
	for _, slot := range s.slots.ListSlotsForTeacher(teacher.Name, day) {
		taught[slot.Period] = slot.TimetableSlot
	}

	result := &models.TeacherDay{TeacherID: teacher.ID, Teacher: teacher.Name, Day: day}
	for _, period := range s.slots.Periods() {
		entry := models.PeriodAvailability{Period: period, Free: true}
		if slot, ok := taught[period]; ok {
			slot := slot
			entry.Free = false
			entry.Slot = &slot
		}
		result.Periods = append(result.Periods, entry)
	}
	return result, nil
}

func (s *AvailabilityService) validateSlot(day string, period int) error {
	if !s.slots.ValidDay(day) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", day))
	}
	if !s.slots.ValidPeriod(period) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("period %d out of range", period))
	}
	return nil
}

func deterministicSuggestion(candidates []models.Teacher, subject string) *models.Suggestion {
	pick := candidates[0]
	return &models.Suggestion{
		SubstituteID:   pick.ID,
		SubstituteName: pick.Name,
		Reasoning:      fallbackReasoning(pick, subject),
		Source:         models.SuggestionSourceRules,
		Candidates:     candidates,
	}
}

func fallbackReasoning(t models.Teacher, subject string) string {
	if t.Teaches(subject) {
		return fmt.Sprintf("%s already teaches %s", t.Name, subject)
	}
	return fmt.Sprintf("%s is free during this period.", t.Name)
}
