package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/repository"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

func slotRow(day string, period int, class, subject, teacher string) models.ScheduledSlot {
	row := models.ScheduledSlot{Day: day, Period: period}
	row.Class = class
	row.Subject = subject
	if teacher != "" {
		row.Teacher = models.StringPtr(teacher)
	}
	return row
}

// schoolFixture is a small week: Emily Jones teaches Physics to 10-B in
// Monday period 2 while Linda Wilson, who also teaches Physics, is free.
func schoolFixture(t *testing.T) (*repository.TimetableStore, *repository.TeacherDirectory) {
	t.Helper()
	store := repository.NewTimetableStore([]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}, 4)
	require.NoError(t, store.Load([]models.ScheduledSlot{
		slotRow("Monday", 1, "10-A", "Mathematics", "John Smith"),
		slotRow("Monday", 1, "10-B", "English", "Sarah Brown"),
		slotRow("Monday", 2, "10-A", "History", "Michael Williams"),
		slotRow("Monday", 2, "10-B", "Physics", "Emily Jones"),
		slotRow("Monday", 3, "10-B", "Physics", "Emily Jones"),
		slotRow("Monday", 3, "10-A", "Chemistry", "Linda Wilson"),
		slotRow("Tuesday", 1, "10-A", "Physics", "Linda Wilson"),
		slotRow("Tuesday", 2, "10-B", "Mathematics", "John Smith"),
		slotRow("Tuesday", 3, "10-A", "History", "Michael Williams"),
		slotRow("Wednesday", 1, "10-A", "English", "Sarah Brown"),
	}))
	dir, err := repository.NewTeacherDirectory([]models.Teacher{
		{ID: 1, Name: "John Smith"},
		{ID: 2, Name: "Emily Jones"},
		{ID: 3, Name: "Sarah Brown"},
		{ID: 4, Name: "Michael Williams"},
		{ID: 6, Name: "Linda Wilson"},
	}, []models.Department{
		{Name: "Science", Head: "Emily Jones", Subjects: []string{"Physics", "Chemistry"}},
	})
	require.NoError(t, err)
	dir.RebuildSubjects(store.Slots())
	return store, dir
}

type stubRecommender struct {
	answer *models.Suggestion
	err    error
	delay  time.Duration
	calls  int
	last   models.SuggestionRequest
}

func (s *stubRecommender) Suggest(ctx context.Context, req models.SuggestionRequest) (*models.Suggestion, error) {
	s.calls++
	s.last = req
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.answer, s.err
}

func TestAvailabilityServiceFindCandidates(t *testing.T) {
	store, dir := schoolFixture(t)
	svc := NewAvailabilityService(store, dir, nil)

	candidates, err := svc.FindCandidates(context.Background(), "Monday", 2, "Physics", 2)
	require.NoError(t, err)

	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Linda Wilson", "John Smith", "Sarah Brown"}, names)

	again, err := svc.FindCandidates(context.Background(), "Monday", 2, "Physics", 2)
	require.NoError(t, err)
	assert.Equal(t, candidates, again)
}

type heldSubstitutes map[string]int64

func (h heldSubstitutes) PendingSubstitutes(day string, period int) map[string]int64 {
	if day == "Monday" && period == 2 {
		return h
	}
	return nil
}

func TestAvailabilityServiceSkipsHeldSubstitutes(t *testing.T) {
	store, dir := schoolFixture(t)
	svc := NewAvailabilityService(store, dir, nil, WithPendingSubstitutes(heldSubstitutes{"Linda Wilson": 1}))

	candidates, err := svc.FindCandidates(context.Background(), "Monday", 2, "Physics", 4)
	require.NoError(t, err)
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"John Smith", "Sarah Brown"}, names)

	suggestion, err := svc.Recommend(context.Background(), "Monday", 2, "Physics", 4)
	require.NoError(t, err)
	assert.Equal(t, "John Smith", suggestion.SubstituteName)

	later, err := svc.FindCandidates(context.Background(), "Tuesday", 2, "Physics", 4)
	require.NoError(t, err)
	assert.Equal(t, "Linda Wilson", later[0].Name)
}

func TestAvailabilityServiceFindCandidatesValidation(t *testing.T) {
	store, dir := schoolFixture(t)
	svc := NewAvailabilityService(store, dir, nil)

	_, err := svc.FindCandidates(context.Background(), "Sunday", 1, "Physics", 2)
	require.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.FindCandidates(context.Background(), "Monday", 9, "Physics", 2)
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAvailabilityServiceNoCandidates(t *testing.T) {
	store := repository.NewTimetableStore([]string{"Monday"}, 1)
	require.NoError(t, store.Load([]models.ScheduledSlot{
		slotRow("Monday", 1, "10-A", "Mathematics", "John Smith"),
		slotRow("Monday", 1, "10-B", "Physics", "Emily Jones"),
	}))
	dir, err := repository.NewTeacherDirectory([]models.Teacher{{ID: 1, Name: "John Smith"}, {ID: 2, Name: "Emily Jones"}}, nil)
	require.NoError(t, err)

	svc := NewAvailabilityService(store, dir, nil)
	_, err = svc.FindCandidates(context.Background(), "Monday", 1, "Physics", 2)
	require.ErrorIs(t, err, appErrors.ErrNoCandidates)

	_, err = svc.Recommend(context.Background(), "Monday", 1, "Physics", 2)
	require.ErrorIs(t, err, appErrors.ErrNoCandidates)
}

func TestAvailabilityServiceRecommendWithoutRecommender(t *testing.T) {
	store, dir := schoolFixture(t)
	svc := NewAvailabilityService(store, dir, nil)

	suggestion, err := svc.Recommend(context.Background(), "Monday", 2, "Physics", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(6), suggestion.SubstituteID)
	assert.Equal(t, "Linda Wilson", suggestion.SubstituteName)
	assert.Equal(t, models.SuggestionSourceRules, suggestion.Source)
	assert.Equal(t, "Linda Wilson already teaches Physics", suggestion.Reasoning)
	assert.Len(t, suggestion.Candidates, 3)
}

func TestAvailabilityServiceRecommendUsesNamedCandidate(t *testing.T) {
	store, dir := schoolFixture(t)
	rec := &stubRecommender{answer: &models.Suggestion{SubstituteName: "Sarah Brown", Reasoning: "Knows the class"}}
	metrics := NewMetricsService()
	svc := NewAvailabilityService(store, dir, nil, WithRecommender(rec, time.Second), WithAvailabilityMetrics(metrics))

	suggestion, err := svc.Recommend(context.Background(), "Monday", 2, "Physics", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), suggestion.SubstituteID)
	assert.Equal(t, "Knows the class", suggestion.Reasoning)
	assert.Equal(t, models.SuggestionSourceAI, suggestion.Source)
	assert.Equal(t, 1, rec.calls)
	assert.Equal(t, "Physics", rec.last.Subject)
	assert.Len(t, rec.last.Candidates, 3)
	assert.Zero(t, metrics.Snapshot().RecommenderFallbacks)
}

func TestAvailabilityServiceRecommendFallsBack(t *testing.T) {
	tests := []struct {
		name string
		rec  *stubRecommender
	}{
		{name: "error", rec: &stubRecommender{err: errors.New("boom")}},
		{name: "timeout", rec: &stubRecommender{delay: time.Second, answer: &models.Suggestion{SubstituteName: "Sarah Brown"}}},
		{name: "empty answer", rec: &stubRecommender{answer: &models.Suggestion{}}},
		{name: "nil answer", rec: &stubRecommender{}},
		{name: "busy teacher", rec: &stubRecommender{answer: &models.Suggestion{SubstituteName: "Michael Williams"}}},
		{name: "absent teacher", rec: &stubRecommender{answer: &models.Suggestion{SubstituteName: "Emily Jones"}}},
		{name: "unknown name", rec: &stubRecommender{answer: &models.Suggestion{SubstituteName: "Someone Else"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, dir := schoolFixture(t)
			metrics := NewMetricsService()
			svc := NewAvailabilityService(store, dir, nil, WithRecommender(tc.rec, 20*time.Millisecond), WithAvailabilityMetrics(metrics))

			suggestion, err := svc.Recommend(context.Background(), "Monday", 2, "Physics", 2)
			require.NoError(t, err)
			assert.Equal(t, "Linda Wilson", suggestion.SubstituteName)
			assert.Equal(t, models.SuggestionSourceRules, suggestion.Source)
			assert.Equal(t, uint64(1), metrics.Snapshot().RecommenderFallbacks)
		})
	}
}

func TestAvailabilityServiceTeacherDay(t *testing.T) {
	store, dir := schoolFixture(t)
	svc := NewAvailabilityService(store, dir, nil)

	day, err := svc.TeacherDay(context.Background(), 2, "Monday")
	require.NoError(t, err)
	assert.Equal(t, "Emily Jones", day.Teacher)
	require.Len(t, day.Periods, 4)
	assert.True(t, day.Periods[0].Free)
	assert.False(t, day.Periods[1].Free)
	require.NotNil(t, day.Periods[1].Slot)
	assert.Equal(t, "10-B", day.Periods[1].Slot.Class)
	assert.False(t, day.Periods[2].Free)
	assert.True(t, day.Periods[3].Free)

	_, err = svc.TeacherDay(context.Background(), 99, "Monday")
	require.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.TeacherDay(context.Background(), 2, "Someday")
	require.ErrorIs(t, err, appErrors.ErrValidation)

	teachers := svc.Teachers(context.Background(), models.TeacherFilter{Department: "Science"})
	require.Len(t, teachers, 2)
	assert.Equal(t, "Emily Jones", teachers[0].Name)
}
