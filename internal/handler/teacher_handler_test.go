package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/middleware"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type availabilityServiceMock struct {
	teachers      []models.Teacher
	candidates    []models.Teacher
	candidatesErr error
	suggestion    *models.Suggestion
	lastFilter    models.TeacherFilter
	lastDay       string
	lastPeriod    int
	lastSubject   string
	lastAbsentID  int64
}

func (m *availabilityServiceMock) Teachers(ctx context.Context, filter models.TeacherFilter) []models.Teacher {
	m.lastFilter = filter
	return m.teachers
}

func (m *availabilityServiceMock) TeacherDay(ctx context.Context, teacherID int64, day string) (*models.TeacherDay, error) {
	m.lastAbsentID = teacherID
	m.lastDay = day
	return &models.TeacherDay{}, nil
}

func (m *availabilityServiceMock) FindCandidates(ctx context.Context, day string, period int, subject string, absentTeacherID int64) ([]models.Teacher, error) {
	m.lastDay, m.lastPeriod, m.lastSubject, m.lastAbsentID = day, period, subject, absentTeacherID
	return m.candidates, m.candidatesErr
}

func (m *availabilityServiceMock) Recommend(ctx context.Context, day string, period int, subject string, absentTeacherID int64) (*models.Suggestion, error) {
	m.lastDay, m.lastPeriod, m.lastSubject, m.lastAbsentID = day, period, subject, absentTeacherID
	return m.suggestion, nil
}

func TestTeacherHandlerList(t *testing.T) {
	mockSvc := &availabilityServiceMock{teachers: []models.Teacher{{ID: 6, Name: "Linda Wilson"}}}
	handler := NewTeacherHandler(mockSvc)

	c, w := newJSONContext(http.MethodGet, "/teachers?department=Science&search=%20lin%20", nil)
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Science", mockSvc.lastFilter.Department)
	assert.Equal(t, "lin", mockSvc.lastFilter.Search)
}

func TestTeacherHandlerCandidates(t *testing.T) {
	mockSvc := &availabilityServiceMock{candidates: []models.Teacher{{ID: 6, Name: "Linda Wilson"}, {ID: 1, Name: "John Smith"}}}
	handler := NewTeacherHandler(mockSvc)

	c, w := newJSONContext(http.MethodGet, "/substitutes/candidates?day=Monday&period=2&subject=Physics&absentTeacherId=2", nil)
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Candidates(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Monday", mockSvc.lastDay)
	assert.Equal(t, 2, mockSvc.lastPeriod)
	assert.Equal(t, "Physics", mockSvc.lastSubject)
	assert.Equal(t, int64(2), mockSvc.lastAbsentID)

	var body struct {
		Data []models.Teacher `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, "Linda Wilson", body.Data[0].Name)
}

func TestTeacherHandlerCandidatesErrors(t *testing.T) {
	handler := NewTeacherHandler(&availabilityServiceMock{})
	c, w := newJSONContext(http.MethodGet, "/substitutes/candidates?day=Monday&period=two", nil)
	handler.Candidates(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	handler = NewTeacherHandler(&availabilityServiceMock{candidatesErr: appErrors.ErrNoCandidates})
	c, w = newJSONContext(http.MethodGet, "/substitutes/candidates?day=Monday&period=2", nil)
	handler.Candidates(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTeacherHandlerRecommend(t *testing.T) {
	mockSvc := &availabilityServiceMock{suggestion: &models.Suggestion{SubstituteID: 6, SubstituteName: "Linda Wilson", Source: models.SuggestionSourceRules}}
	handler := NewTeacherHandler(mockSvc)

	c, w := newJSONContext(http.MethodGet, "/substitutes/recommendation?day=Tuesday&period=3&subject=History", nil)
	handler.Recommend(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, mockSvc.lastPeriod)

	var body struct {
		Data models.Suggestion `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, int64(6), body.Data.SubstituteID)
	assert.Equal(t, models.SuggestionSourceRules, body.Data.Source)
}

func TestTeacherHandlerAvailability(t *testing.T) {
	mockSvc := &availabilityServiceMock{}
	handler := NewTeacherHandler(mockSvc)

	c, w := newJSONContext(http.MethodGet, "/teachers/6/availability", nil)
	c.Params = gin.Params{{Key: "id", Value: "6"}}
	handler.Availability(c)
	require.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newJSONContext(http.MethodGet, "/teachers/6/availability?day=Monday", nil)
	c.Params = gin.Params{{Key: "id", Value: "6"}}
	handler.Availability(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(6), mockSvc.lastAbsentID)
	assert.Equal(t, "Monday", mockSvc.lastDay)
}
