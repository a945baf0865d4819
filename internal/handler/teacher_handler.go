package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
	"github.com/noah-isme/sma-substitute-api/pkg/response"
)

type availabilityService interface {
	Teachers(ctx context.Context, filter models.TeacherFilter) []models.Teacher
	TeacherDay(ctx context.Context, teacherID int64, day string) (*models.TeacherDay, error)
	FindCandidates(ctx context.Context, day string, period int, subject string, absentTeacherID int64) ([]models.Teacher, error)
	Recommend(ctx context.Context, day string, period int, subject string, absentTeacherID int64) (*models.Suggestion, error)
}

// TeacherHandler serves the teacher directory and substitute lookups.
type TeacherHandler struct {
	availability availabilityService
}

// NewTeacherHandler constructs a new TeacherHandler.
func NewTeacherHandler(availability availabilityService) *TeacherHandler {
	return &TeacherHandler{availability: availability}
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Param department query string false "Department name"
// @Param search query string false "Search by name"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	filter := models.TeacherFilter{
		Department: strings.TrimSpace(c.Query("department")),
		Search:     strings.TrimSpace(c.Query("search")),
	}
	teachers := h.availability.Teachers(c.Request.Context(), filter)
	response.List(c, teachers, len(teachers))
}

// Availability godoc
// @Summary Teacher availability for a day
// @Tags Teachers
// @Produce json
// @Param id path int true "Teacher ID"
// @Param day query string true "Weekday"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /teachers/{id}/availability [get]
func (h *TeacherHandler) Availability(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	day := strings.TrimSpace(c.Query("day"))
	if day == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "day is required"))
		return
	}
	result, err := h.availability.TeacherDay(c.Request.Context(), id, day)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Candidates godoc
// @Summary Substitute candidates for a slot
// @Description Free teachers other than the absent one, subject specialists first
// @Tags Substitutes
// @Produce json
// @Param day query string true "Weekday"
// @Param period query int true "Period"
// @Param subject query string false "Subject"
// @Param absentTeacherId query int false "Absent teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /substitutes/candidates [get]
func (h *TeacherHandler) Candidates(c *gin.Context) {
	var query dto.CandidateQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid candidate query"))
		return
	}
	candidates, err := h.availability.FindCandidates(c.Request.Context(), query.Day, query.Period, query.Subject, query.AbsentTeacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, nil)
}

// Recommend godoc
// @Summary Recommend one substitute
// @Tags Substitutes
// @Produce json
// @Param day query string true "Weekday"
// @Param period query int true "Period"
// @Param subject query string false "Subject"
// @Param absentTeacherId query int false "Absent teacher ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /substitutes/recommendation [get]
func (h *TeacherHandler) Recommend(c *gin.Context) {
	var query dto.CandidateQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid recommendation query"))
		return
	}
	suggestion, err := h.availability.Recommend(c.Request.Context(), query.Day, query.Period, query.Subject, query.AbsentTeacherID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, suggestion, nil)
}
