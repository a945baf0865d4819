package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/pkg/response"
)

type absenceService interface {
	Report(ctx context.Context, actor *models.Actor, req dto.ReportAbsenceRequest) ([]models.AbsenceRequest, error)
	ReportFullDay(ctx context.Context, actor *models.Actor, req dto.ReportFullDayRequest) ([]models.AbsenceRequest, error)
	ReportTomorrow(ctx context.Context, actor *models.Actor, req dto.ReportTomorrowRequest) ([]models.AbsenceRequest, error)
	RequestSubstitute(ctx context.Context, actor *models.Actor, id int64, req dto.RequestSubstituteRequest) (*models.AbsenceRequest, error)
	Respond(ctx context.Context, actor *models.Actor, id int64, req dto.RespondRequest) (*dto.RespondResult, error)
	Assign(ctx context.Context, actor *models.Actor, id int64) (*models.AbsenceRequest, error)
	Close(ctx context.Context, actor *models.Actor, id int64) (*models.AbsenceRequest, error)
	Get(ctx context.Context, actor *models.Actor, id int64) (*models.AbsenceRequest, error)
	List(ctx context.Context, actor *models.Actor, query dto.AbsenceQuery) ([]models.AbsenceRequest, error)
}

type absenceExporter interface {
	ExportAbsences(ctx context.Context, actor *models.Actor, query dto.AbsenceQuery, format dto.ExportFormat) (*dto.ExportResult, error)
}

// AbsenceHandler exposes the absence lifecycle.
type AbsenceHandler struct {
	absences absenceService
	exports  absenceExporter
}

// NewAbsenceHandler constructs the handler. exports may be nil when report
// export is not configured.
func NewAbsenceHandler(absences absenceService, exports absenceExporter) *AbsenceHandler {
	return &AbsenceHandler{absences: absences, exports: exports}
}

// Report godoc
// @Summary Report an absence for one period
// @Description Creates a request for every class the teacher has at that period
// @Tags Absences
// @Accept json
// @Produce json
// @Param payload body dto.ReportAbsenceRequest true "Absence"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /absences [post]
func (h *AbsenceHandler) Report(c *gin.Context) {
	var req dto.ReportAbsenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid absence payload"))
		return
	}
	created, err := h.absences.Report(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ReportFullDay godoc
// @Summary Report an absence for a whole day
// @Tags Absences
// @Accept json
// @Produce json
// @Param payload body dto.ReportFullDayRequest true "Absence"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /absences/full-day [post]
func (h *AbsenceHandler) ReportFullDay(c *gin.Context) {
	var req dto.ReportFullDayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid absence payload"))
		return
	}
	created, err := h.absences.ReportFullDay(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// ReportTomorrow godoc
// @Summary Report own absence for tomorrow
// @Tags Absences
// @Accept json
// @Produce json
// @Param payload body dto.ReportTomorrowRequest false "Reason"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /absences/tomorrow [post]
func (h *AbsenceHandler) ReportTomorrow(c *gin.Context) {
	var req dto.ReportTomorrowRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, bindError(err, "invalid absence payload"))
			return
		}
	}
	created, err := h.absences.ReportTomorrow(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// List godoc
// @Summary List absence requests
// @Tags Absences
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param day query string false "Weekday"
// @Param department query string false "Department"
// @Success 200 {object} response.Envelope
// @Router /absences [get]
func (h *AbsenceHandler) List(c *gin.Context) {
	query := absenceQuery(c)
	requests, err := h.absences.List(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.List(c, requests, len(requests))
}

// Get godoc
// @Summary Get an absence request
// @Tags Absences
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /absences/{id} [get]
func (h *AbsenceHandler) Get(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	req, err := h.absences.Get(c.Request.Context(), actorFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// RequestSubstitute godoc
// @Summary Ask a teacher to cover
// @Tags Absences
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param payload body dto.RequestSubstituteRequest true "Substitute"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /absences/{id}/substitute-request [post]
func (h *AbsenceHandler) RequestSubstitute(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RequestSubstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid substitute request payload"))
		return
	}
	updated, err := h.absences.RequestSubstitute(c.Request.Context(), actorFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// Respond godoc
// @Summary Accept or decline a substitution request
// @Description A response to a request that is no longer awaiting one is acknowledged with applied=false
// @Tags Absences
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param payload body dto.RespondRequest true "Answer"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /absences/{id}/response [post]
func (h *AbsenceHandler) Respond(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid response payload"))
		return
	}
	result, err := h.absences.Respond(c.Request.Context(), actorFromContext(c), id, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Assign godoc
// @Summary Put the accepted substitute into the timetable
// @Tags Absences
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /absences/{id}/assign [post]
func (h *AbsenceHandler) Assign(c *gin.Context) {
	h.transition(c, h.absences.Assign)
}

// Close godoc
// @Summary Close an absence request
// @Tags Absences
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /absences/{id}/close [post]
func (h *AbsenceHandler) Close(c *gin.Context) {
	h.transition(c, h.absences.Close)
}

// Export godoc
// @Summary Export absence requests
// @Tags Absences
// @Produce json
// @Param format query string false "csv or pdf" default(csv)
// @Param status query string false "Comma separated statuses"
// @Param day query string false "Weekday"
// @Param department query string false "Department"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /absences/export [post]
func (h *AbsenceHandler) Export(c *gin.Context) {
	if h.exports == nil {
		c.Status(http.StatusNotImplemented)
		return
	}
	format := dto.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(dto.ExportFormatCSV))))
	result, err := h.exports.ExportAbsences(c.Request.Context(), actorFromContext(c), absenceQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

func (h *AbsenceHandler) transition(c *gin.Context, fn func(context.Context, *models.Actor, int64) (*models.AbsenceRequest, error)) {
	id, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	updated, err := fn(c.Request.Context(), actorFromContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

func absenceQuery(c *gin.Context) dto.AbsenceQuery {
	query := dto.AbsenceQuery{
		Day:        strings.TrimSpace(c.Query("day")),
		Department: strings.TrimSpace(c.Query("department")),
	}
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				query.Status = append(query.Status, models.AbsenceStatus(strings.ToUpper(part)))
			}
		}
	}
	return query
}
