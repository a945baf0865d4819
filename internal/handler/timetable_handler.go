package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/pkg/response"
)

type timetableService interface {
	UpdateSlot(ctx context.Context, actor *models.Actor, req dto.UpdateSlotRequest) (*models.TimetableSlot, error)
	Section(ctx context.Context, class string) (models.Timetable, error)
}

type snapshotProvider interface {
	Snapshot(ctx context.Context) (*dto.TimetableSnapshot, error)
}

// TimetableHandler exposes the timetable views and slot edits.
type TimetableHandler struct {
	timetable timetableService
	snapshots snapshotProvider
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(timetable timetableService, snapshots snapshotProvider) *TimetableHandler {
	return &TimetableHandler{timetable: timetable, snapshots: snapshots}
}

// Snapshot godoc
// @Summary Full state snapshot
// @Description Sections, master timetable, teachers, requests and reference data
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetable [get]
func (h *TimetableHandler) Snapshot(c *gin.Context) {
	snapshot, err := h.snapshots.Snapshot(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snapshot, nil)
}

// Section godoc
// @Summary Class section timetable
// @Tags Timetable
// @Produce json
// @Param class path string true "Class section"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetable/sections/{class} [get]
func (h *TimetableHandler) Section(c *gin.Context) {
	section, err := h.timetable.Section(c.Request.Context(), c.Param("class"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, section, nil)
}

// UpdateSlot godoc
// @Summary Edit a timetable slot
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.UpdateSlotRequest true "Slot edit"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/slots [patch]
func (h *TimetableHandler) UpdateSlot(c *gin.Context) {
	var req dto.UpdateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid slot payload"))
		return
	}
	slot, err := h.timetable.UpdateSlot(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slot, nil)
}
