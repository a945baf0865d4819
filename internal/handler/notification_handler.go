package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/pkg/response"
)

type notificationService interface {
	List(ctx context.Context, actor *models.Actor, filter models.NotificationFilter) ([]models.Notification, error)
	Dismiss(ctx context.Context, actor *models.Actor, id string) error
}

// NotificationHandler serves the notification feed.
type NotificationHandler struct {
	notifications notificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(notifications notificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List godoc
// @Summary Notification feed
// @Description Newest first. Non-admins see broadcasts and entries addressed to them
// @Tags Notifications
// @Produce json
// @Param type query string false "success, error, info or action"
// @Param limit query int false "Maximum entries"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	filter := models.NotificationFilter{Type: models.NotificationType(strings.ToLower(c.Query("type")))}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	items, err := h.notifications.List(c.Request.Context(), actorFromContext(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Dismiss godoc
// @Summary Dismiss a notification
// @Tags Notifications
// @Param id path string true "Notification ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /notifications/{id} [delete]
func (h *NotificationHandler) Dismiss(c *gin.Context) {
	if err := h.notifications.Dismiss(c.Request.Context(), actorFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
