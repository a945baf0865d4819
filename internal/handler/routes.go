package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-substitute-api/internal/middleware"
	"github.com/noah-isme/sma-substitute-api/internal/models"
)

// Handlers groups every HTTP handler the API mounts.
type Handlers struct {
	Auth          *AuthHandler
	Timetable     *TimetableHandler
	Teachers      *TeacherHandler
	Absences      *AbsenceHandler
	Exports       *ExportHandler
	Notifications *NotificationHandler
	Metrics       *MetricsHandler
}

// Register mounts the API under prefix. Operational endpoints stay at the root.
func Register(r *gin.Engine, prefix string, h Handlers, tokens middleware.TokenValidator) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)
	api.POST("/auth/login", h.Auth.Login)
	if h.Exports != nil {
		// The signed token authorises the download.
		api.GET("/exports/:token", h.Exports.Download)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))
	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleTeacher)

	secured.GET("/auth/me", h.Auth.Me)
	secured.GET("/system/metrics", adminOnly, h.Metrics.System)

	secured.GET("/timetable", h.Timetable.Snapshot)
	secured.GET("/timetable/sections/:class", h.Timetable.Section)
	secured.PATCH("/timetable/slots", adminOnly, h.Timetable.UpdateSlot)

	secured.GET("/teachers", h.Teachers.List)
	secured.GET("/teachers/:id/availability", h.Teachers.Availability)
	secured.GET("/substitutes/candidates", staff, h.Teachers.Candidates)
	secured.GET("/substitutes/recommendation", staff, h.Teachers.Recommend)

	absences := secured.Group("/absences")
	absences.GET("", h.Absences.List)
	absences.POST("", staff, h.Absences.Report)
	absences.POST("/full-day", staff, h.Absences.ReportFullDay)
	absences.POST("/tomorrow", staff, h.Absences.ReportTomorrow)
	absences.POST("/export", adminOnly, h.Absences.Export)
	absences.GET("/:id", h.Absences.Get)
	absences.POST("/:id/substitute-request", adminOnly, h.Absences.RequestSubstitute)
	absences.POST("/:id/response", staff, h.Absences.Respond)
	absences.POST("/:id/assign", adminOnly, h.Absences.Assign)
	absences.POST("/:id/close", adminOnly, h.Absences.Close)

	secured.GET("/notifications", h.Notifications.List)
	secured.DELETE("/notifications/:id", h.Notifications.Dismiss)
}
