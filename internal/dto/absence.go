package dto

import "github.com/noah-isme/sma-substitute-api/internal/models"

// ReportAbsenceRequest reports a teacher absent for one period. Either
// TeacherID or TeacherName identifies the teacher.
type ReportAbsenceRequest struct {
	TeacherID   *int64 `json:"teacherId"`
	TeacherName string `json:"teacherName"`
	Day         string `json:"day" validate:"required"`
	Period      int    `json:"period" validate:"required,min=1"`
	Reason      string `json:"reason" validate:"max=500"`
}

// ReportFullDayRequest reports a teacher absent for every class of a day.
type ReportFullDayRequest struct {
	TeacherID   *int64 `json:"teacherId"`
	TeacherName string `json:"teacherName"`
	Day         string `json:"day" validate:"required"`
	Reason      string `json:"reason" validate:"max=500"`
}

// ReportTomorrowRequest reports the caller absent for the next weekday.
type ReportTomorrowRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// RequestSubstituteRequest asks a teacher to cover an absence.
type RequestSubstituteRequest struct {
	SubstituteTeacherID int64  `json:"substituteTeacherId" validate:"required,gt=0"`
	Reasoning           string `json:"reasoning" validate:"max=1000"`
}

// RespondRequest carries the substitute's answer.
type RespondRequest struct {
	Accept *bool `json:"accept" validate:"required"`
}

// RespondResult reports whether a response changed the request.
type RespondResult struct {
	Request models.AbsenceRequest `json:"request"`
	Applied bool                  `json:"applied"`
}

// AbsenceQuery mirrors supported listing filters.
type AbsenceQuery struct {
	Status     []models.AbsenceStatus
	Day        string
	Department string
}

// CandidateQuery identifies the slot that needs cover.
type CandidateQuery struct {
	Day             string `form:"day" json:"day" validate:"required"`
	Period          int    `form:"period" json:"period" validate:"required,min=1"`
	Subject         string `form:"subject" json:"subject"`
	AbsentTeacherID int64  `form:"absentTeacherId" json:"absentTeacherId"`
}
