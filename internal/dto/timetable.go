package dto

import "github.com/noah-isme/sma-substitute-api/internal/models"

// UpdateSlotRequest edits one slot of the master timetable.
type UpdateSlotRequest struct {
	Day          string  `json:"day" validate:"required"`
	Period       int     `json:"period" validate:"required,min=1"`
	Class        string  `json:"class" validate:"required"`
	Subject      *string `json:"subject"`
	Teacher      *string `json:"teacher"`
	ClearTeacher bool    `json:"clearTeacher"`
}

// Patch converts the request into a store patch. Plain edits never mark a
// substitution.
func (r UpdateSlotRequest) Patch() models.SlotPatch {
	return models.SlotPatch{Subject: r.Subject, Teacher: r.Teacher, ClearTeacher: r.ClearTeacher}
}

// TimetableSnapshot is the full state a client loads at start-up.
type TimetableSnapshot struct {
	Sections    map[string]models.Timetable `json:"sections"`
	Master      models.MasterTimetable      `json:"master"`
	Teachers    []models.Teacher            `json:"teachers"`
	Requests    []models.AbsenceRequest     `json:"requests"`
	Departments []models.Department         `json:"departments"`
	Days        []string                    `json:"days"`
	Periods     []int                       `json:"periods"`
	Subjects    []string                    `json:"subjects"`
}
