package models

// Teacher is a staff member eligible to cover classes. Subjects are derived
// from the timetable, never authored.
type Teacher struct {
	ID         int64    `json:"id"`
	Name       string   `json:"name"`
	Subjects   []string `json:"subjects"`
	Department string   `json:"department,omitempty"`
}

// Teaches reports whether subject is among the teacher's observed subjects.
func (t Teacher) Teaches(subject string) bool {
	for _, s := range t.Subjects {
		if s == subject {
			return true
		}
	}
	return false
}

// TeacherFilter narrows directory listings.
type TeacherFilter struct {
	Department string
	Search     string
}

// PeriodAvailability describes one period of a teacher's day.
type PeriodAvailability struct {
	Period int            `json:"period"`
	Free   bool           `json:"free"`
	Slot   *TimetableSlot `json:"slot,omitempty"`
}

// TeacherDay is a teacher's per-period availability for a single day.
type TeacherDay struct {
	TeacherID int64                `json:"teacherId"`
	Teacher   string               `json:"teacher"`
	Day       string               `json:"day"`
	Periods   []PeriodAvailability `json:"periods"`
}
