package models

import "time"

const (
	// FreeClass labels the class column of an empty slot.
	FreeClass = "Free"
	// FreePeriodSubject labels the subject of an empty slot.
	FreePeriodSubject = "Free Period"
)

// Weekdays lists the teaching days in display order.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// TimetableSlot is one (day, period) teaching assignment for one class section.
type TimetableSlot struct {
	Class           string  `json:"class" yaml:"class"`
	Subject         string  `json:"subject" yaml:"subject"`
	Teacher         *string `json:"teacher" yaml:"teacher"`
	IsSubstitute    bool    `json:"isSubstitute,omitempty" yaml:"isSubstitute,omitempty"`
	OriginalTeacher *string `json:"originalTeacher,omitempty" yaml:"originalTeacher,omitempty"`
}

// FreeSlot returns the placeholder used for periods without a class.
func FreeSlot() TimetableSlot {
	return TimetableSlot{Class: FreeClass, Subject: FreePeriodSubject}
}

// IsFree reports whether nobody teaches in the slot.
func (s TimetableSlot) IsFree() bool {
	return s.Teacher == nil || *s.Teacher == ""
}

// TeacherName returns the assigned teacher or an empty string.
func (s TimetableSlot) TeacherName() string {
	if s.Teacher == nil {
		return ""
	}
	return *s.Teacher
}

// TaughtBy reports whether the named teacher holds the slot.
func (s TimetableSlot) TaughtBy(name string) bool {
	return !s.IsFree() && *s.Teacher == name
}

// ScheduledSlot positions a slot in the week.
type ScheduledSlot struct {
	Day           string `json:"day" yaml:"day"`
	Period        int    `json:"period" yaml:"period"`
	TimetableSlot `yaml:",inline"`
}

// Timetable maps a day to its slots ordered by period (index = period-1).
type Timetable map[string][]TimetableSlot

// MasterTimetable maps a day to every section's slots per period
// (index = period-1), each period's slots ordered by class.
type MasterTimetable map[string][][]TimetableSlot

// SlotPatch is a partial update applied to a single slot. A patch without
// Substitute is a plain edit and always clears substitution markers.
type SlotPatch struct {
	Subject         *string
	Teacher         *string
	ClearTeacher    bool
	Substitute      bool
	OriginalTeacher string
}

// StringPtr returns a pointer to v.
func StringPtr(v string) *string {
	return &v
}

// SlotChange records the state of a slot after an edit or assignment.
type SlotChange struct {
	Day       string        `json:"day"`
	Period    int           `json:"period"`
	Class     string        `json:"class"`
	Slot      TimetableSlot `json:"slot"`
	ChangedBy string        `json:"changedBy"`
	ChangedAt time.Time     `json:"changedAt"`
}
