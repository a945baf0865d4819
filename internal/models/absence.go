package models

import "time"

// AbsenceStatus captures the lifecycle of a reported absence.
type AbsenceStatus string

const (
	AbsenceStatusPendingAction   AbsenceStatus = "PENDING_ACTION"
	AbsenceStatusPendingResponse AbsenceStatus = "PENDING_SUBSTITUTE_RESPONSE"
	AbsenceStatusAccepted        AbsenceStatus = "SUBSTITUTE_ACCEPTED"
	AbsenceStatusDeclined        AbsenceStatus = "SUBSTITUTE_DECLINED"
	AbsenceStatusAssigned        AbsenceStatus = "ASSIGNED"
	AbsenceStatusClosed          AbsenceStatus = "CLOSED"
)

var absenceTransitions = map[AbsenceStatus][]AbsenceStatus{
	AbsenceStatusPendingAction:   {AbsenceStatusPendingResponse, AbsenceStatusClosed},
	AbsenceStatusDeclined:        {AbsenceStatusPendingResponse, AbsenceStatusClosed},
	AbsenceStatusPendingResponse: {AbsenceStatusAccepted, AbsenceStatusDeclined},
	AbsenceStatusAccepted:        {AbsenceStatusAssigned, AbsenceStatusDeclined},
	AbsenceStatusAssigned:        {AbsenceStatusClosed},
}

// CanTransition reports whether the lifecycle permits moving from one status to another.
func CanTransition(from, to AbsenceStatus) bool {
	for _, next := range absenceTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known status.
func (s AbsenceStatus) Valid() bool {
	switch s {
	case AbsenceStatusPendingAction,
		AbsenceStatusPendingResponse,
		AbsenceStatusAccepted,
		AbsenceStatusDeclined,
		AbsenceStatusAssigned,
		AbsenceStatusClosed:
		return true
	}
	return false
}

// Open reports whether the request still needs attention.
func (s AbsenceStatus) Open() bool {
	return s != AbsenceStatusAssigned && s != AbsenceStatusClosed
}

// AbsenceRequest tracks one affected slot of a reported absence.
type AbsenceRequest struct {
	ID                      int64         `json:"id"`
	AbsentTeacherID         int64         `json:"absentTeacherId"`
	AbsentTeacherName       string        `json:"absentTeacherName"`
	Day                     string        `json:"day"`
	Period                  int           `json:"period"`
	Slot                    TimetableSlot `json:"slot"`
	Status                  AbsenceStatus `json:"status"`
	RequestedSubstituteID   *int64        `json:"requestedSubstituteTeacherId,omitempty"`
	RequestedSubstituteName *string       `json:"requestedSubstituteTeacherName,omitempty"`
	AssignedSubstituteID    *int64        `json:"assignedSubstituteTeacherId,omitempty"`
	AssignedSubstituteName  *string       `json:"assignedSubstituteTeacherName,omitempty"`
	Reasoning               *string       `json:"reasoning,omitempty"`
	Timestamp               time.Time     `json:"timestamp"`
	UpdatedAt               time.Time     `json:"updatedAt"`
}

// AbsenceFilter constrains request listings.
type AbsenceFilter struct {
	Status        []AbsenceStatus
	Day           string
	TeacherNames  []string
	AbsentTeacher *int64
	Substitute    *int64
}

// Matches reports whether req satisfies the filter.
func (f AbsenceFilter) Matches(req AbsenceRequest) bool {
	if len(f.Status) > 0 {
		ok := false
		for _, s := range f.Status {
			if req.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Day != "" && req.Day != f.Day {
		return false
	}
	if f.TeacherNames != nil {
		ok := false
		for _, name := range f.TeacherNames {
			if req.AbsentTeacherName == name {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.AbsentTeacher != nil && req.AbsentTeacherID != *f.AbsentTeacher {
		return false
	}
	if f.Substitute != nil && (req.RequestedSubstituteID == nil || *req.RequestedSubstituteID != *f.Substitute) {
		return false
	}
	return true
}
