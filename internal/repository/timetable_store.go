package repository

import (
	"fmt"
	"sort"
	"sync"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type slotKey struct {
	Day    string
	Period int
	Class  string
}

type teacherKey struct {
	Day     string
	Period  int
	Teacher string
}

// TimetableView is a consistent copy of both timetable projections.
type TimetableView struct {
	Sections map[string]models.Timetable
	Master   models.MasterTimetable
	Days     []string
	Periods  []int
	Subjects []string
}

// TimetableStore holds the authoritative slot list and keeps the per-section
// and master projections in step with it. Both projections change under the
// same write lock, so readers never see them disagree.
type TimetableStore struct {
	mu       sync.RWMutex
	days     []string
	periods  int
	slots    map[slotKey]models.TimetableSlot
	sections map[string]models.Timetable
	master   models.MasterTimetable
}

// NewTimetableStore builds an empty store for the given week shape.
func NewTimetableStore(days []string, periods int) *TimetableStore {
	if len(days) == 0 {
		days = models.Weekdays
	}
	if periods <= 0 {
		periods = 8
	}
	s := &TimetableStore{
		days:    append([]string(nil), days...),
		periods: periods,
		slots:   make(map[slotKey]models.TimetableSlot),
	}
	s.sections, s.master = s.project(s.slots)
	return s
}

// Load replaces the store contents. The input must respect the
// (day, period, class) and (day, period, teacher) uniqueness rules.
func (s *TimetableStore) Load(rows []models.ScheduledSlot) error {
	slots := make(map[slotKey]models.TimetableSlot, len(rows))
	busy := make(map[teacherKey]string)
	for _, row := range rows {
		if !s.ValidDay(row.Day) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", row.Day))
		}
		if !s.ValidPeriod(row.Period) {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("period %d out of range", row.Period))
		}
		if row.Class == "" {
			return appErrors.Clone(appErrors.ErrValidation, "slot class is required")
		}
		key := slotKey{Day: row.Day, Period: row.Period, Class: row.Class}
		if _, dup := slots[key]; dup {
			return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("duplicate slot for %s on %s, Period %d", row.Class, row.Day, row.Period))
		}
		if !row.IsFree() {
			tk := teacherKey{Day: row.Day, Period: row.Period, Teacher: *row.Teacher}
			if other, clash := busy[tk]; clash {
				return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s teaches both %s and %s on %s, Period %d", *row.Teacher, other, row.Class, row.Day, row.Period))
			}
			busy[tk] = row.Class
		}
		slots[key] = row.TimetableSlot
	}

	sections, master := s.project(slots)

	s.mu.Lock()
	s.slots = slots
	s.sections = sections
	s.master = master
	s.mu.Unlock()
	return nil
}

// GetSlot returns the slot for a class at (day, period).
func (s *TimetableStore) GetSlot(day string, period int, class string) (models.TimetableSlot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	slot, ok := s.slots[slotKey{Day: day, Period: period, Class: class}]
	if !ok {
		return models.TimetableSlot{}, appErrors.Clone(appErrors.ErrNotFound, "slot not found in master timetable")
	}
	return slot, nil
}

// UpdateSlot applies patch to the slot and returns its new state. A patch that
// would double-book a teacher is rejected without touching the store.
func (s *TimetableStore) UpdateSlot(day string, period int, class string, patch models.SlotPatch) (models.TimetableSlot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := slotKey{Day: day, Period: period, Class: class}
	current, ok := s.slots[key]
	if !ok {
		return models.TimetableSlot{}, appErrors.Clone(appErrors.ErrNotFound, "slot not found in master timetable")
	}
	next := applyPatch(current, patch)
	if !next.IsFree() {
		if other, clash := s.clashLocked(key, *next.Teacher); clash {
			return models.TimetableSlot{}, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s already teaches %s on %s, Period %d", *next.Teacher, other, day, period))
		}
	}

	s.slots[key] = next
	s.sections[class][day][period-1] = next
	row := s.master[day][period-1]
	for i := range row {
		if row[i].Class == class {
			row[i] = next
			break
		}
	}
	return next, nil
}

// ListSlotsForTeacher returns the teacher's slots ordered by day then period.
// An empty day lists the whole week.
func (s *TimetableStore) ListSlotsForTeacher(name, day string) []models.ScheduledSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []models.ScheduledSlot
	for key, slot := range s.slots {
		if !slot.TaughtBy(name) {
			continue
		}
		if day != "" && key.Day != day {
			continue
		}
		result = append(result, models.ScheduledSlot{Day: key.Day, Period: key.Period, TimetableSlot: slot})
	}
	s.sortLocked(result)
	return result
}

// SlotsAt returns every section's slot at (day, period) ordered by class.
func (s *TimetableStore) SlotsAt(day string, period int) []models.ScheduledSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.ValidDay(day) || !s.ValidPeriod(period) {
		return nil
	}
	row := s.master[day][period-1]
	result := make([]models.ScheduledSlot, 0, len(row))
	for _, slot := range row {
		result = append(result, models.ScheduledSlot{Day: day, Period: period, TimetableSlot: slot})
	}
	return result
}

// BusyTeachers returns the names teaching any section at (day, period).
func (s *TimetableStore) BusyTeachers(day string, period int) map[string]struct{} {
	busy := make(map[string]struct{})
	for _, slot := range s.SlotsAt(day, period) {
		if !slot.IsFree() {
			busy[*slot.Teacher] = struct{}{}
		}
	}
	return busy
}

// Slots returns the underlying slot list ordered by day, period and class.
func (s *TimetableStore) Slots() []models.ScheduledSlot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]models.ScheduledSlot, 0, len(s.slots))
	for key, slot := range s.slots {
		result = append(result, models.ScheduledSlot{Day: key.Day, Period: key.Period, TimetableSlot: slot})
	}
	s.sortLocked(result)
	return result
}

// SectionTimetable returns the display grid for one class section.
func (s *TimetableStore) SectionTimetable(class string) (models.Timetable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tt, ok := s.sections[class]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no timetable for class %s", class))
	}
	return copyTimetable(tt), nil
}

// Classes lists the loaded class sections.
func (s *TimetableStore) Classes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	classes := make([]string, 0, len(s.sections))
	for class := range s.sections {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes
}

// View copies both projections under a single read lock.
func (s *TimetableStore) View() TimetableView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sections := make(map[string]models.Timetable, len(s.sections))
	for class, tt := range s.sections {
		sections[class] = copyTimetable(tt)
	}
	master := make(models.MasterTimetable, len(s.master))
	for day, periods := range s.master {
		rows := make([][]models.TimetableSlot, len(periods))
		for i, row := range periods {
			rows[i] = append([]models.TimetableSlot(nil), row...)
		}
		master[day] = rows
	}
	subjects := make(map[string]struct{})
	for _, slot := range s.slots {
		if !slot.IsFree() {
			subjects[slot.Subject] = struct{}{}
		}
	}
	return TimetableView{
		Sections: sections,
		Master:   master,
		Days:     append([]string(nil), s.days...),
		Periods:  s.periodList(),
		Subjects: sortedKeys(subjects),
	}
}

// Days returns the configured teaching days.
func (s *TimetableStore) Days() []string {
	return append([]string(nil), s.days...)
}

// Periods returns the 1-based period numbers of a day.
func (s *TimetableStore) Periods() []int {
	return s.periodList()
}

// ValidDay reports whether day is a configured teaching day.
func (s *TimetableStore) ValidDay(day string) bool {
	return s.dayIndex(day) >= 0
}

// ValidPeriod reports whether period is within the configured range.
func (s *TimetableStore) ValidPeriod(period int) bool {
	return period >= 1 && period <= s.periods
}

// days and periods are fixed at construction and read without the lock.
func (s *TimetableStore) dayIndex(day string) int {
	for i, d := range s.days {
		if d == day {
			return i
		}
	}
	return -1
}

func (s *TimetableStore) periodList() []int {
	periods := make([]int, s.periods)
	for i := range periods {
		periods[i] = i + 1
	}
	return periods
}

func (s *TimetableStore) clashLocked(key slotKey, teacher string) (string, bool) {
	for _, slot := range s.master[key.Day][key.Period-1] {
		if slot.Class != key.Class && slot.TaughtBy(teacher) {
			return slot.Class, true
		}
	}
	return "", false
}

func (s *TimetableStore) sortLocked(rows []models.ScheduledSlot) {
	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := s.dayIndex(rows[i].Day), s.dayIndex(rows[j].Day)
		if di != dj {
			return di < dj
		}
		if rows[i].Period != rows[j].Period {
			return rows[i].Period < rows[j].Period
		}
		return rows[i].Class < rows[j].Class
	})
}

func (s *TimetableStore) project(slots map[slotKey]models.TimetableSlot) (map[string]models.Timetable, models.MasterTimetable) {
	sections := make(map[string]models.Timetable)
	master := make(models.MasterTimetable, len(s.days))
	for _, day := range s.days {
		master[day] = make([][]models.TimetableSlot, s.periods)
	}
	for key, slot := range slots {
		tt, ok := sections[key.Class]
		if !ok {
			tt = make(models.Timetable, len(s.days))
			for _, day := range s.days {
				row := make([]models.TimetableSlot, s.periods)
				for i := range row {
					row[i] = models.FreeSlot()
				}
				tt[day] = row
			}
			sections[key.Class] = tt
		}
		tt[key.Day][key.Period-1] = slot
		master[key.Day][key.Period-1] = append(master[key.Day][key.Period-1], slot)
	}
	for _, periods := range master {
		for _, row := range periods {
			sort.Slice(row, func(i, j int) bool { return row[i].Class < row[j].Class })
		}
	}
	return sections, master
}

func applyPatch(current models.TimetableSlot, patch models.SlotPatch) models.TimetableSlot {
	next := current
	if patch.Subject != nil {
		next.Subject = *patch.Subject
	}
	if patch.Teacher != nil && *patch.Teacher != "" {
		next.Teacher = models.StringPtr(*patch.Teacher)
	}
	if patch.ClearTeacher {
		next.Teacher = nil
		if patch.Subject == nil {
			next.Subject = models.FreePeriodSubject
		}
	}
	if patch.Substitute {
		next.IsSubstitute = true
		next.OriginalTeacher = models.StringPtr(patch.OriginalTeacher)
	} else {
		next.IsSubstitute = false
		next.OriginalTeacher = nil
	}
	return next
}

func copyTimetable(tt models.Timetable) models.Timetable {
	out := make(models.Timetable, len(tt))
	for day, row := range tt {
		out[day] = append([]models.TimetableSlot(nil), row...)
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
