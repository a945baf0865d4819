package repository

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

// TeacherDirectory maps teacher identities to the subjects they are observed
// teaching.
type TeacherDirectory struct {
	mu          sync.RWMutex
	teachers    map[int64]models.Teacher
	byName      map[string]int64
	departments []models.Department
}

// NewTeacherDirectory constructs a directory from seed identities.
func NewTeacherDirectory(teachers []models.Teacher, departments []models.Department) (*TeacherDirectory, error) {
	d := &TeacherDirectory{
		teachers:    make(map[int64]models.Teacher, len(teachers)),
		byName:      make(map[string]int64, len(teachers)),
		departments: append([]models.Department(nil), departments...),
	}
	for _, t := range teachers {
		if _, dup := d.teachers[t.ID]; dup {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("duplicate teacher id %d", t.ID))
		}
		if _, dup := d.byName[t.Name]; dup {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("duplicate teacher name %q", t.Name))
		}
		t.Subjects = append([]string(nil), t.Subjects...)
		d.teachers[t.ID] = t
		d.byName[t.Name] = t.ID
	}
	return d, nil
}

// List returns teachers ordered by name.
func (d *TeacherDirectory) List(filter models.TeacherFilter) []models.Teacher {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var dept *models.Department
	if filter.Department != "" {
		for i := range d.departments {
			if d.departments[i].Name == filter.Department {
				dept = &d.departments[i]
				break
			}
		}
		if dept == nil {
			return []models.Teacher{}
		}
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	result := make([]models.Teacher, 0, len(d.teachers))
	for _, t := range d.teachers {
		if dept != nil && !inDepartment(t, *dept) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Name), search) {
			continue
		}
		result = append(result, cloneTeacher(t))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// FindByID looks a teacher up by id.
func (d *TeacherDirectory) FindByID(id int64) (models.Teacher, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.teachers[id]
	if !ok {
		return models.Teacher{}, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return cloneTeacher(t), nil
}

// FindByName looks a teacher up by display name.
func (d *TeacherDirectory) FindByName(name string) (models.Teacher, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	id, ok := d.byName[name]
	if !ok {
		return models.Teacher{}, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
	}
	return cloneTeacher(d.teachers[id]), nil
}

// RebuildSubjects recomputes every teacher's subjects from the slots they
// teach in their own right. Substitute cover does not count.
func (d *TeacherDirectory) RebuildSubjects(slots []models.ScheduledSlot) {
	observed := make(map[string]map[string]struct{})
	for _, slot := range slots {
		if slot.IsFree() || slot.IsSubstitute {
			continue
		}
		name := *slot.Teacher
		if observed[name] == nil {
			observed[name] = make(map[string]struct{})
		}
		observed[name][slot.Subject] = struct{}{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for id, t := range d.teachers {
		t.Subjects = sortedKeys(observed[t.Name])
		d.teachers[id] = t
	}
}

// Departments returns the configured departments.
func (d *TeacherDirectory) Departments() []models.Department {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]models.Department(nil), d.departments...)
}

// DepartmentTeacherNames lists teachers who teach at least one subject of the
// department. A department head only sees requests raised by these teachers.
func (d *TeacherDirectory) DepartmentTeacherNames(department string) []string {
	teachers := d.List(models.TeacherFilter{Department: department})
	names := make([]string, 0, len(teachers))
	for _, t := range teachers {
		names = append(names, t.Name)
	}
	return names
}

func inDepartment(t models.Teacher, dept models.Department) bool {
	if t.Department == dept.Name {
		return true
	}
	for _, subject := range t.Subjects {
		if dept.Covers(subject) {
			return true
		}
	}
	return false
}

func cloneTeacher(t models.Teacher) models.Teacher {
	t.Subjects = append([]string{}, t.Subjects...)
	return t
}
