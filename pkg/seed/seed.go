// Package seed loads the starting week, staff and accounts from YAML.
package seed

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

type teacherEntry struct {
	ID         int64  `yaml:"id"`
	Name       string `yaml:"name"`
	Department string `yaml:"department"`
}

type userEntry struct {
	ID           string          `yaml:"id"`
	Email        string          `yaml:"email"`
	Password     string          `yaml:"password"`
	PasswordHash string          `yaml:"passwordHash"`
	Name         string          `yaml:"name"`
	Role         models.UserRole `yaml:"role"`
	TeacherID    *int64          `yaml:"teacherId"`
	Department   string          `yaml:"department"`
}

type document struct {
	Days        []string               `yaml:"days"`
	Periods     int                    `yaml:"periods"`
	Departments []models.Department    `yaml:"departments"`
	Teachers    []teacherEntry         `yaml:"teachers"`
	Users       []userEntry            `yaml:"users"`
	Slots       []models.ScheduledSlot `yaml:"slots"`
}

// Data is a decoded seed ready to hand to the stores.
type Data struct {
	Days        []string
	Periods     int
	Departments []models.Department
	Teachers    []models.Teacher
	Users       []models.User
	Slots       []models.ScheduledSlot
}

// Options tunes decoding.
type Options struct {
	// BcryptCost is used for plain-text seed passwords. Zero means bcrypt.DefaultCost.
	BcryptCost int
}

// LoadFile reads and decodes the seed at path.
func LoadFile(path string, opts Options) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	data, err := Parse(raw, opts)
	if err != nil {
		return nil, fmt.Errorf("seed %s: %w", path, err)
	}
	return data, nil
}

// Parse decodes a seed document. Unknown fields are rejected.
func Parse(raw []byte, opts Options) (*Data, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}

	out := &Data{
		Days:        doc.Days,
		Periods:     doc.Periods,
		Departments: doc.Departments,
		Slots:       doc.Slots,
	}
	if len(out.Days) == 0 {
		out.Days = models.Weekdays
	}

	known := make(map[int64]string, len(doc.Teachers))
	for _, t := range doc.Teachers {
		if t.ID <= 0 || strings.TrimSpace(t.Name) == "" {
			return nil, fmt.Errorf("teacher entries need a positive id and a name")
		}
		known[t.ID] = t.Name
		out.Teachers = append(out.Teachers, models.Teacher{ID: t.ID, Name: t.Name, Department: t.Department})
	}

	for _, u := range doc.Users {
		user, err := u.toUser(opts.BcryptCost, known)
		if err != nil {
			return nil, err
		}
		out.Users = append(out.Users, user)
	}
	return out, nil
}

func (u userEntry) toUser(cost int, teachers map[int64]string) (models.User, error) {
	switch u.Role {
	case models.RoleAdmin, models.RoleTeacher, models.RoleStudent:
	default:
		return models.User{}, fmt.Errorf("user %s: unknown role %q", u.Email, u.Role)
	}
	hash := u.PasswordHash
	if hash == "" {
		if u.Password == "" {
			return models.User{}, fmt.Errorf("user %s: password or passwordHash required", u.Email)
		}
		b, err := bcrypt.GenerateFromPassword([]byte(u.Password), cost)
		if err != nil {
			return models.User{}, fmt.Errorf("user %s: hash password: %w", u.Email, err)
		}
		hash = string(b)
	}
	name := u.Name
	if u.TeacherID != nil {
		teacherName, ok := teachers[*u.TeacherID]
		if !ok {
			return models.User{}, fmt.Errorf("user %s: unknown teacher id %d", u.Email, *u.TeacherID)
		}
		// Notifications are addressed by teacher name.
		name = teacherName
	}
	id := u.ID
	if id == "" {
		id = u.Email
	}
	return models.User{
		ID:           id,
		Email:        u.Email,
		PasswordHash: hash,
		Name:         name,
		Role:         u.Role,
		TeacherID:    u.TeacherID,
		Department:   u.Department,
	}, nil
}
