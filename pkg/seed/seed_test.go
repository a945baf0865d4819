package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-substitute-api/internal/models"
)

const sample = `
days: [Monday, Tuesday]
periods: 2
departments:
  - {name: Science, head: Mr. Stanley Hudson, subjects: [Physics]}
teachers:
  - {id: 1, name: Ms. Emily Jones}
users:
  - {email: admin@school.edu, password: admin, name: Admin, role: ADMIN}
  - {id: u-ej, email: ej@school.edu, password: pw, name: Emily, role: TEACHER, teacherId: 1}
slots:
  - {day: Monday, period: 2, class: 10-B, subject: Physics, teacher: Ms. Emily Jones}
  - {day: Monday, period: 1, class: 10-B, subject: Free Period, teacher: null}
`

func TestParse(t *testing.T) {
	data, err := Parse([]byte(sample), Options{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)

	assert.Equal(t, []string{"Monday", "Tuesday"}, data.Days)
	assert.Equal(t, 2, data.Periods)
	require.Len(t, data.Slots, 2)
	assert.True(t, data.Slots[0].TaughtBy("Ms. Emily Jones"))
	assert.True(t, data.Slots[1].IsFree())

	require.Len(t, data.Users, 2)
	assert.Equal(t, "admin@school.edu", data.Users[0].ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(data.Users[0].PasswordHash), []byte("admin")))
	assert.Equal(t, "Ms. Emily Jones", data.Users[1].Name)
	assert.Equal(t, models.RoleTeacher, data.Users[1].Role)
}

func TestParseRejectsBadUsers(t *testing.T) {
	cases := map[string]string{
		"unknown role":    "users:\n  - {email: a@b.c, password: x, role: JANITOR}\n",
		"missing secret":  "users:\n  - {email: a@b.c, role: ADMIN}\n",
		"unknown teacher": "users:\n  - {email: a@b.c, password: x, role: TEACHER, teacherId: 9}\n",
		"unknown field":   "colour: blue\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), Options{BcryptCost: bcrypt.MinCost})
			require.Error(t, err)
		})
	}
}

func TestLoadFileBundledSeed(t *testing.T) {
	path := filepath.Join("..", "..", "seed", "timetable.yaml")
	if _, err := os.Stat(path); err != nil {
		t.Skip("bundled seed not present")
	}
	data, err := LoadFile(path, Options{BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	assert.Len(t, data.Teachers, 8)
	assert.Equal(t, 6, data.Periods)
	assert.Len(t, data.Slots, 5*6*6)
}
