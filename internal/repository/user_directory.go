package repository

import (
	"fmt"
	"strings"
	"sync"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

// UserDirectory holds the seeded accounts keyed by lower-cased email.
type UserDirectory struct {
	mu      sync.RWMutex
	byEmail map[string]models.User
}

// NewUserDirectory indexes users by email.
func NewUserDirectory(users []models.User) (*UserDirectory, error) {
	d := &UserDirectory{byEmail: make(map[string]models.User, len(users))}
	for _, u := range users {
		key := strings.ToLower(strings.TrimSpace(u.Email))
		if key == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("user %q has no email", u.Name))
		}
		if _, dup := d.byEmail[key]; dup {
			return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("duplicate user email %q", u.Email))
		}
		d.byEmail[key] = u
	}
	return d, nil
}

// FindByEmail returns the account registered under email.
func (d *UserDirectory) FindByEmail(email string) (models.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return models.User{}, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return u, nil
}
