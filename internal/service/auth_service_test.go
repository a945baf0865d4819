package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/repository"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

func newAuthFixture(t *testing.T) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)
	teacherID := int64(6)
	users, err := repository.NewUserDirectory([]models.User{
		{ID: "lwilson", Email: "lwilson@school.edu", PasswordHash: string(hash), Name: "Linda Wilson", Role: models.RoleTeacher, TeacherID: &teacherID},
		{ID: "hod.science", Email: "hod.science@school.edu", PasswordHash: string(hash), Name: "Emily Jones", Role: models.RoleTeacher, Department: "Science"},
	})
	require.NoError(t, err)
	return NewAuthService(users, nil, nil, AuthConfig{AccessTokenSecret: "jwt-secret", AccessTokenExpiry: time.Hour, Issuer: "substitute-desk"})
}

func TestAuthServiceLoginIssuesValidToken(t *testing.T) {
	svc := newAuthFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "LWilson@school.edu", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, "Linda Wilson", res.User.Name)
	require.NotNil(t, res.User.TeacherID)
	assert.Equal(t, int64(6), *res.User.TeacherID)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "lwilson", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, "substitute-desk", claims.Issuer)

	actor := claims.Actor()
	assert.True(t, actor.IsTeacher(6))
	assert.False(t, actor.IsAdmin())
}

func TestAuthServiceLoginCarriesDepartment(t *testing.T) {
	svc := newAuthFixture(t)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "hod.science@school.edu", Password: "secret"})
	require.NoError(t, err)
	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "Science", claims.Department)
	assert.Nil(t, claims.TeacherID)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	svc := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Login(ctx, models.LoginRequest{Email: "lwilson@school.edu", Password: "wrong"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@school.edu", Password: "secret"})
	require.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "not-an-email", Password: "secret"})
	require.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestAuthServiceValidateTokenRejects(t *testing.T) {
	svc := newAuthFixture(t)
	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "lwilson@school.edu", Password: "secret"})
	require.NoError(t, err)

	other := NewAuthService(nil, nil, nil, AuthConfig{AccessTokenSecret: "different"})
	_, err = other.ValidateToken(res.AccessToken)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := svc.generateAccessToken(models.User{ID: "lwilson", Role: models.RoleTeacher})
	require.NoError(t, err)
	_, err = svc.ValidateToken(expired)
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = svc.ValidateToken("not.a.token")
	require.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
