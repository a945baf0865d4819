package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

func int64Ref(v int64) *int64 { return &v }

func newAbsenceFixture(t *testing.T) (*AbsenceRepository, models.AbsenceRequest) {
	t.Helper()
	repo := NewAbsenceRepository()
	clock := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	created := repo.Create([]models.AbsenceRequest{
		{
			AbsentTeacherID:   2,
			AbsentTeacherName: "Emily Jones",
			Day:               "Monday",
			Period:            2,
			Slot:              models.TimetableSlot{Class: "10-B", Subject: "Physics", Teacher: models.StringPtr("Emily Jones")},
			Status:            models.AbsenceStatusPendingAction,
		},
		{
			AbsentTeacherID:   2,
			AbsentTeacherName: "Emily Jones",
			Day:               "Monday",
			Period:            4,
			Slot:              models.TimetableSlot{Class: "11-A", Subject: "Physics", Teacher: models.StringPtr("Emily Jones")},
			Status:            models.AbsenceStatusPendingAction,
		},
	}, models.Notification{Message: "Emily Jones reported absent", Type: models.NotificationInfo})
	require.Len(t, created, 2)
	return repo, created[0]
}

func TestAbsenceRepositoryCreateAssignsSequentialIDs(t *testing.T) {
	repo, first := newAbsenceFixture(t)

	assert.Equal(t, int64(1), first.ID)
	assert.False(t, first.Timestamp.IsZero())
	assert.Equal(t, first.Timestamp, first.UpdatedAt)

	all := repo.List(models.AbsenceFilter{})
	require.Len(t, all, 2)
	assert.Equal(t, int64(2), all[1].ID)

	notes := repo.Notifications(models.NotificationFilter{})
	require.Len(t, notes, 1)
	assert.NotEmpty(t, notes[0].ID)

	_, err := repo.Get(42)
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAbsenceRepositoryCommitChecksExpectedStatus(t *testing.T) {
	repo, req := newAbsenceFixture(t)

	next := req
	next.Status = models.AbsenceStatusPendingResponse
	next.RequestedSubstituteID = int64Ref(6)
	next.RequestedSubstituteName = models.StringPtr("Linda Wilson")
	prompt := models.Notification{
		Message:          "Can you cover 10-B?",
		Type:             models.NotificationAction,
		AbsenceRequestID: int64Ref(req.ID),
		Recipient:        models.StringPtr("Linda Wilson"),
	}

	updated, err := repo.Commit(AbsenceChange{
		Request:       next,
		ExpectStatus:  models.AbsenceStatusPendingAction,
		Notifications: []models.Notification{prompt},
	})
	require.NoError(t, err)
	assert.Equal(t, models.AbsenceStatusPendingResponse, updated.Status)
	assert.Equal(t, req.Timestamp, updated.Timestamp)
	assert.True(t, updated.UpdatedAt.After(req.UpdatedAt))

	stale := next
	stale.Status = models.AbsenceStatusClosed
	_, err = repo.Commit(AbsenceChange{Request: stale, ExpectStatus: models.AbsenceStatusPendingAction})
	require.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	stored, err := repo.Get(req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AbsenceStatusPendingResponse, stored.Status)

	_, err = repo.Commit(AbsenceChange{Request: models.AbsenceRequest{ID: 99}})
	require.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAbsenceRepositoryCommitPurgesActionablePrompts(t *testing.T) {
	repo, req := newAbsenceFixture(t)
	repo.Publish(
		models.Notification{Type: models.NotificationAction, AbsenceRequestID: int64Ref(req.ID), Recipient: models.StringPtr("Linda Wilson")},
		models.Notification{Type: models.NotificationAction, AbsenceRequestID: int64Ref(2), Recipient: models.StringPtr("Linda Wilson")},
	)

	accepted := req
	accepted.Status = models.AbsenceStatusAccepted
	_, err := repo.Commit(AbsenceChange{
		Request:         accepted,
		PurgeActionable: true,
		Notifications:   []models.Notification{{Message: "accepted", Type: models.NotificationSuccess}},
	})
	require.NoError(t, err)

	actions := repo.Notifications(models.NotificationFilter{Type: models.NotificationAction})
	require.Len(t, actions, 1)
	assert.Equal(t, int64(2), *actions[0].AbsenceRequestID)

	feed := repo.Notifications(models.NotificationFilter{})
	require.Len(t, feed, 3)
	assert.Equal(t, "accepted", feed[0].Message)

	assert.Equal(t, 1, repo.PurgeActionable(2))
	assert.Zero(t, repo.PurgeActionable(2))
}

func TestAbsenceRepositoryCreateSkipsOpenDuplicates(t *testing.T) {
	repo, req := newAbsenceFixture(t)

	dup := req
	dup.ID = 0
	created := repo.Create([]models.AbsenceRequest{dup}, models.Notification{Message: "again", Type: models.NotificationInfo})
	assert.Empty(t, created)
	assert.Len(t, repo.List(models.AbsenceFilter{}), 2)
	assert.Len(t, repo.Notifications(models.NotificationFilter{}), 1)

	closed := req
	closed.Status = models.AbsenceStatusClosed
	_, err := repo.Commit(AbsenceChange{Request: closed})
	require.NoError(t, err)

	created = repo.Create([]models.AbsenceRequest{dup})
	require.Len(t, created, 1)
	assert.Equal(t, int64(3), created[0].ID)
}

func TestAbsenceRepositoryHoldsSubstitutePerSlotTime(t *testing.T) {
	repo, req := newAbsenceFixture(t)
	others := repo.Create([]models.AbsenceRequest{{
		AbsentTeacherID:   4,
		AbsentTeacherName: "Michael Williams",
		Day:               "Monday",
		Period:            2,
		Slot:              models.TimetableSlot{Class: "10-A", Subject: "History", Teacher: models.StringPtr("Michael Williams")},
		Status:            models.AbsenceStatusPendingAction,
	}})
	require.Len(t, others, 1)

	ask := func(base models.AbsenceRequest) AbsenceChange {
		next := base
		next.Status = models.AbsenceStatusPendingResponse
		next.RequestedSubstituteID = int64Ref(6)
		next.RequestedSubstituteName = models.StringPtr("Linda Wilson")
		return AbsenceChange{Request: next, ExpectStatus: models.AbsenceStatusPendingAction}
	}

	_, err := repo.Commit(ask(req))
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"Linda Wilson": req.ID}, repo.PendingSubstitutes("Monday", 2))
	assert.Empty(t, repo.PendingSubstitutes("Monday", 4))

	_, err = repo.Commit(ask(others[0]))
	require.ErrorIs(t, err, appErrors.ErrConflict)
	stored, err := repo.Get(others[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.AbsenceStatusPendingAction, stored.Status)

	declined, err := repo.Get(req.ID)
	require.NoError(t, err)
	declined.Status = models.AbsenceStatusDeclined
	_, err = repo.Commit(AbsenceChange{Request: declined})
	require.NoError(t, err)
	assert.Empty(t, repo.PendingSubstitutes("Monday", 2))

	_, err = repo.Commit(ask(others[0]))
	require.NoError(t, err)
}

func TestAbsenceRepositoryListFilter(t *testing.T) {
	repo, req := newAbsenceFixture(t)
	next := req
	next.Status = models.AbsenceStatusPendingResponse
	next.RequestedSubstituteID = int64Ref(6)
	_, err := repo.Commit(AbsenceChange{Request: next})
	require.NoError(t, err)

	pending := repo.List(models.AbsenceFilter{Status: []models.AbsenceStatus{models.AbsenceStatusPendingAction}})
	require.Len(t, pending, 1)
	assert.Equal(t, int64(2), pending[0].ID)

	forLinda := repo.List(models.AbsenceFilter{Substitute: int64Ref(6)})
	require.Len(t, forLinda, 1)
	assert.Equal(t, req.ID, forLinda[0].ID)

	assert.Empty(t, repo.List(models.AbsenceFilter{TeacherNames: []string{}}))
	assert.Len(t, repo.List(models.AbsenceFilter{TeacherNames: []string{"Emily Jones"}}), 2)
	assert.Empty(t, repo.List(models.AbsenceFilter{Day: "Friday"}))
}

func TestAbsenceRepositoryRestoreKeepsIDs(t *testing.T) {
	repo := NewAbsenceRepository()
	repo.Restore([]models.AbsenceRequest{
		{ID: 7, AbsentTeacherName: "John Smith", Status: models.AbsenceStatusAssigned},
		{ID: 3, AbsentTeacherName: "Emily Jones", Status: models.AbsenceStatusClosed},
	})

	all := repo.List(models.AbsenceFilter{})
	require.Len(t, all, 2)
	assert.Equal(t, int64(3), all[0].ID)

	created := repo.Create([]models.AbsenceRequest{{AbsentTeacherName: "Linda Wilson"}})
	assert.Equal(t, int64(8), created[0].ID)
}

func TestNotificationFeedRecipientScoping(t *testing.T) {
	repo := NewAbsenceRepository()
	repo.Publish(
		models.Notification{ID: "n1", Message: "broadcast", Type: models.NotificationInfo},
		models.Notification{ID: "n2", Message: "for linda", Type: models.NotificationAction, Recipient: models.StringPtr("Linda Wilson")},
		models.Notification{ID: "n3", Message: "for john", Type: models.NotificationAction, Recipient: models.StringPtr("John Smith")},
	)

	linda := repo.Notifications(models.NotificationFilter{Recipient: "Linda Wilson"})
	require.Len(t, linda, 2)
	assert.Equal(t, "n2", linda[0].ID)
	assert.Equal(t, "n1", linda[1].ID)

	limited := repo.Notifications(models.NotificationFilter{Limit: 1})
	require.Len(t, limited, 1)
	assert.Equal(t, "n3", limited[0].ID)

	assert.False(t, repo.DismissNotification("n3", "Linda Wilson"))
	assert.False(t, repo.DismissNotification("n1", "Linda Wilson"))
	assert.True(t, repo.DismissNotification("n2", "Linda Wilson"))
	assert.True(t, repo.DismissNotification("n1", ""))
	assert.False(t, repo.DismissNotification("missing", ""))
	assert.Len(t, repo.Notifications(models.NotificationFilter{}), 1)
}
