package repository

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

// AbsenceChange is one lifecycle step: the request's new state plus the feed
// effects that must become visible with it.
type AbsenceChange struct {
	Request         models.AbsenceRequest
	ExpectStatus    models.AbsenceStatus
	PurgeActionable bool
	Notifications   []models.Notification
}

// AbsenceRepository owns absence requests together with the notification feed
// they drive. A request change and its notifications commit under one lock so
// readers see both or neither.
type AbsenceRepository struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]models.AbsenceRequest
	order  []int64
	feed   notificationFeed
	now    func() time.Time
}

// NewAbsenceRepository constructs an empty repository.
func NewAbsenceRepository() *AbsenceRepository {
	return &AbsenceRepository{
		nextID: 1,
		items:  make(map[int64]models.AbsenceRequest),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores the requests in input order, assigning sequential ids, and
// publishes notes in the same step. A request for a slot the teacher already
// has a non-closed request for is skipped; when every request is skipped
// nothing is published.
func (r *AbsenceRepository) Create(requests []models.AbsenceRequest, notes ...models.Notification) []models.AbsenceRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	created := make([]models.AbsenceRequest, 0, len(requests))
	for _, req := range requests {
		if r.duplicateLocked(req) {
			continue
		}
		req.ID = r.nextID
		r.nextID++
		if req.Timestamp.IsZero() {
			req.Timestamp = now
		}
		req.UpdatedAt = req.Timestamp
		r.items[req.ID] = req
		r.order = append(r.order, req.ID)
		created = append(created, cloneRequest(req))
	}
	if len(created) > 0 {
		r.feed.append(now, notes...)
	}
	return created
}

// Restore reloads previously journaled requests, keeping their ids.
func (r *AbsenceRepository) Restore(requests []models.AbsenceRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, req := range requests {
		if _, exists := r.items[req.ID]; !exists {
			r.order = append(r.order, req.ID)
		}
		r.items[req.ID] = req
		if req.ID >= r.nextID {
			r.nextID = req.ID + 1
		}
	}
	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
}

// Get returns a copy of the request.
func (r *AbsenceRepository) Get(id int64) (models.AbsenceRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.items[id]
	if !ok {
		return models.AbsenceRequest{}, appErrors.Clone(appErrors.ErrNotFound, "absence request not found")
	}
	return cloneRequest(req), nil
}

// List returns requests matching filter in creation order.
func (r *AbsenceRepository) List(filter models.AbsenceFilter) []models.AbsenceRequest {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]models.AbsenceRequest, 0, len(r.order))
	for _, id := range r.order {
		req := r.items[id]
		if filter.Matches(req) {
			result = append(result, cloneRequest(req))
		}
	}
	return result
}

// Commit applies a lifecycle step. When ExpectStatus is set the stored status
// must still match it, otherwise nothing changes.
func (r *AbsenceRepository) Commit(change AbsenceChange) (models.AbsenceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.items[change.Request.ID]
	if !ok {
		return models.AbsenceRequest{}, appErrors.Clone(appErrors.ErrNotFound, "absence request not found")
	}
	if change.ExpectStatus != "" && current.Status != change.ExpectStatus {
		return models.AbsenceRequest{}, appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("request %d is %s, expected %s", current.ID, current.Status, change.ExpectStatus))
	}
	if holder, held := r.heldByOtherLocked(change.Request); held {
		return models.AbsenceRequest{}, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s is already requested for %s, Period %d by request %d", *change.Request.RequestedSubstituteName, change.Request.Day, change.Request.Period, holder))
	}
	now := r.now()
	next := change.Request
	next.Timestamp = current.Timestamp
	next.UpdatedAt = now
	r.items[next.ID] = next
	if change.PurgeActionable {
		r.feed.purgeActionable(next.ID)
	}
	r.feed.append(now, change.Notifications...)
	return cloneRequest(next), nil
}

// PendingSubstitutes maps each teacher named by a request still awaiting a
// response, or accepted but not yet assigned, at (day, period) to that
// request's id.
func (r *AbsenceRepository) PendingSubstitutes(day string, period int) map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	held := make(map[string]int64)
	for _, id := range r.order {
		req := r.items[id]
		if req.Day == day && req.Period == period && holdsSubstitute(req) {
			held[*req.RequestedSubstituteName] = req.ID
		}
	}
	return held
}

// PurgeActionable removes pending accept/decline prompts for a request.
func (r *AbsenceRepository) PurgeActionable(requestID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.feed.purgeActionable(requestID)
}

// Publish appends notifications that are not tied to a request change.
func (r *AbsenceRepository) Publish(notes ...models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feed.append(r.now(), notes...)
}

// Notifications returns feed entries newest first.
func (r *AbsenceRepository) Notifications(filter models.NotificationFilter) []models.Notification {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feed.list(filter)
}

// DismissNotification removes one entry from the feed, optionally only when
// it is addressed to recipient.
func (r *AbsenceRepository) DismissNotification(id, recipient string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.feed.remove(id, recipient)
}

func (r *AbsenceRepository) duplicateLocked(req models.AbsenceRequest) bool {
	for _, existing := range r.items {
		if existing.Status != models.AbsenceStatusClosed &&
			existing.AbsentTeacherID == req.AbsentTeacherID &&
			existing.AbsentTeacherName == req.AbsentTeacherName &&
			existing.Day == req.Day &&
			existing.Period == req.Period &&
			existing.Slot.Class == req.Slot.Class {
			return true
		}
	}
	return false
}

// heldByOtherLocked reports the id of another request already holding the
// substitute that next would hold at the same (day, period).
func (r *AbsenceRepository) heldByOtherLocked(next models.AbsenceRequest) (int64, bool) {
	if !holdsSubstitute(next) {
		return 0, false
	}
	for _, other := range r.items {
		if other.ID != next.ID && other.Day == next.Day && other.Period == next.Period &&
			holdsSubstitute(other) && *other.RequestedSubstituteName == *next.RequestedSubstituteName {
			return other.ID, true
		}
	}
	return 0, false
}

func holdsSubstitute(req models.AbsenceRequest) bool {
	if req.RequestedSubstituteName == nil || *req.RequestedSubstituteName == "" {
		return false
	}
	return req.Status == models.AbsenceStatusPendingResponse || req.Status == models.AbsenceStatusAccepted
}

func cloneRequest(req models.AbsenceRequest) models.AbsenceRequest {
	out := req
	out.RequestedSubstituteID = cloneInt64(req.RequestedSubstituteID)
	out.RequestedSubstituteName = cloneString(req.RequestedSubstituteName)
	out.AssignedSubstituteID = cloneInt64(req.AssignedSubstituteID)
	out.AssignedSubstituteName = cloneString(req.AssignedSubstituteName)
	out.Reasoning = cloneString(req.Reasoning)
	return out
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
