package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/internal/repository"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type absenceStore interface {
	Create(requests []models.AbsenceRequest, notes ...models.Notification) []models.AbsenceRequest
	Get(id int64) (models.AbsenceRequest, error)
	List(filter models.AbsenceFilter) []models.AbsenceRequest
	Commit(change repository.AbsenceChange) (models.AbsenceRequest, error)
	PurgeActionable(requestID int64) int
	PendingSubstitutes(day string, period int) map[string]int64
}

type lifecycleTimetable interface {
	GetSlot(day string, period int, class string) (models.TimetableSlot, error)
	UpdateSlot(day string, period int, class string, patch models.SlotPatch) (models.TimetableSlot, error)
	ListSlotsForTeacher(name, day string) []models.ScheduledSlot
	BusyTeachers(day string, period int) map[string]struct{}
	ValidDay(day string) bool
	ValidPeriod(period int) bool
}

type teacherRoster interface {
	FindByID(id int64) (models.Teacher, error)
	FindByName(name string) (models.Teacher, error)
	DepartmentTeacherNames(department string) []string
}

type snapshotInvalidator interface {
	Invalidate(ctx context.Context)
}

// AbsenceServiceOption configures the lifecycle service.
type AbsenceServiceOption func(*AbsenceService)

// WithAbsenceJournal records every committed request change.
func WithAbsenceJournal(journal Journal) AbsenceServiceOption {
	return func(s *AbsenceService) {
		if journal != nil {
			s.journal = journal
		}
	}
}

// WithAbsenceMetrics counts applied transitions.
func WithAbsenceMetrics(metrics *MetricsService) AbsenceServiceOption {
	return func(s *AbsenceService) {
		s.metrics = metrics
	}
}

// WithSnapshotInvalidator drops cached snapshots after each mutation.
func WithSnapshotInvalidator(inv snapshotInvalidator) AbsenceServiceOption {
	return func(s *AbsenceService) {
		s.invalidator = inv
	}
}

// WithAbsenceClock overrides the clock used to resolve "tomorrow".
func WithAbsenceClock(now func() time.Time) AbsenceServiceOption {
	return func(s *AbsenceService) {
		if now != nil {
			s.now = now
		}
	}
}

// AbsenceService drives absence requests through their lifecycle.
type AbsenceService struct {
	store       absenceStore
	timetable   lifecycleTimetable
	teachers    teacherRoster
	locks       *requestLocks
	journal     Journal
	metrics     *MetricsService
	invalidator snapshotInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAbsenceService constructs the lifecycle service.
func NewAbsenceService(store absenceStore, timetable lifecycleTimetable, teachers teacherRoster, validate *validator.Validate, logger *zap.Logger, opts ...AbsenceServiceOption) *AbsenceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	svc := &AbsenceService{
		store:     store,
		timetable: timetable,
		teachers:  teachers,
		locks:     newRequestLocks(),
		journal:   nopJournal{},
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Report creates one request per class the teacher holds at (day, period).
func (s *AbsenceService) Report(ctx context.Context, actor *models.Actor, req dto.ReportAbsenceRequest) ([]models.AbsenceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}
	teacher, err := s.reportingTeacher(actor, req.TeacherID, req.TeacherName)
	if err != nil {
		return nil, err
	}
	if !s.timetable.ValidDay(req.Day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", req.Day))
	}
	if !s.timetable.ValidPeriod(req.Period) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("period %d out of range", req.Period))
	}

	var affected []models.ScheduledSlot
	for _, slot := range s.timetable.ListSlotsForTeacher(teacher.Name, req.Day) {
		if slot.Period == req.Period {
			affected = append(affected, slot)
		}
	}
	if len(affected) == 0 {
		return nil, appErrors.Clone(appErrors.ErrTeacherNotScheduled, fmt.Sprintf("%s does not have a class on %s, Period %d", teacher.Name, req.Day, req.Period))
	}

	created := s.store.Create(newAbsenceRequests(teacher, affected, req.Reason),
		note(models.NotificationSuccess, fmt.Sprintf("Absence for %s on %s, Period %d reported.", teacher.Name, req.Day, req.Period)),
		note(models.NotificationInfo, fmt.Sprintf("Admin Alert: %s absent for %s, P%d. Action required.", teacher.Name, req.Day, req.Period)),
	)
	if len(created) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("absence for %s on %s, Period %d is already reported", teacher.Name, req.Day, req.Period))
	}
	s.afterCreate(ctx, created)
	return created, nil
}

// ReportFullDay creates one request per class the teacher holds on day, in
// period order.
func (s *AbsenceService) ReportFullDay(ctx context.Context, actor *models.Actor, req dto.ReportFullDayRequest) ([]models.AbsenceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}
	teacher, err := s.reportingTeacher(actor, req.TeacherID, req.TeacherName)
	if err != nil {
		return nil, err
	}
	if !s.timetable.ValidDay(req.Day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", req.Day))
	}
	return s.reportDay(ctx, teacher, req.Day, req.Reason, fmt.Sprintf("%s has no classes scheduled on %s", teacher.Name, req.Day))
}

// ReportTomorrow reports the calling teacher absent for the next weekday.
func (s *AbsenceService) ReportTomorrow(ctx context.Context, actor *models.Actor, req dto.ReportTomorrowRequest) ([]models.AbsenceRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid absence payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.TeacherID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "caller has no teacher record")
	}
	teacher, err := s.reportingTeacher(actor, actor.TeacherID, "")
	if err != nil {
		return nil, err
	}
	tomorrow := s.now().AddDate(0, 0, 1).Weekday()
	if tomorrow == time.Saturday || tomorrow == time.Sunday {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot report absence for a weekend")
	}
	day := tomorrow.String()
	if !s.timetable.ValidDay(day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s is not a teaching day", day))
	}
	return s.reportDay(ctx, teacher, day, req.Reason, "you have no classes scheduled for tomorrow")
}

func (s *AbsenceService) reportDay(ctx context.Context, teacher models.Teacher, day, reason, emptyMessage string) ([]models.AbsenceRequest, error) {
	affected := s.timetable.ListSlotsForTeacher(teacher.Name, day)
	if len(affected) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoClassesScheduled, emptyMessage)
	}
	created := s.store.Create(newAbsenceRequests(teacher, affected, reason),
		note(models.NotificationSuccess, fmt.Sprintf("Reported absence for all of %s's classes on %s.", teacher.Name, day)),
		note(models.NotificationInfo, fmt.Sprintf("Admin Alert: %s absent for all periods on %s.", teacher.Name, day)),
	)
	if len(created) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("absence for %s on %s is already reported", teacher.Name, day))
	}
	s.afterCreate(ctx, created)
	return created, nil
}

// RequestSubstitute asks a free teacher to cover the request.
func (s *AbsenceService) RequestSubstitute(ctx context.Context, actor *models.Actor, id int64, req dto.RequestSubstituteRequest) (*models.AbsenceRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid substitute payload")
	}
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(current.Status, models.AbsenceStatusPendingResponse) {
		return nil, invalidTransition(current, models.AbsenceStatusPendingResponse)
	}
	substitute, err := s.teachers.FindByID(req.SubstituteTeacherID)
	if err != nil {
		return nil, err
	}
	if substitute.ID == current.AbsentTeacherID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "substitute must differ from the absent teacher")
	}
	if _, busy := s.timetable.BusyTeachers(current.Day, current.Period)[substitute.Name]; busy {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s is already teaching on %s, Period %d", substitute.Name, current.Day, current.Period))
	}
	if holder, held := s.store.PendingSubstitutes(current.Day, current.Period)[substitute.Name]; held {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s is already requested for %s, Period %d by request %d", substitute.Name, current.Day, current.Period, holder))
	}

	next := current
	next.Status = models.AbsenceStatusPendingResponse
	next.RequestedSubstituteID = &substitute.ID
	next.RequestedSubstituteName = models.StringPtr(substitute.Name)
	if req.Reasoning != "" {
		next.Reasoning = models.StringPtr(req.Reasoning)
	}

	prompt := note(models.NotificationAction, fmt.Sprintf("You have a request to substitute for %s on %s, P%d.", current.AbsentTeacherName, current.Day, current.Period))
	prompt.AbsenceRequestID = &current.ID
	prompt.Recipient = models.StringPtr(substitute.Name)

	return s.commit(ctx, current, repository.AbsenceChange{
		Request:         next,
		PurgeActionable: true,
		Notifications: []models.Notification{
			note(models.NotificationInfo, fmt.Sprintf("Request sent to %s to substitute.", substitute.Name)),
			prompt,
		},
	})
}

// Respond records the substitute's answer. A response to a request that no
// longer awaits one changes nothing except clearing stale prompts, and
// reports Applied=false.
func (s *AbsenceService) Respond(ctx context.Context, actor *models.Actor, id int64, req dto.RespondRequest) (*dto.RespondResult, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid response payload")
	}
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && (current.RequestedSubstituteID == nil || !actor.IsTeacher(*current.RequestedSubstituteID)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request is not addressed to you")
	}
	if current.Status != models.AbsenceStatusPendingResponse {
		purged := s.store.PurgeActionable(id)
		s.logger.Info("ignored late substitute response",
			zap.Int64("request_id", id),
			zap.String("status", string(current.Status)),
			zap.Int("purged", purged),
		)
		return &dto.RespondResult{Request: current, Applied: false}, nil
	}

	next := current
	result := note(models.NotificationSuccess, fmt.Sprintf("%s ACCEPTED the substitution request.", *current.RequestedSubstituteName))
	next.Status = models.AbsenceStatusAccepted
	if !*req.Accept {
		next.Status = models.AbsenceStatusDeclined
		result = note(models.NotificationError, fmt.Sprintf("%s DECLINED the substitution request.", *current.RequestedSubstituteName))
	}
	updated, err := s.commit(ctx, current, repository.AbsenceChange{
		Request:         next,
		PurgeActionable: true,
		Notifications:   []models.Notification{result},
	})
	if err != nil {
		return nil, err
	}
	return &dto.RespondResult{Request: *updated, Applied: true}, nil
}

// Assign puts the accepted substitute into the timetable slot.
func (s *AbsenceService) Assign(ctx context.Context, actor *models.Actor, id int64) (*models.AbsenceRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(current.Status, models.AbsenceStatusAssigned) {
		return nil, invalidTransition(current, models.AbsenceStatusAssigned)
	}
	if current.RequestedSubstituteID == nil || current.RequestedSubstituteName == nil || *current.RequestedSubstituteName == "" {
		return nil, appErrors.Clone(appErrors.ErrStaleState, "request has no recorded substitute")
	}
	substitute := *current.RequestedSubstituteName

	previous, err := s.timetable.GetSlot(current.Day, current.Period, current.Slot.Class)
	if err != nil {
		return nil, err
	}
	if !previous.TaughtBy(current.AbsentTeacherName) {
		return nil, appErrors.Clone(appErrors.ErrStaleState, fmt.Sprintf("%s no longer holds %s on %s, Period %d", current.AbsentTeacherName, current.Slot.Class, current.Day, current.Period))
	}
	original := current.AbsentTeacherName
	if previous.IsSubstitute && previous.OriginalTeacher != nil && *previous.OriginalTeacher != "" {
		original = *previous.OriginalTeacher
	}
	slot, err := s.timetable.UpdateSlot(current.Day, current.Period, current.Slot.Class, models.SlotPatch{
		Teacher:         models.StringPtr(substitute),
		Substitute:      true,
		OriginalTeacher: original,
	})
	if err != nil {
		if errors.Is(err, appErrors.ErrConflict) {
			return nil, s.releaseSubstitute(ctx, current, err)
		}
		return nil, err
	}

	next := current
	next.Status = models.AbsenceStatusAssigned
	next.AssignedSubstituteID = current.RequestedSubstituteID
	next.AssignedSubstituteName = models.StringPtr(substitute)
	updated, err := s.commit(ctx, current, repository.AbsenceChange{
		Request:         next,
		PurgeActionable: true,
		Notifications: []models.Notification{
			note(models.NotificationSuccess, fmt.Sprintf("Success! %s assigned to substitute for %s.", substitute, current.AbsentTeacherName)),
			note(models.NotificationInfo, fmt.Sprintf("Students of Class %s have been notified.", current.Slot.Class)),
		},
	})
	if err != nil {
		if _, restoreErr := s.timetable.UpdateSlot(current.Day, current.Period, current.Slot.Class, patchFromSlot(previous)); restoreErr != nil {
			s.logger.Error("failed to restore slot after aborted assignment", zap.Int64("request_id", id), zap.Error(restoreErr))
		}
		return nil, err
	}
	s.journal.RecordSlot(models.SlotChange{
		Day:       current.Day,
		Period:    current.Period,
		Class:     current.Slot.Class,
		Slot:      slot,
		ChangedBy: actor.UserID,
		ChangedAt: updated.UpdatedAt,
	})
	return updated, nil
}

// releaseSubstitute returns an accepted request whose substitute can no longer
// take the slot to SUBSTITUTE_DECLINED, so another substitute can be asked.
func (s *AbsenceService) releaseSubstitute(ctx context.Context, current models.AbsenceRequest, cause error) error {
	next := current
	next.Status = models.AbsenceStatusDeclined
	if _, err := s.commit(ctx, current, repository.AbsenceChange{
		Request:         next,
		PurgeActionable: true,
		Notifications: []models.Notification{
			note(models.NotificationError, fmt.Sprintf("%s can no longer cover %s on %s, P%d. Request another substitute.", *current.RequestedSubstituteName, current.Slot.Class, current.Day, current.Period)),
		},
	}); err != nil {
		return err
	}
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%s; request %d returned to %s", appErrors.FromError(cause).Message, current.ID, models.AbsenceStatusDeclined))
}

// Close archives an assigned request or abandons one still awaiting action.
func (s *AbsenceService) Close(ctx context.Context, actor *models.Actor, id int64) (*models.AbsenceRequest, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	unlock := s.locks.lock(id)
	defer unlock()

	current, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(current.Status, models.AbsenceStatusClosed) {
		return nil, invalidTransition(current, models.AbsenceStatusClosed)
	}
	next := current
	next.Status = models.AbsenceStatusClosed
	return s.commit(ctx, current, repository.AbsenceChange{
		Request:         next,
		PurgeActionable: true,
		Notifications: []models.Notification{
			note(models.NotificationInfo, fmt.Sprintf("Absence for %s on %s, P%d closed.", current.AbsentTeacherName, current.Day, current.Period)),
		},
	})
}

// Get returns one request.
func (s *AbsenceService) Get(ctx context.Context, actor *models.Actor, id int64) (*models.AbsenceRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	req, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// List returns requests in creation order. A department narrows the list to
// absences of that department's teachers; department heads default to their own.
func (s *AbsenceService) List(ctx context.Context, actor *models.Actor, query dto.AbsenceQuery) ([]models.AbsenceRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	for _, status := range query.Status {
		if !status.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", status))
		}
	}
	if query.Department == "" && !actor.IsAdmin() {
		query.Department = actor.Department
	}
	filter := models.AbsenceFilter{Status: query.Status, Day: query.Day}
	if query.Department != "" {
		filter.TeacherNames = s.teachers.DepartmentTeacherNames(query.Department)
	}
	return s.store.List(filter), nil
}

func (s *AbsenceService) commit(ctx context.Context, current models.AbsenceRequest, change repository.AbsenceChange) (*models.AbsenceRequest, error) {
	change.ExpectStatus = current.Status
	updated, err := s.store.Commit(change)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordTransition(current.Status, updated.Status)
	s.logger.Info("absence request transitioned",
		zap.Int64("request_id", updated.ID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(updated.Status)),
	)
	s.journal.RecordRequest(updated)
	s.invalidate(ctx)
	return &updated, nil
}

func (s *AbsenceService) afterCreate(ctx context.Context, created []models.AbsenceRequest) {
	for _, req := range created {
		s.journal.RecordRequest(req)
	}
	s.logger.Info("absence reported", zap.Int("requests", len(created)))
	s.invalidate(ctx)
}

func (s *AbsenceService) invalidate(ctx context.Context) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
}

// reportingTeacher resolves who is absent and checks the caller may report
// for them. Teachers default to themselves.
func (s *AbsenceService) reportingTeacher(actor *models.Actor, id *int64, name string) (models.Teacher, error) {
	if actor == nil {
		return models.Teacher{}, appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() && actor.Role != models.RoleTeacher {
		return models.Teacher{}, appErrors.Clone(appErrors.ErrForbidden, "only administrators and teachers may report absences")
	}
	if id == nil && name == "" && actor.TeacherID != nil {
		id = actor.TeacherID
	}

	var (
		teacher models.Teacher
		err     error
	)
	switch {
	case id != nil:
		teacher, err = s.teachers.FindByID(*id)
	case name != "":
		teacher, err = s.teachers.FindByName(name)
	default:
		return models.Teacher{}, appErrors.Clone(appErrors.ErrValidation, "teacher is required")
	}
	if err != nil {
		return models.Teacher{}, err
	}
	if !actor.IsAdmin() && !actor.IsTeacher(teacher.ID) {
		return models.Teacher{}, appErrors.Clone(appErrors.ErrForbidden, "teachers may only report their own absence")
	}
	return teacher, nil
}

func requireAdmin(actor *models.Actor) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "administrator role required")
	}
	return nil
}

func invalidTransition(req models.AbsenceRequest, to models.AbsenceStatus) error {
	return appErrors.Clone(appErrors.ErrInvalidTransition, fmt.Sprintf("request %d cannot move from %s to %s", req.ID, req.Status, to))
}

func newAbsenceRequests(teacher models.Teacher, slots []models.ScheduledSlot, reason string) []models.AbsenceRequest {
	requests := make([]models.AbsenceRequest, 0, len(slots))
	for _, slot := range slots {
		req := models.AbsenceRequest{
			AbsentTeacherID:   teacher.ID,
			AbsentTeacherName: teacher.Name,
			Day:               slot.Day,
			Period:            slot.Period,
			Slot:              slot.TimetableSlot,
			Status:            models.AbsenceStatusPendingAction,
		}
		if reason != "" {
			req.Reasoning = models.StringPtr(reason)
		}
		requests = append(requests, req)
	}
	return requests
}

func note(kind models.NotificationType, message string) models.Notification {
	return models.Notification{Type: kind, Message: message}
}
