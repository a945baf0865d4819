package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/dto"
	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

type slotEditor interface {
	UpdateSlot(day string, period int, class string, patch models.SlotPatch) (models.TimetableSlot, error)
	SectionTimetable(class string) (models.Timetable, error)
	Slots() []models.ScheduledSlot
	ValidDay(day string) bool
	ValidPeriod(period int) bool
}

type subjectRebuilder interface {
	RebuildSubjects(slots []models.ScheduledSlot)
}

type notificationPublisher interface {
	Publish(notes ...models.Notification)
}

// TimetableService applies administrator edits to the timetable.
type TimetableService struct {
	store       slotEditor
	teachers    subjectRebuilder
	feed        notificationPublisher
	journal     Journal
	invalidator snapshotInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewTimetableService constructs the service. journal and invalidator may be nil.
func NewTimetableService(store slotEditor, teachers subjectRebuilder, feed notificationPublisher, journal Journal, invalidator snapshotInvalidator, validate *validator.Validate, logger *zap.Logger) *TimetableService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if journal == nil {
		journal = nopJournal{}
	}
	return &TimetableService{
		store:       store,
		teachers:    teachers,
		feed:        feed,
		journal:     journal,
		invalidator: invalidator,
		validator:   validate,
		logger:      logger,
	}
}

// UpdateSlot edits one slot. Plain edits clear any substitution on it.
func (s *TimetableService) UpdateSlot(ctx context.Context, actor *models.Actor, req dto.UpdateSlotRequest) (*models.TimetableSlot, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	if !s.store.ValidDay(req.Day) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown day %q", req.Day))
	}
	if !s.store.ValidPeriod(req.Period) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("period %d out of range", req.Period))
	}
	if req.ClearTeacher && req.Teacher != nil && *req.Teacher != "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher and clearTeacher are mutually exclusive")
	}

	slot, err := s.store.UpdateSlot(req.Day, req.Period, req.Class, req.Patch())
	if err != nil {
		return nil, err
	}
	s.teachers.RebuildSubjects(s.store.Slots())
	s.feed.Publish(note(models.NotificationSuccess, fmt.Sprintf("Timetable for %s, Period %d updated.", req.Day, req.Period)))
	s.journal.RecordSlot(models.SlotChange{
		Day:       req.Day,
		Period:    req.Period,
		Class:     req.Class,
		Slot:      slot,
		ChangedBy: actor.UserID,
		ChangedAt: time.Now().UTC(),
	})
	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}
	s.logger.Info("timetable slot updated",
		zap.String("day", req.Day),
		zap.Int("period", req.Period),
		zap.String("class", req.Class),
		zap.String("teacher", slot.TeacherName()),
	)
	return &slot, nil
}

// Section returns one class section's week.
func (s *TimetableService) Section(ctx context.Context, class string) (models.Timetable, error) {
	return s.store.SectionTimetable(class)
}
