package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	"github.com/noah-isme/sma-substitute-api/pkg/jobs"
)

// Journal job types.
const (
	JobJournalRequest = "journal.request"
	JobJournalSlot    = "journal.slot"
)

// Journal receives write-behind copies of lifecycle and timetable changes.
// Implementations must not block the caller.
type Journal interface {
	RecordRequest(req models.AbsenceRequest)
	RecordSlot(change models.SlotChange)
}

type nopJournal struct{}

func (nopJournal) RecordRequest(models.AbsenceRequest) {}
func (nopJournal) RecordSlot(models.SlotChange)        {}

type journalStore interface {
	UpsertRequest(ctx context.Context, req models.AbsenceRequest) error
	RecordSlotChange(ctx context.Context, change models.SlotChange) error
	ListRequests(ctx context.Context) ([]models.AbsenceRequest, error)
	ListSlotOverrides(ctx context.Context) ([]models.SlotChange, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type requestRestorer interface {
	Restore(requests []models.AbsenceRequest)
}

type slotPatcher interface {
	UpdateSlot(day string, period int, class string, patch models.SlotPatch) (models.TimetableSlot, error)
}

// JournalService writes journal records through a job queue and replays them
// on start-up.
type JournalService struct {
	store   journalStore
	queue   jobEnqueuer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewJournalService constructs the journal. Bind must be called before
// records are accepted.
func NewJournalService(store journalStore, metrics *MetricsService, logger *zap.Logger) *JournalService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalService{store: store, metrics: metrics, logger: logger}
}

// Bind attaches the queue whose workers call Handle.
func (s *JournalService) Bind(queue jobEnqueuer) {
	s.queue = queue
}

// RecordRequest implements Journal.
func (s *JournalService) RecordRequest(req models.AbsenceRequest) {
	s.enqueue(jobs.Job{Type: JobJournalRequest, Payload: req})
}

// RecordSlot implements Journal.
func (s *JournalService) RecordSlot(change models.SlotChange) {
	s.enqueue(jobs.Job{Type: JobJournalSlot, Payload: change})
}

func (s *JournalService) enqueue(job jobs.Job) {
	if s.queue == nil {
		s.logger.Warn("journal queue not bound, dropping record", zap.String("type", job.Type))
		return
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue journal record", zap.String("type", job.Type), zap.Error(err))
	}
}

// Handle is the queue handler writing one record to the store.
func (s *JournalService) Handle(ctx context.Context, job jobs.Job) error {
	start := time.Now()
	var err error
	switch job.Type {
	case JobJournalRequest:
		req, ok := job.Payload.(models.AbsenceRequest)
		if !ok {
			return s.dropped(job)
		}
		err = s.store.UpsertRequest(ctx, req)
	case JobJournalSlot:
		change, ok := job.Payload.(models.SlotChange)
		if !ok {
			return s.dropped(job)
		}
		err = s.store.RecordSlotChange(ctx, change)
	default:
		return s.dropped(job)
	}
	s.metrics.ObserveDBQuery(job.Type, time.Since(start))
	s.metrics.RecordJournalWrite(job.Type, err)
	return err
}

// dropped logs a malformed job. It returns nil so the queue does not retry.
func (s *JournalService) dropped(job jobs.Job) error {
	s.logger.Error("unprocessable journal job", zap.String("job_id", job.ID), zap.String("type", job.Type), zap.String("payload", fmt.Sprintf("%T", job.Payload)))
	return nil
}

// Replay restores journaled requests and slot overrides. Overrides that no
// longer fit the loaded timetable are skipped.
func (s *JournalService) Replay(ctx context.Context, requests requestRestorer, slots slotPatcher) error {
	stored, err := s.store.ListRequests(ctx)
	if err != nil {
		return fmt.Errorf("list journaled requests: %w", err)
	}
	requests.Restore(stored)

	overrides, err := s.store.ListSlotOverrides(ctx)
	if err != nil {
		return fmt.Errorf("list slot overrides: %w", err)
	}
	applied := 0
	for _, change := range overrides {
		if _, err := slots.UpdateSlot(change.Day, change.Period, change.Class, patchFromSlot(change.Slot)); err != nil {
			s.logger.Warn("skipping slot override",
				zap.String("day", change.Day),
				zap.Int("period", change.Period),
				zap.String("class", change.Class),
				zap.Error(err),
			)
			continue
		}
		applied++
	}
	s.logger.Info("journal replayed", zap.Int("requests", len(stored)), zap.Int("slot_overrides", applied))
	return nil
}

func patchFromSlot(slot models.TimetableSlot) models.SlotPatch {
	patch := models.SlotPatch{
		Subject:    models.StringPtr(slot.Subject),
		Substitute: slot.IsSubstitute,
	}
	if slot.IsFree() {
		patch.ClearTeacher = true
	} else {
		patch.Teacher = models.StringPtr(*slot.Teacher)
	}
	if slot.OriginalTeacher != nil {
		patch.OriginalTeacher = *slot.OriginalTeacher
	}
	return patch
}
