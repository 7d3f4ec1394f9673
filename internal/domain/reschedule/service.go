package reschedule

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/snertp/labsched/internal/domain/calendar"
	"github.com/snertp/labsched/internal/domain/sample"
	"github.com/snertp/labsched/internal/platform/notification"
)

// ProcessingBufferDays matches the estimator's handling buffer after
// the longest test finishes.
const ProcessingBufferDays = 2

// SampleSource is the slice of sample persistence a delay needs.
type SampleSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*sample.Sample, error)
	Update(ctx context.Context, s *sample.Sample) error
}

// TestSource reads and shifts the tests of a delayed sample.
type TestSource interface {
	ListBySample(ctx context.Context, sampleID uuid.UUID) ([]*sample.Test, error)
	Update(ctx context.Context, t *sample.Test) error
}

// Notifier sends best-effort notifications.
type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

// Service shifts sample dispatch dates and manages the deferred tasks
// that resume them.
type Service struct {
	tasks     TaskRepository
	samples   SampleSource
	tests     TestSource
	notifier  Notifier
	recipient string
	now       func() time.Time
}

func NewService(tasks TaskRepository, samples SampleSource, tests TestSource) *Service {
	return &Service{tasks: tasks, samples: samples, tests: tests, now: time.Now}
}

// WithNotifier enables best-effort notifications on delay events.
func (s *Service) WithNotifier(n Notifier, recipient string) *Service {
	s.notifier = n
	s.recipient = recipient
	return s
}

// Delay pushes a sample's dispatch forward by delayDays calendar days.
// The shift is an externally imposed deferral, so unlike the estimator
// it does not skip closed days. Re-delaying overwrites prior planned
// dates; every call creates a fresh deferred task.
func (s *Service) Delay(ctx context.Context, sampleID uuid.UUID, delayDays int) (*RescheduleResult, error) {
	if delayDays <= 0 {
		return nil, fmt.Errorf("delay must be at least one day")
	}

	smp, err := s.samples.GetByID(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	tests, err := s.tests.ListBySample(ctx, sampleID)
	if err != nil {
		return nil, err
	}

	today := calendar.DateOnly(s.now())
	newDispatch := today.AddDate(0, 0, delayDays)

	maxDuration := 0
	for _, t := range tests {
		if t.Status == sample.TestStatusRejected {
			continue
		}
		t.PlannedDispatch = &newDispatch
		if err := s.tests.Update(ctx, t); err != nil {
			return nil, fmt.Errorf("shift test %s: %w", t.TestType, err)
		}
		if t.DurationDays > maxDuration {
			maxDuration = t.DurationDays
		}
	}
	newReturn := newDispatch.AddDate(0, 0, maxDuration+ProcessingBufferDays)

	smp.DispatchDate = &newDispatch
	smp.ReturnDate = &newReturn
	if err := s.samples.Update(ctx, smp); err != nil {
		return nil, fmt.Errorf("shift sample: %w", err)
	}

	task := &DeferredTask{
		SampleID: sampleID,
		TargetAt: time.Date(newDispatch.Year(), newDispatch.Month(), newDispatch.Day(),
			businessHour, businessMinute, 0, 0, newDispatch.Location()),
		Action: ActionResumeDispatch,
		Status: TaskStatusPending,
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create deferred task: %w", err)
	}

	s.notify(ctx, "sample-delayed", map[string]string{
		"code":       smp.Code,
		"nature":     smp.Nature,
		"delay_days": strconv.Itoa(delayDays),
		"new_date":   newDispatch.Format("2006-01-02"),
	})
	log.Info().
		Str("sample", smp.Code).
		Int("delay_days", delayDays).
		Time("new_dispatch", newDispatch).
		Msg("sample delayed")

	return &RescheduleResult{
		SampleID:        sampleID,
		Code:            smp.Code,
		DelayDays:       delayDays,
		NewDispatchDate: newDispatch,
		NewReturnDate:   newReturn,
		DeferredTaskID:  task.ID,
	}, nil
}

// ExecuteDue runs every pending deferred task whose target time has
// passed. Duplicate tasks for one sample collapse to a single resume.
func (s *Service) ExecuteDue(ctx context.Context) (int, error) {
	due, err := s.tasks.ListDue(ctx, s.now())
	if err != nil {
		return 0, err
	}

	resumed := make(map[uuid.UUID]bool)
	executed := 0
	for _, task := range due {
		now := s.now()
		if err := s.tasks.SetStatus(ctx, task.ID, TaskStatusExecuted, &now); err != nil {
			log.Warn().Err(err).Str("task", task.ID.String()).Msg("deferred task skipped")
			continue
		}
		executed++
		if resumed[task.SampleID] {
			continue
		}
		resumed[task.SampleID] = true

		smp, err := s.samples.GetByID(ctx, task.SampleID)
		if err != nil {
			log.Warn().Err(err).Str("task", task.ID.String()).Msg("resume target missing")
			continue
		}
		s.notify(ctx, "sample-resumed", map[string]string{
			"code": smp.Code,
			"date": calendar.DateOnly(now).Format("2006-01-02"),
		})
		log.Info().Str("sample", smp.Code).Msg("dispatch resumed")
	}
	return executed, nil
}

// Cancel marks a pending deferred task cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	task, err := s.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if task.Status != TaskStatusPending {
		return fmt.Errorf("only pending tasks can be cancelled")
	}
	return s.tasks.SetStatus(ctx, id, TaskStatusCancelled, nil)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*DeferredTask, error) {
	return s.tasks.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, status string, limit, offset int) ([]*DeferredTask, int, error) {
	return s.tasks.List(ctx, status, limit, offset)
}

func (s *Service) notify(ctx context.Context, template string, data map[string]string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.SendFromTemplate(ctx, template, data, s.recipient); err != nil {
		log.Warn().Err(err).Str("template", template).Msg("notification failed")
	}
}
