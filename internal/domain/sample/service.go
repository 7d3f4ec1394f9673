package sample

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/snertp/labsched/internal/domain/calendar"
	"github.com/snertp/labsched/internal/domain/capacity"
)

// TableLoader provides the effective capacity table, used to fill in
// test durations at registration time.
type TableLoader interface {
	LoadTable(ctx context.Context) (capacity.Table, error)
}

// Service implements sample registration and test lifecycle rules.
type Service struct {
	samples SampleRepository
	tests   TestRepository
	table   TableLoader
}

func NewService(samples SampleRepository, tests TestRepository, table TableLoader) *Service {
	return &Service{samples: samples, tests: tests, table: table}
}

// CreateSample registers a sample and one pending test per requested
// type. The code is assigned here, never by the caller.
func (s *Service) CreateSample(ctx context.Context, smp *Sample) error {
	if strings.TrimSpace(smp.Nature) == "" {
		return fmt.Errorf("nature is required")
	}
	if len(smp.RequestedTypes) == 0 {
		return fmt.Errorf("at least one test type is required")
	}
	seen := make(map[string]bool, len(smp.RequestedTypes))
	for _, typ := range smp.RequestedTypes {
		if !KnownType(typ) {
			return fmt.Errorf("unknown test type: %s", typ)
		}
		if seen[typ] {
			return fmt.Errorf("duplicate test type: %s", typ)
		}
		seen[typ] = true
	}
	if smp.Priority == "" {
		smp.Priority = PriorityNormal
	}
	if smp.Priority != PriorityNormal && smp.Priority != PriorityUrgent {
		return fmt.Errorf("invalid priority: %s", smp.Priority)
	}
	if smp.ReceptionDate.IsZero() {
		smp.ReceptionDate = calendar.DateOnly(time.Now())
	} else {
		smp.ReceptionDate = calendar.DateOnly(smp.ReceptionDate)
	}
	smp.Status = SampleStatusWaiting

	code, err := s.nextCode(ctx, smp.Nature, smp.ReceptionDate)
	if err != nil {
		return err
	}
	smp.Code = code

	table, err := s.table.LoadTable(ctx)
	if err != nil {
		return fmt.Errorf("load capacity table: %w", err)
	}

	if err := s.samples.Create(ctx, smp); err != nil {
		return err
	}
	for _, typ := range smp.RequestedTypes {
		t := &Test{
			SampleID:     smp.ID,
			TestType:     typ,
			Section:      SectionForType(typ),
			DurationDays: table[typ].DurationDays,
			Status:       TestStatusPending,
			Priority:     smp.Priority,
		}
		if err := s.tests.Create(ctx, t); err != nil {
			return fmt.Errorf("create test %s: %w", typ, err)
		}
	}
	return nil
}

// nextCode builds the sample code: nature initial, a 4-digit yearly
// sequence, and a 2-digit year, e.g. G-0042/26.
func (s *Service) nextCode(ctx context.Context, nature string, reception time.Time) (string, error) {
	year := reception.Year()
	count, err := s.samples.CountByYear(ctx, year)
	if err != nil {
		return "", fmt.Errorf("next code: %w", err)
	}
	// First rune, not first byte, so accented natures keep a clean prefix.
	initial, _ := utf8.DecodeRuneInString(strings.TrimSpace(nature))
	return fmt.Sprintf("%c-%04d/%02d", unicode.ToUpper(initial), count+1, year%100), nil
}

func (s *Service) GetSample(ctx context.Context, id uuid.UUID) (*Sample, error) {
	return s.samples.GetByID(ctx, id)
}

func (s *Service) GetSampleByCode(ctx context.Context, code string) (*Sample, error) {
	return s.samples.GetByCode(ctx, code)
}

func (s *Service) UpdateSample(ctx context.Context, smp *Sample) error {
	if strings.TrimSpace(smp.Nature) == "" {
		return fmt.Errorf("nature is required")
	}
	if smp.Priority != PriorityNormal && smp.Priority != PriorityUrgent {
		return fmt.Errorf("invalid priority: %s", smp.Priority)
	}
	return s.samples.Update(ctx, smp)
}

func (s *Service) DeleteSample(ctx context.Context, id uuid.UUID) error {
	return s.samples.Delete(ctx, id)
}

func (s *Service) ListSamples(ctx context.Context, status string, limit, offset int) ([]*Sample, int, error) {
	return s.samples.List(ctx, status, limit, offset)
}

func (s *Service) ListTests(ctx context.Context, sampleID uuid.UUID) ([]*Test, error) {
	return s.tests.ListBySample(ctx, sampleID)
}

func (s *Service) GetTest(ctx context.Context, id uuid.UUID) (*Test, error) {
	return s.tests.GetByID(ctx, id)
}

// AddTest appends one more analysis to an already registered sample.
func (s *Service) AddTest(ctx context.Context, sampleID uuid.UUID, testType string) (*Test, error) {
	if !KnownType(testType) {
		return nil, fmt.Errorf("unknown test type: %s", testType)
	}
	smp, err := s.samples.GetByID(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	existing, err := s.tests.ListBySample(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	for _, t := range existing {
		if t.TestType == testType && t.Status != TestStatusRejected {
			return nil, fmt.Errorf("test type already requested: %s", testType)
		}
	}
	table, err := s.table.LoadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("load capacity table: %w", err)
	}
	t := &Test{
		SampleID:     sampleID,
		TestType:     testType,
		Section:      SectionForType(testType),
		DurationDays: table[testType].DurationDays,
		Status:       TestStatusPending,
		Priority:     smp.Priority,
	}
	if err := s.tests.Create(ctx, t); err != nil {
		return nil, err
	}
	smp.RequestedTypes = append(smp.RequestedTypes, testType)
	if err := s.samples.Update(ctx, smp); err != nil {
		return nil, err
	}
	return t, nil
}

// RejectTest takes a test out of scheduling. A rejected test keeps its
// row so it can be resumed later.
func (s *Service) RejectTest(ctx context.Context, id uuid.UUID) (*Test, error) {
	t, err := s.tests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == TestStatusDone {
		return nil, fmt.Errorf("cannot reject a completed test")
	}
	t.Status = TestStatusRejected
	t.ScheduledStart = nil
	t.ScheduledEnd = nil
	if err := s.tests.Update(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// ResumeTest puts a rejected test back in the queue at urgent priority.
// The sample is escalated too so the next planning pulls it forward.
func (s *Service) ResumeTest(ctx context.Context, id uuid.UUID) (*Test, error) {
	t, err := s.tests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != TestStatusRejected {
		return nil, fmt.Errorf("only rejected tests can be resumed")
	}
	t.Status = TestStatusPending
	t.Priority = PriorityUrgent
	t.Resumed = true
	if err := s.tests.Update(ctx, t); err != nil {
		return nil, err
	}

	smp, err := s.samples.GetByID(ctx, t.SampleID)
	if err != nil {
		return nil, err
	}
	smp.Priority = PriorityUrgent
	smp.Status = SampleStatusWaiting
	if err := s.samples.Update(ctx, smp); err != nil {
		return nil, err
	}
	return t, nil
}

// CompleteTest marks a test done. When every test on the sample is done
// or rejected the sample itself is completed.
func (s *Service) CompleteTest(ctx context.Context, id uuid.UUID) (*Test, error) {
	t, err := s.tests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != TestStatusInProgress && t.Status != TestStatusScheduled {
		return nil, fmt.Errorf("test is not in progress")
	}
	t.Status = TestStatusDone
	if err := s.tests.Update(ctx, t); err != nil {
		return nil, err
	}

	all, err := s.tests.ListBySample(ctx, t.SampleID)
	if err != nil {
		return nil, err
	}
	finished := true
	for _, other := range all {
		if other.Status != TestStatusDone && other.Status != TestStatusRejected {
			finished = false
			break
		}
	}
	if finished {
		smp, err := s.samples.GetByID(ctx, t.SampleID)
		if err != nil {
			return nil, err
		}
		smp.Status = SampleStatusCompleted
		if err := s.samples.Update(ctx, smp); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (s *Service) QueueDepths(ctx context.Context) (map[string]int, error) {
	return s.samples.QueueDepths(ctx)
}
