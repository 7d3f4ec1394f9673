package capacity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Availability reports the daily start capacity left for a test type on a
// date.
type Availability struct {
	TestType  string    `json:"test_type"`
	Date      time.Time `json:"date"`
	Total     int       `json:"total"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"`
	Available bool      `json:"available"`
}

type Service struct {
	entries EntryRepository
	starts  StartCounter
}

func NewService(entries EntryRepository, starts StartCounter) *Service {
	return &Service{entries: entries, starts: starts}
}

func (s *Service) CreateEntry(ctx context.Context, e *Entry) error {
	if err := validateEntry(e); err != nil {
		return err
	}
	if existing, err := s.entries.GetByType(ctx, e.TestType); err == nil && existing != nil {
		return fmt.Errorf("capacity entry for %s already exists", e.TestType)
	}
	return s.entries.Create(ctx, e)
}

func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return s.entries.GetByID(ctx, id)
}

func (s *Service) UpdateEntry(ctx context.Context, e *Entry) error {
	if err := validateEntry(e); err != nil {
		return err
	}
	return s.entries.Update(ctx, e)
}

func (s *Service) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	return s.entries.Delete(ctx, id)
}

func (s *Service) ListEntries(ctx context.Context) ([]*Entry, error) {
	return s.entries.List(ctx)
}

// LoadTable reads all entries into a Table. Types missing from storage fall
// back to the defaults so scheduling never sees a hole in the catalog.
func (s *Service) LoadTable(ctx context.Context) (Table, error) {
	entries, err := s.entries.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("load capacity entries: %w", err)
	}
	table := DefaultTable()
	for _, e := range entries {
		table[e.TestType] = *e
	}
	return table, nil
}

// Check reports whether another test of the given type can still start on
// the given date under the type's daily start capacity.
func (s *Service) Check(ctx context.Context, testType string, date time.Time) (*Availability, error) {
	entry, err := s.entries.GetByType(ctx, testType)
	if err != nil {
		table := DefaultTable()
		e, ok := table[testType]
		if !ok {
			return nil, fmt.Errorf("unknown test type: %s", testType)
		}
		entry = &e
	}

	used, err := s.starts.CountStartsOn(ctx, testType, date)
	if err != nil {
		return nil, fmt.Errorf("count scheduled starts: %w", err)
	}

	remaining := entry.DailyCapacity - used
	if remaining < 0 {
		remaining = 0
	}
	return &Availability{
		TestType:  testType,
		Date:      date,
		Total:     entry.DailyCapacity,
		Used:      used,
		Remaining: remaining,
		Available: used < entry.DailyCapacity,
	}, nil
}

func validateEntry(e *Entry) error {
	if e.TestType == "" {
		return fmt.Errorf("test_type is required")
	}
	if e.DailyCapacity <= 0 {
		return fmt.Errorf("daily_capacity must be positive")
	}
	if e.DurationDays <= 0 {
		return fmt.Errorf("duration_days must be positive")
	}
	return nil
}
