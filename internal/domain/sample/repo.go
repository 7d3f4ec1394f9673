package sample

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sentinel errors shared by every SampleRepository and TestRepository
// implementation. Handlers match them with errors.Is.
var (
	ErrSampleNotFound = errors.New("sample not found")
	ErrTestNotFound   = errors.New("test not found")
)

// SampleRepository defines persistence for samples.
type SampleRepository interface {
	Create(ctx context.Context, s *Sample) error
	GetByID(ctx context.Context, id uuid.UUID) (*Sample, error)
	GetByCode(ctx context.Context, code string) (*Sample, error)
	Update(ctx context.Context, s *Sample) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, status string, limit, offset int) ([]*Sample, int, error)
	// CountByYear returns how many samples were registered in the given
	// calendar year, used to derive the next code sequence number.
	CountByYear(ctx context.Context, year int) (int, error)
	// QueueDepths counts, per test type, pending tests whose sample is
	// still waiting. The depth feeds the date prediction.
	QueueDepths(ctx context.Context) (map[string]int, error)
}

// TestRepository defines persistence for individual tests.
type TestRepository interface {
	Create(ctx context.Context, t *Test) error
	GetByID(ctx context.Context, id uuid.UUID) (*Test, error)
	Update(ctx context.Context, t *Test) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListBySample(ctx context.Context, sampleID uuid.UUID) ([]*Test, error)
	// ListPending returns pending tests for one section, the solver's
	// input set. An empty section returns all pending tests.
	ListPending(ctx context.Context, section string) ([]*Test, error)
	// CountStartsOn counts tests of a type scheduled to start on a date.
	CountStartsOn(ctx context.Context, testType string, date time.Time) (int, error)
	// MarkScheduled records an accepted planning slot on a test.
	MarkScheduled(ctx context.Context, id uuid.UUID, start, end time.Time) error
	// MarkInProgress flips a scheduled test to in_progress at dispatch.
	MarkInProgress(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	// MarkPending reverts a scheduled test to pending and clears its
	// slot, used when a draft planning is discarded. Tests that already
	// moved past scheduled are left alone.
	MarkPending(ctx context.Context, id uuid.UUID) error
}
