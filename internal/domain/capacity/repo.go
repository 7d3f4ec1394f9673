package capacity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EntryRepository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetByType(ctx context.Context, testType string) (*Entry, error)
	Update(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*Entry, error)
}

// StartCounter reports how many tests of a type are already set to start on
// a given date. Implemented by the sample package's test repository.
type StartCounter interface {
	CountStartsOn(ctx context.Context, testType string, date time.Time) (int, error)
}
