package reschedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrTaskNotFound is returned by every TaskRepository implementation
// when no deferred task matches; handlers match it with errors.Is.
var ErrTaskNotFound = errors.New("deferred task not found")

// TaskRepository defines deferred task persistence.
type TaskRepository interface {
	Create(ctx context.Context, t *DeferredTask) error
	GetByID(ctx context.Context, id uuid.UUID) (*DeferredTask, error)
	List(ctx context.Context, status string, limit, offset int) ([]*DeferredTask, int, error)
	// ListDue returns pending tasks whose target time has passed.
	ListDue(ctx context.Context, now time.Time) ([]*DeferredTask, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string, executedAt *time.Time) error
}
