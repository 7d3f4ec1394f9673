package planning

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines planning and assignment persistence. Activation
// runs inside a transaction so the single-active invariant holds.
type Repository interface {
	Create(ctx context.Context, p *Planning) error
	GetByID(ctx context.Context, id uuid.UUID) (*Planning, error)
	// GetActive returns the single active planning, or nil when none
	// is active.
	GetActive(ctx context.Context) (*Planning, error)
	List(ctx context.Context, section, status string, limit, offset int) ([]*Planning, int, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string, activatedAt *time.Time) error
	// ArchiveActive demotes the currently active planning, if any, and
	// returns its id.
	ArchiveActive(ctx context.Context) (*uuid.UUID, error)

	CreateAssignment(ctx context.Context, a *Assignment) error
	ListAssignments(ctx context.Context, planningID uuid.UUID) ([]*Assignment, error)
	// ListAssignmentsStarting returns assignments of a planning whose
	// start date falls on the given day.
	ListAssignmentsStarting(ctx context.Context, planningID uuid.UUID, date time.Time) ([]*Assignment, error)
	CountActive(ctx context.Context) (int, error)
}
