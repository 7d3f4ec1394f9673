package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RuleRepository interface {
	Create(ctx context.Context, r *ClosedDayRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*ClosedDayRule, error)
	Update(ctx context.Context, r *ClosedDayRule) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*ClosedDayRule, int, error)
	ListInRange(ctx context.Context, rangeStart, rangeEnd time.Time) ([]*ClosedDayRule, error)
}
