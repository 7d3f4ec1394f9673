package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// lookahead bounds how far LoadCalendar extends past the requested range so
// that working-day arithmetic near the range end still sees closures.
const lookaheadDays = 120

type Service struct {
	rules RuleRepository
}

func NewService(rules RuleRepository) *Service {
	return &Service{rules: rules}
}

func (s *Service) CreateRule(ctx context.Context, r *ClosedDayRule) error {
	if r.Name == "" {
		return fmt.Errorf("name is required")
	}
	if r.StartDate.IsZero() {
		return fmt.Errorf("start_date is required")
	}
	if r.EndDate.IsZero() {
		r.EndDate = r.StartDate
	}
	if r.EndDate.Before(r.StartDate) {
		return fmt.Errorf("end_date before start_date")
	}
	if r.Section != nil && !validSection(*r.Section) {
		return fmt.Errorf("invalid section: %s", *r.Section)
	}
	r.StartDate = DateOnly(r.StartDate)
	r.EndDate = DateOnly(r.EndDate)
	return s.rules.Create(ctx, r)
}

func (s *Service) GetRule(ctx context.Context, id uuid.UUID) (*ClosedDayRule, error) {
	return s.rules.GetByID(ctx, id)
}

func (s *Service) UpdateRule(ctx context.Context, r *ClosedDayRule) error {
	if r.EndDate.Before(r.StartDate) {
		return fmt.Errorf("end_date before start_date")
	}
	if r.Section != nil && !validSection(*r.Section) {
		return fmt.Errorf("invalid section: %s", *r.Section)
	}
	r.StartDate = DateOnly(r.StartDate)
	r.EndDate = DateOnly(r.EndDate)
	return s.rules.Update(ctx, r)
}

func (s *Service) DeleteRule(ctx context.Context, id uuid.UUID) error {
	return s.rules.Delete(ctx, id)
}

func (s *Service) ListRules(ctx context.Context, limit, offset int) ([]*ClosedDayRule, int, error) {
	return s.rules.List(ctx, limit, offset)
}

// LoadCalendar snapshots the rules intersecting [rangeStart, rangeEnd] plus a
// lookahead window and returns a pure Calendar over them.
func (s *Service) LoadCalendar(ctx context.Context, rangeStart, rangeEnd time.Time) (Calendar, error) {
	rules, err := s.rules.ListInRange(ctx, DateOnly(rangeStart), DateOnly(rangeEnd).AddDate(0, 0, lookaheadDays))
	if err != nil {
		return Calendar{}, fmt.Errorf("load closed-day rules: %w", err)
	}
	return NewCalendar(rules), nil
}

func validSection(s string) bool {
	return s == "route" || s == "mecanique"
}
