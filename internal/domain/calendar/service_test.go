package calendar

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRuleRepo struct {
	rules map[uuid.UUID]*ClosedDayRule
}

func newMockRuleRepo() *mockRuleRepo {
	return &mockRuleRepo{rules: make(map[uuid.UUID]*ClosedDayRule)}
}

func (m *mockRuleRepo) Create(_ context.Context, r *ClosedDayRule) error {
	r.ID = uuid.New()
	r.CreatedAt = time.Now()
	r.UpdatedAt = time.Now()
	m.rules[r.ID] = r
	return nil
}

func (m *mockRuleRepo) GetByID(_ context.Context, id uuid.UUID) (*ClosedDayRule, error) {
	r, ok := m.rules[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return r, nil
}

func (m *mockRuleRepo) Update(_ context.Context, r *ClosedDayRule) error {
	m.rules[r.ID] = r
	return nil
}

func (m *mockRuleRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(m.rules, id)
	return nil
}

func (m *mockRuleRepo) List(_ context.Context, limit, offset int) ([]*ClosedDayRule, int, error) {
	var result []*ClosedDayRule
	for _, r := range m.rules {
		result = append(result, r)
	}
	return result, len(result), nil
}

func (m *mockRuleRepo) ListInRange(_ context.Context, rangeStart, rangeEnd time.Time) ([]*ClosedDayRule, error) {
	var result []*ClosedDayRule
	for _, r := range m.rules {
		if !r.StartDate.After(rangeEnd) && !r.EndDate.Before(rangeStart) {
			result = append(result, r)
		}
	}
	return result, nil
}

// -- Tests --

func TestCreateRule_SingleDateDefaultsEnd(t *testing.T) {
	svc := NewService(newMockRuleRepo())

	r := &ClosedDayRule{Name: "holiday", StartDate: date(2026, 5, 1)}
	if err := svc.CreateRule(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.EndDate.Equal(r.StartDate) {
		t.Errorf("end_date = %v, want start_date %v", r.EndDate, r.StartDate)
	}
}

func TestCreateRule_Validation(t *testing.T) {
	svc := NewService(newMockRuleRepo())

	cases := []struct {
		name string
		rule ClosedDayRule
	}{
		{"missing name", ClosedDayRule{StartDate: date(2026, 5, 1)}},
		{"missing start", ClosedDayRule{Name: "x"}},
		{"inverted range", ClosedDayRule{Name: "x", StartDate: date(2026, 5, 2), EndDate: date(2026, 5, 1)}},
		{"bad section", ClosedDayRule{Name: "x", StartDate: date(2026, 5, 1), Section: strPtr("chemistry")}},
	}
	for _, tc := range cases {
		r := tc.rule
		if err := svc.CreateRule(context.Background(), &r); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

func TestCreateRule_TruncatesTimestamps(t *testing.T) {
	svc := NewService(newMockRuleRepo())

	r := &ClosedDayRule{
		Name:      "maintenance",
		StartDate: time.Date(2026, 5, 4, 14, 30, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 5, 6, 9, 0, 0, 0, time.UTC),
	}
	if err := svc.CreateRule(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.StartDate.Hour() != 0 || r.EndDate.Hour() != 0 {
		t.Errorf("expected dates truncated to midnight, got %v / %v", r.StartDate, r.EndDate)
	}
}

func TestLoadCalendar_SnapshotsRange(t *testing.T) {
	repo := newMockRuleRepo()
	svc := NewService(repo)

	in := &ClosedDayRule{Name: "in range", StartDate: date(2026, 3, 10)}
	if err := svc.CreateRule(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	far := &ClosedDayRule{Name: "next year", StartDate: date(2027, 3, 10)}
	if err := svc.CreateRule(context.Background(), far); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cal, err := svc.LoadCalendar(context.Background(), date(2026, 3, 1), date(2026, 3, 31))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cal.IsWorkingDay(date(2026, 3, 10), "route") {
		t.Error("rule in range should close the day")
	}
	if !cal.IsWorkingDay(date(2026, 3, 11), "route") {
		t.Error("adjacent day should stay open")
	}
}

func TestUpdateRule_RejectsInvertedRange(t *testing.T) {
	repo := newMockRuleRepo()
	svc := NewService(repo)

	r := &ClosedDayRule{Name: "x", StartDate: date(2026, 5, 1)}
	if err := svc.CreateRule(context.Background(), r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r.EndDate = date(2026, 4, 1)
	if err := svc.UpdateRule(context.Background(), r); err == nil {
		t.Error("expected error for inverted range")
	}
}
