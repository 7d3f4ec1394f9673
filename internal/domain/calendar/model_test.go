package calendar

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strPtr(s string) *string { return &s }

func TestIsWorkingDay_Weekends(t *testing.T) {
	cal := NewCalendar(nil)

	// 2026-01-05 is a Monday.
	if !cal.IsWorkingDay(date(2026, 1, 5), "route") {
		t.Error("Monday should be a working day")
	}
	if cal.IsWorkingDay(date(2026, 1, 10), "route") {
		t.Error("Saturday should not be a working day")
	}
	if cal.IsWorkingDay(date(2026, 1, 11), "route") {
		t.Error("Sunday should not be a working day")
	}
}

func TestIsWorkingDay_Holiday(t *testing.T) {
	cal := NewCalendar([]*ClosedDayRule{
		{Name: "New Year", StartDate: date(2026, 1, 1), EndDate: date(2026, 1, 1)},
	})

	// 2026-01-01 is a Thursday.
	if cal.IsWorkingDay(date(2026, 1, 1), "route") {
		t.Error("holiday should not be a working day")
	}
	if !cal.IsWorkingDay(date(2026, 1, 2), "route") {
		t.Error("day after holiday should be a working day")
	}
}

func TestIsWorkingDay_SectionScopedRule(t *testing.T) {
	cal := NewCalendar([]*ClosedDayRule{
		{
			Name:      "press maintenance",
			StartDate: date(2026, 1, 6),
			EndDate:   date(2026, 1, 8),
			Section:   strPtr("mecanique"),
		},
	})

	if cal.IsWorkingDay(date(2026, 1, 7), "mecanique") {
		t.Error("maintenance window should close mecanique")
	}
	if !cal.IsWorkingDay(date(2026, 1, 7), "route") {
		t.Error("route should stay open during mecanique maintenance")
	}
}

func TestAddWorkingDays_ZeroOnWorkingDay(t *testing.T) {
	cal := NewCalendar(nil)
	mon := date(2026, 1, 5)
	if got := cal.AddWorkingDays(mon, 0, "route"); !got.Equal(mon) {
		t.Errorf("AddWorkingDays(Monday, 0) = %v, want %v", got, mon)
	}
}

func TestAddWorkingDays_ZeroNormalizesClosedStart(t *testing.T) {
	cal := NewCalendar(nil)
	sat := date(2026, 1, 10)
	mon := date(2026, 1, 12)
	if got := cal.AddWorkingDays(sat, 0, "route"); !got.Equal(mon) {
		t.Errorf("AddWorkingDays(Saturday, 0) = %v, want next Monday %v", got, mon)
	}
}

func TestAddWorkingDays_SkipsWeekend(t *testing.T) {
	cal := NewCalendar(nil)
	// Friday + 1 working day = Monday.
	fri := date(2026, 1, 9)
	mon := date(2026, 1, 12)
	if got := cal.AddWorkingDays(fri, 1, "route"); !got.Equal(mon) {
		t.Errorf("AddWorkingDays(Friday, 1) = %v, want %v", got, mon)
	}
}

func TestAddWorkingDays_SkipsHoliday(t *testing.T) {
	cal := NewCalendar([]*ClosedDayRule{
		{Name: "holiday", StartDate: date(2026, 1, 6), EndDate: date(2026, 1, 6)},
	})
	// Monday + 1 working day skips the Tuesday holiday to Wednesday.
	mon := date(2026, 1, 5)
	wed := date(2026, 1, 7)
	if got := cal.AddWorkingDays(mon, 1, "route"); !got.Equal(wed) {
		t.Errorf("AddWorkingDays = %v, want %v", got, wed)
	}
}

func TestAddWorkingDays_NeverReturnsClosedDay(t *testing.T) {
	cal := NewCalendar([]*ClosedDayRule{
		{Name: "closure", StartDate: date(2026, 1, 12), EndDate: date(2026, 1, 16)},
	})
	start := date(2026, 1, 5)
	for n := 0; n < 15; n++ {
		got := cal.AddWorkingDays(start, n, "route")
		if !cal.IsWorkingDay(got, "route") {
			t.Errorf("AddWorkingDays(%v, %d) = %v, a closed day", start, n, got)
		}
	}
}

func TestAddWorkingDays_NineFromMonday(t *testing.T) {
	cal := NewCalendar(nil)
	// Monday + 9 working days spans one full week plus four days.
	mon := date(2026, 1, 5)
	want := date(2026, 1, 16) // the second Friday
	if got := cal.AddWorkingDays(mon, 9, "route"); !got.Equal(want) {
		t.Errorf("AddWorkingDays(Monday, 9) = %v, want %v", got, want)
	}
}

func TestClosedOffsets(t *testing.T) {
	cal := NewCalendar([]*ClosedDayRule{
		{Name: "holiday", StartDate: date(2026, 1, 6), EndDate: date(2026, 1, 6)},
	})
	// Horizon starts Monday 2026-01-05; offsets 1 (holiday), 5, 6 (weekend)
	// are closed.
	closed := cal.ClosedOffsets(date(2026, 1, 5), 8, "route")

	wantClosed := map[int]bool{1: true, 5: true, 6: true}
	for i := 0; i < 8; i++ {
		if closed[i] != wantClosed[i] {
			t.Errorf("offset %d: closed = %v, want %v", i, closed[i], wantClosed[i])
		}
	}
}

func TestRuleCovers_RangeInclusive(t *testing.T) {
	r := &ClosedDayRule{StartDate: date(2026, 2, 10), EndDate: date(2026, 2, 12)}

	if !r.Covers(date(2026, 2, 10), "route") {
		t.Error("start date should be covered")
	}
	if !r.Covers(date(2026, 2, 12), "route") {
		t.Error("end date should be covered")
	}
	if r.Covers(date(2026, 2, 13), "route") {
		t.Error("day after end should not be covered")
	}
}
