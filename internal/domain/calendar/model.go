package calendar

import (
	"time"

	"github.com/google/uuid"
)

// ClosedDayRule maps to the closed_day_rule table. A rule covers either a
// single date (holiday) or an inclusive date range (maintenance window),
// optionally scoped to one section. A nil Section applies to both sections.
type ClosedDayRule struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	Section   *string   `db:"section" json:"section,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Covers reports whether the rule closes the given date for the given
// section.
func (r *ClosedDayRule) Covers(date time.Time, section string) bool {
	if r.Section != nil && *r.Section != section {
		return false
	}
	d := DateOnly(date)
	return !d.Before(DateOnly(r.StartDate)) && !d.After(DateOnly(r.EndDate))
}

// DateOnly truncates a timestamp to its calendar date in UTC.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Calendar is an immutable snapshot of closed-day rules over some date range.
// All methods are pure; weekends are always closed regardless of rules.
type Calendar struct {
	rules []*ClosedDayRule
}

// NewCalendar builds a Calendar from a set of rules.
func NewCalendar(rules []*ClosedDayRule) Calendar {
	return Calendar{rules: rules}
}

// IsWorkingDay reports whether date is a working day for the given section.
// Saturdays and Sundays are never working days.
func (c Calendar) IsWorkingDay(date time.Time, section string) bool {
	switch date.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	for _, r := range c.rules {
		if r.Covers(date, section) {
			return false
		}
	}
	return true
}

// AddWorkingDays advances date by n working days for the given section,
// skipping weekends and closed days one calendar day at a time. A non-working
// start date is first normalized forward to the next working day, so the
// result is never a closed day and AddWorkingDays(d, 0) == d for any working
// day d.
func (c Calendar) AddWorkingDays(date time.Time, n int, section string) time.Time {
	d := DateOnly(date)
	for !c.IsWorkingDay(d, section) {
		d = d.AddDate(0, 0, 1)
	}
	for consumed := 0; consumed < n; {
		d = d.AddDate(0, 0, 1)
		if c.IsWorkingDay(d, section) {
			consumed++
		}
	}
	return d
}

// ClosedOffsets returns the set of closed day-offsets from start for the
// given section, over a horizon of horizonDays calendar days.
func (c Calendar) ClosedOffsets(start time.Time, horizonDays int, section string) map[int]bool {
	closed := make(map[int]bool)
	d := DateOnly(start)
	for i := 0; i < horizonDays; i++ {
		if !c.IsWorkingDay(d, section) {
			closed[i] = true
		}
		d = d.AddDate(0, 0, 1)
	}
	return closed
}
