package capacity

import (
	"time"

	"github.com/google/uuid"
)

// Known test types.
const (
	TypeAG           = "AG"
	TypeProctor      = "Proctor"
	TypeCBR          = "CBR"
	TypeOedometre    = "Oedometre"
	TypeCisaillement = "Cisaillement"
)

// Entry maps to the capacity_entry table: per-test-type daily start capacity
// and nominal duration in working days. One entry per test type.
type Entry struct {
	ID            uuid.UUID `db:"id" json:"id"`
	TestType      string    `db:"test_type" json:"test_type"`
	DailyCapacity int       `db:"daily_capacity" json:"daily_capacity"`
	DurationDays  int       `db:"duration_days" json:"duration_days"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Table is the in-memory capacity catalog keyed by test type.
type Table map[string]Entry

// DefaultTable returns the lab's nominal capacity catalog.
func DefaultTable() Table {
	return Table{
		TypeAG:           {TestType: TypeAG, DailyCapacity: 5, DurationDays: 5},
		TypeProctor:      {TestType: TypeProctor, DailyCapacity: 4, DurationDays: 5},
		TypeCBR:          {TestType: TypeCBR, DailyCapacity: 4, DurationDays: 9},
		TypeOedometre:    {TestType: TypeOedometre, DailyCapacity: 10, DurationDays: 18},
		TypeCisaillement: {TestType: TypeCisaillement, DailyCapacity: 4, DurationDays: 4},
	}
}

// LongestType returns the test type with the maximum nominal duration. Ties
// resolve to the lexicographically smaller type so the result is stable.
func (t Table) LongestType() string {
	longest := ""
	maxDur := -1
	for typ, e := range t {
		if e.DurationDays > maxDur || (e.DurationDays == maxDur && typ < longest) {
			longest = typ
			maxDur = e.DurationDays
		}
	}
	return longest
}

// MaxDuration returns the maximum nominal duration across the given test
// types. Unknown types contribute zero.
func (t Table) MaxDuration(types []string) int {
	max := 0
	for _, typ := range types {
		if e, ok := t[typ]; ok && e.DurationDays > max {
			max = e.DurationDays
		}
	}
	return max
}
