package planning

import (
	"time"

	"github.com/google/uuid"
)

// Planning statuses. At most one planning per section is active.
const (
	StatusDraft    = "draft"
	StatusActive   = "active"
	StatusArchived = "archived"
)

// Planning maps to the planning table. One computed schedule for a
// section over a horizon.
type Planning struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Section      string     `db:"section" json:"section"`
	HorizonStart time.Time  `db:"horizon_start" json:"horizon_start"`
	HorizonEnd   time.Time  `db:"horizon_end" json:"horizon_end"`
	Status       string     `db:"status" json:"status"`
	Objective    float64    `db:"objective" json:"objective"`
	Makespan     int        `db:"makespan" json:"makespan"`
	Optimal      bool       `db:"optimal" json:"optimal"`
	TaskCount    int        `db:"task_count" json:"task_count"`
	SolveMillis  int64      `db:"solve_millis" json:"solve_millis"`
	ActivatedAt  *time.Time `db:"activated_at" json:"activated_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Assignment maps to the assignment table. One scheduled slot for one
// test inside a planning. Dates are derived from the horizon start by
// direct offset addition; EndDate is exclusive.
type Assignment struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PlanningID  uuid.UUID `db:"planning_id" json:"planning_id"`
	TestID      uuid.UUID `db:"test_id" json:"test_id"`
	SampleID    uuid.UUID `db:"sample_id" json:"sample_id"`
	TestType    string    `db:"test_type" json:"test_type"`
	Section     string    `db:"section" json:"section"`
	StartOffset int       `db:"start_offset" json:"start_offset"`
	EndOffset   int       `db:"end_offset" json:"end_offset"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
