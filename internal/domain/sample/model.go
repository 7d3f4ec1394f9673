package sample

import (
	"time"

	"github.com/google/uuid"
)

// Priorities.
const (
	PriorityNormal = "normal"
	PriorityUrgent = "urgent"
)

// Sample statuses.
const (
	SampleStatusWaiting   = "waiting"
	SampleStatusTesting   = "testing"
	SampleStatusCompleted = "completed"
)

// Test statuses.
const (
	TestStatusPending    = "pending"
	TestStatusScheduled  = "scheduled"
	TestStatusInProgress = "in_progress"
	TestStatusDone       = "done"
	TestStatusRejected   = "rejected"
)

// Sections.
const (
	SectionRoute     = "route"
	SectionMecanique = "mecanique"
)

// typeRanks fixes the same-sample processing order. Unknown types rank last.
var typeRanks = map[string]int{
	"AG":           0,
	"Proctor":      1,
	"CBR":          2,
	"Oedometre":    3,
	"Cisaillement": 4,
}

// TypeRank returns the precedence rank of a test type. Lower ranks run
// first on the same sample; unknown types return 99.
func TypeRank(testType string) int {
	if r, ok := typeRanks[testType]; ok {
		return r
	}
	return 99
}

// SectionForType maps a test type to its processing line. Identification
// tests run on the route line, mechanical tests on the mecanique line.
func SectionForType(testType string) string {
	switch testType {
	case "Oedometre", "Cisaillement":
		return SectionMecanique
	default:
		return SectionRoute
	}
}

// KnownType reports whether testType is in the catalog.
func KnownType(testType string) bool {
	_, ok := typeRanks[testType]
	return ok
}

// Sample maps to the sample table.
type Sample struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	Code             string     `db:"code" json:"code"`
	Nature           string     `db:"nature" json:"nature"`
	ReceptionDate    time.Time  `db:"reception_date" json:"reception_date"`
	Priority         string     `db:"priority" json:"priority"`
	Status           string     `db:"status" json:"status"`
	RequestedTypes   []string   `db:"requested_types" json:"requested_types"`
	DispatchDate     *time.Time `db:"dispatch_date" json:"dispatch_date,omitempty"`
	ReturnDate       *time.Time `db:"return_date" json:"return_date,omitempty"`
	Confidence       *int       `db:"confidence" json:"confidence,omitempty"`
	ReturnConfidence *int       `db:"return_confidence" json:"return_confidence,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// Test maps to the lab_test table. One requested analysis on one sample.
type Test struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	SampleID        uuid.UUID  `db:"sample_id" json:"sample_id"`
	TestType        string     `db:"test_type" json:"test_type"`
	Section         string     `db:"section" json:"section"`
	DurationDays    int        `db:"duration_days" json:"duration_days"`
	Status          string     `db:"status" json:"status"`
	Priority        string     `db:"priority" json:"priority"`
	Resumed         bool       `db:"resumed" json:"resumed"`
	PlannedDispatch *time.Time `db:"planned_dispatch" json:"planned_dispatch,omitempty"`
	ScheduledStart  *time.Time `db:"scheduled_start" json:"scheduled_start,omitempty"`
	ScheduledEnd    *time.Time `db:"scheduled_end" json:"scheduled_end,omitempty"`
	StartedAt       *time.Time `db:"started_at" json:"started_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
