package reschedule

import (
	"time"

	"github.com/google/uuid"
)

// Deferred task statuses.
const (
	TaskStatusPending   = "pending"
	TaskStatusExecuted  = "executed"
	TaskStatusCancelled = "cancelled"
)

// Dispatch resumptions fire at the start of business hours.
const (
	businessHour   = 8
	businessMinute = 30
)

// DeferredTask maps to the deferred_task table. A future resumption
// action created by a delay. Duplicates for one sample are allowed;
// the runner deduplicates.
type DeferredTask struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	SampleID   uuid.UUID  `db:"sample_id" json:"sample_id"`
	TargetAt   time.Time  `db:"target_at" json:"target_at"`
	Action     string     `db:"action" json:"action"`
	Status     string     `db:"status" json:"status"`
	ExecutedAt *time.Time `db:"executed_at" json:"executed_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}

// ActionResumeDispatch is the only deferred action today.
const ActionResumeDispatch = "resume_dispatch"

// RescheduleResult reports the shifted dates after a delay.
type RescheduleResult struct {
	SampleID        uuid.UUID `json:"sample_id"`
	Code            string    `json:"code"`
	DelayDays       int       `json:"delay_days"`
	NewDispatchDate time.Time `json:"new_dispatch_date"`
	NewReturnDate   time.Time `json:"new_return_date"`
	DeferredTaskID  uuid.UUID `json:"deferred_task_id"`
}
