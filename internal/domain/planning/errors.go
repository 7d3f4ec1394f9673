package planning

import (
	"errors"
	"fmt"
)

// ErrPlanningNotFound is returned by every Repository implementation
// when no planning matches; handlers match it with errors.Is.
var ErrPlanningNotFound = errors.New("planning not found")

// Infeasibility constraint classes.
const (
	ClassCapacity   = "capacity"
	ClassPrecedence = "precedence"
	ClassClosedDay  = "closed-day"
)

// ValidationError rejects malformed input before any computation runs.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// InfeasibleError reports that the hard constraints cannot all be
// satisfied, carrying the violated constraint class for diagnosis.
type InfeasibleError struct {
	Class  string
	Detail string
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("infeasible (%s): %s", e.Class, e.Detail)
}
