// Package prediction computes advisory dispatch and return dates for a
// sample from current queue depths. The estimate is pure computation,
// nothing is persisted here.
package prediction

import (
	"fmt"
	"time"

	"github.com/snertp/labsched/internal/domain/calendar"
	"github.com/snertp/labsched/internal/domain/capacity"
)

const (
	// ProcessingBufferDays covers internal handling after the longest
	// test finishes.
	ProcessingBufferDays = 2

	baseConfidence = 90
	minConfidence  = 75
	maxConfidence  = 95

	// batchThreshold is the queue depth below which the batch-oriented
	// test type (the longest one in the catalog) absorbs new samples
	// with no wait at all.
	batchThreshold = 9
)

// TypeWait is the per-type breakdown accompanying a prediction.
type TypeWait struct {
	TestType      string `json:"test_type"`
	QueueDepth    int    `json:"queue_depth"`
	DailyCapacity int    `json:"daily_capacity"`
	DurationDays  int    `json:"duration_days"`
	WaitDays      int    `json:"wait_days"`
}

// DatePrediction is the advisory output for one sample.
type DatePrediction struct {
	DispatchDate       time.Time  `json:"dispatch_date"`
	DispatchConfidence int        `json:"dispatch_confidence"`
	ReturnDate         time.Time  `json:"return_date"`
	ReturnConfidence   int        `json:"return_confidence"`
	Breakdown          []TypeWait `json:"breakdown"`
}

// Estimate computes dispatch and return dates for the requested types
// given current queue depths. Wait is floor(depth/capacity) working
// days per type, except the batch-oriented type which waits nothing
// until the threshold and then grows with duration over capacity.
func Estimate(today time.Time, types []string, depths map[string]int, table capacity.Table, cal calendar.Calendar) (*DatePrediction, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("no test types requested")
	}

	today = calendar.DateOnly(today)
	batchType := table.LongestType()

	delayMax := 0
	durationMax := 0
	breakdown := make([]TypeWait, 0, len(types))
	for _, typ := range types {
		entry, ok := table[typ]
		if !ok {
			return nil, fmt.Errorf("unknown test type: %s", typ)
		}
		depth := depths[typ]

		var wait int
		if typ == batchType {
			if depth > batchThreshold {
				wait = (depth - batchThreshold) * entry.DurationDays / entry.DailyCapacity
			}
		} else {
			wait = depth / entry.DailyCapacity
		}

		if wait > delayMax {
			delayMax = wait
		}
		if entry.DurationDays > durationMax {
			durationMax = entry.DurationDays
		}
		breakdown = append(breakdown, TypeWait{
			TestType:      typ,
			QueueDepth:    depth,
			DailyCapacity: entry.DailyCapacity,
			DurationDays:  entry.DurationDays,
			WaitDays:      wait,
		})
	}

	dispatchConf := baseConfidence
	switch {
	case delayMax > 5:
		dispatchConf -= 15
	case delayMax > 2:
		dispatchConf -= 5
	}
	dispatchConf = clamp(dispatchConf)
	// Return confidence tracks the dispatch one five points lower and is
	// deliberately not re-clamped, so a floored dispatch still yields a
	// lower return confidence.
	returnConf := dispatchConf - 5

	return &DatePrediction{
		DispatchDate:       cal.AddWorkingDays(today, delayMax, ""),
		DispatchConfidence: dispatchConf,
		ReturnDate:         cal.AddWorkingDays(today, delayMax+durationMax+ProcessingBufferDays, ""),
		ReturnConfidence:   returnConf,
		Breakdown:          breakdown,
	}, nil
}

func clamp(conf int) int {
	if conf < minConfidence {
		return minConfidence
	}
	if conf > maxConfidence {
		return maxConfidence
	}
	return conf
}
