package planning

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Simultaneous-occupancy limits per section. These bound how many tests
// can run at once on a line, independent of per-type start capacity.
const (
	SectionLimitRoute     = 5
	SectionLimitMecanique = 3
)

// Priority score components.
const (
	urgentBonus      = 100
	waitingDayFactor = 2
	shortTestBonus   = 10
	shortTestDays    = 4
	resumedBonus     = 50

	// weightCeiling turns a priority score into an objective weight:
	// weight = max(1, weightCeiling - priority).
	weightCeiling = 200
)

// TaskSpec is one pending test as the solver sees it. Snapshots are
// built once per run; the solver never touches live records.
type TaskSpec struct {
	ID        uuid.UUID
	SampleID  uuid.UUID
	TestType  string
	Section   string
	Duration  int
	Rank      int
	Priority  int
	Reception time.Time
}

// Weight converts the priority score into an objective weight.
func (t TaskSpec) Weight() int {
	w := weightCeiling - t.Priority
	if w < 1 {
		return 1
	}
	return w
}

// PriorityScore computes the urgency of a test from its sample flags,
// waiting time, and rejection history.
func PriorityScore(urgent bool, reception time.Time, durationDays int, resumed bool, today time.Time) int {
	score := 0
	if urgent {
		score += urgentBonus
	}
	if waited := int(today.Sub(reception).Hours() / 24); waited > 0 {
		score += waited * waitingDayFactor
	}
	if durationDays <= shortTestDays {
		score += shortTestBonus
	}
	if resumed {
		score += resumedBonus
	}
	return score
}

// Snapshot is the immutable input to one solver session: the pending
// tasks, the horizon, and the closed-day offsets per section.
type Snapshot struct {
	Start         time.Time
	HorizonDays   int
	Tasks         []TaskSpec
	Closed        map[string]map[int]bool
	SectionLimits map[string]int
}

// Placement assigns one task a day-offset interval [Start, End) from
// the snapshot start. End is start plus duration.
type Placement struct {
	TaskID   uuid.UUID
	SampleID uuid.UUID
	TestType string
	Section  string
	Start    int
	End      int
}

// Solution is the outcome of a solve. Optimal is false when the time
// budget cut the search short and the result is best-found only.
type Solution struct {
	Placements []Placement
	Makespan   int
	Objective  float64
	Optimal    bool
	Elapsed    time.Duration
}

// Session is a stateless solver over one snapshot. Model construction
// is a pure function of the snapshot; Solve may be called repeatedly
// and yields the same result for the same snapshot.
type Session struct {
	snap  Snapshot
	order []int
	specs map[uuid.UUID]*TaskSpec
}

// NewSession validates the snapshot and fixes the deterministic task
// order. Precedence chains that cannot fit the horizon are rejected
// here, before any search runs.
func NewSession(snap Snapshot) (*Session, error) {
	if snap.HorizonDays <= 0 {
		return nil, &ValidationError{Msg: "horizon must be at least one day"}
	}
	if snap.SectionLimits == nil {
		snap.SectionLimits = map[string]int{
			"route":     SectionLimitRoute,
			"mecanique": SectionLimitMecanique,
		}
	}
	for _, t := range snap.Tasks {
		if t.Duration <= 0 {
			return nil, &ValidationError{Msg: fmt.Sprintf("task %s has non-positive duration", t.ID)}
		}
		if _, ok := snap.SectionLimits[t.Section]; !ok {
			return nil, &ValidationError{Msg: fmt.Sprintf("task %s has unknown section %q", t.ID, t.Section)}
		}
	}

	// Minimal length of each sample's precedence chain: durations plus
	// a one day gap between consecutive tests.
	chains := make(map[uuid.UUID]int)
	counts := make(map[uuid.UUID]int)
	for _, t := range snap.Tasks {
		chains[t.SampleID] += t.Duration
		counts[t.SampleID]++
	}
	for sampleID, length := range chains {
		if n := counts[sampleID]; n > 1 {
			length += n - 1
		}
		if length > snap.HorizonDays {
			return nil, &InfeasibleError{
				Class:  ClassPrecedence,
				Detail: fmt.Sprintf("sample %s needs %d days, horizon is %d", sampleID, length, snap.HorizonDays),
			}
		}
	}

	order := make([]int, len(snap.Tasks))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ta, tb := snap.Tasks[order[a]], snap.Tasks[order[b]]
		if ta.Priority != tb.Priority {
			return ta.Priority > tb.Priority
		}
		if !ta.Reception.Equal(tb.Reception) {
			return ta.Reception.Before(tb.Reception)
		}
		return ta.ID.String() < tb.ID.String()
	})

	specs := make(map[uuid.UUID]*TaskSpec, len(snap.Tasks))
	for i := range snap.Tasks {
		specs[snap.Tasks[i].ID] = &snap.Tasks[i]
	}
	return &Session{snap: snap, order: order, specs: specs}, nil
}

// occupancy tracks concurrent tests per section per day offset.
type occupancy map[string][]int

func newOccupancy(sections map[string]int, horizon int) occupancy {
	occ := make(occupancy, len(sections))
	for s := range sections {
		occ[s] = make([]int, horizon)
	}
	return occ
}

func (o occupancy) add(p Placement, delta int) {
	days := o[p.Section]
	for d := p.Start; d < p.End; d++ {
		days[d] += delta
	}
}

// earliestStart finds the lowest feasible start offset at or after
// minStart, or -1 when the task cannot fit. ignoreCapacity is used to
// classify infeasibility, never to produce placements.
func (s *Session) earliestStart(t TaskSpec, minStart int, occ occupancy, ignoreCapacity bool) int {
	closed := s.snap.Closed[t.Section]
	limit := s.snap.SectionLimits[t.Section]
	days := occ[t.Section]

next:
	for start := minStart; start+t.Duration <= s.snap.HorizonDays; start++ {
		for d := start; d < start+t.Duration; d++ {
			if closed[d] {
				continue next
			}
			if !ignoreCapacity && days[d] >= limit {
				continue next
			}
		}
		return start
	}
	return -1
}

// Solve produces a feasible schedule, or an InfeasibleError naming the
// violated constraint class. The search is a deterministic greedy
// construction followed by left-shift improvement passes until either
// a fixpoint or the context deadline.
func (s *Session) Solve(ctx context.Context) (*Solution, error) {
	began := time.Now()

	if len(s.snap.Tasks) == 0 {
		return &Solution{Optimal: true, Elapsed: time.Since(began)}, nil
	}

	occ := newOccupancy(s.snap.SectionLimits, s.snap.HorizonDays)
	placed := make(map[uuid.UUID]Placement, len(s.snap.Tasks))
	var placements []Placement

	for len(placed) < len(s.snap.Tasks) {
		idx := s.nextEligible(placed)
		if idx < 0 {
			// Cannot happen with a consistent rank order, but guard
			// against a snapshot with duplicate ranks on one sample.
			return nil, &InfeasibleError{Class: ClassPrecedence, Detail: "no eligible task in pending set"}
		}
		t := s.snap.Tasks[idx]
		minStart := s.precedenceFloor(t, placed)

		start := s.earliestStart(t, minStart, occ, false)
		if start < 0 {
			return nil, s.classify(t, minStart, occ)
		}
		p := Placement{
			TaskID:   t.ID,
			SampleID: t.SampleID,
			TestType: t.TestType,
			Section:  t.Section,
			Start:    start,
			End:      start + t.Duration,
		}
		occ.add(p, 1)
		placed[t.ID] = p
		placements = append(placements, p)
	}

	// Improvement: repeatedly pull tasks as far left as precedence and
	// occupancy allow. Later-starting tasks move first so freed slots
	// cascade. Converging before the deadline marks the result optimal
	// for this search.
	optimal := true
	for {
		if err := ctx.Err(); err != nil {
			optimal = false
			break
		}
		moved := false

		byStart := make([]int, len(placements))
		for i := range byStart {
			byStart[i] = i
		}
		sort.SliceStable(byStart, func(a, b int) bool {
			pa, pb := placements[byStart[a]], placements[byStart[b]]
			if pa.Start != pb.Start {
				return pa.Start > pb.Start
			}
			return pa.TaskID.String() < pb.TaskID.String()
		})

		for _, i := range byStart {
			p := placements[i]
			t := *s.specs[p.TaskID]
			minStart := s.precedenceFloor(t, placed)

			occ.add(p, -1)
			start := s.earliestStart(t, minStart, occ, false)
			if start >= 0 && start < p.Start {
				p.Start = start
				p.End = start + t.Duration
				placements[i] = p
				placed[t.ID] = p
				moved = true
			}
			occ.add(placements[i], 1)
		}
		if !moved {
			break
		}
	}

	sol := &Solution{
		Placements: placements,
		Optimal:    optimal,
		Elapsed:    time.Since(began),
	}
	for _, p := range placements {
		if p.End > sol.Makespan {
			sol.Makespan = p.End
		}
		sol.Objective += float64(s.specs[p.TaskID].Weight()*p.End) / 100
	}
	sol.Objective += float64(sol.Makespan)
	return sol, nil
}

// nextEligible returns the index of the highest-ordered task whose
// same-sample lower-rank tasks are all placed, or -1.
func (s *Session) nextEligible(placed map[uuid.UUID]Placement) int {
	for _, idx := range s.order {
		t := s.snap.Tasks[idx]
		if _, done := placed[t.ID]; done {
			continue
		}
		eligible := true
		for _, other := range s.snap.Tasks {
			if other.SampleID == t.SampleID && other.Rank < t.Rank {
				if _, done := placed[other.ID]; !done {
					eligible = false
					break
				}
			}
		}
		if eligible {
			return idx
		}
	}
	return -1
}

// precedenceFloor is the lowest start offset allowed by the task's
// placed same-sample predecessors: one day after the latest end.
func (s *Session) precedenceFloor(t TaskSpec, placed map[uuid.UUID]Placement) int {
	floor := 0
	for _, other := range s.snap.Tasks {
		if other.SampleID != t.SampleID || other.Rank >= t.Rank {
			continue
		}
		if p, ok := placed[other.ID]; ok && p.End+1 > floor {
			floor = p.End + 1
		}
	}
	return floor
}

// classify names the constraint class that blocked a task.
func (s *Session) classify(t TaskSpec, minStart int, occ occupancy) error {
	if s.earliestStart(t, minStart, occ, true) >= 0 {
		return &InfeasibleError{
			Class:  ClassCapacity,
			Detail: fmt.Sprintf("section %s is saturated for test %s", t.Section, t.TestType),
		}
	}
	if minStart > 0 && s.earliestStart(t, 0, occ, true) >= 0 {
		return &InfeasibleError{
			Class:  ClassPrecedence,
			Detail: fmt.Sprintf("predecessors of test %s push it past the horizon", t.TestType),
		}
	}
	return &InfeasibleError{
		Class:  ClassClosedDay,
		Detail: fmt.Sprintf("no open window of %d days for test %s", t.Duration, t.TestType),
	}
}
