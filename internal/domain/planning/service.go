package planning

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/snertp/labsched/internal/domain/calendar"
	"github.com/snertp/labsched/internal/domain/sample"
	"github.com/snertp/labsched/internal/platform/db"
	"github.com/snertp/labsched/internal/platform/notification"
	"github.com/snertp/labsched/internal/platform/telemetry"
)

const (
	// SolveBudget is the default wall-clock cap on one optimization run.
	SolveBudget = 30 * time.Second

	// MaxHorizonDays is the default cap on the requested planning window.
	MaxHorizonDays = 60

	// WeeklyHorizonDays is the window used by the scheduled weekly run.
	WeeklyHorizonDays = 14
)

// Tuning carries the operator-adjustable solver settings. Zero values
// fall back to the package defaults.
type Tuning struct {
	SolveBudget    time.Duration
	MaxHorizonDays int
	SectionLimits  map[string]int
}

// DefaultTuning returns the built-in solver settings.
func DefaultTuning() Tuning {
	return Tuning{
		SolveBudget:    SolveBudget,
		MaxHorizonDays: MaxHorizonDays,
		SectionLimits: map[string]int{
			sample.SectionRoute:     SectionLimitRoute,
			sample.SectionMecanique: SectionLimitMecanique,
		},
	}
}

// Result statuses.
const (
	ResultOptimal            = "optimal"
	ResultTimeBudgetExceeded = "time_budget_exceeded"
	ResultNoPendingTests     = "no_pending_tests"
)

// TestSource is the slice of test persistence the scheduler needs.
type TestSource interface {
	ListPending(ctx context.Context, section string) ([]*sample.Test, error)
	MarkScheduled(ctx context.Context, id uuid.UUID, start, end time.Time) error
	MarkInProgress(ctx context.Context, id uuid.UUID, startedAt time.Time) error
	MarkPending(ctx context.Context, id uuid.UUID) error
}

// SampleSource resolves the sample behind a test for priority scoring.
type SampleSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*sample.Sample, error)
}

// CalendarLoader provides a calendar snapshot covering a date range.
type CalendarLoader interface {
	LoadCalendar(ctx context.Context, rangeStart, rangeEnd time.Time) (calendar.Calendar, error)
}

// Notifier sends best-effort notifications. Failures are logged and
// never roll back a scheduling operation.
type Notifier interface {
	SendFromTemplate(ctx context.Context, templateID string, data map[string]string, recipient string) (*notification.Notification, error)
}

// Result is the outcome of one optimization run.
type Result struct {
	Planning    *Planning     `json:"planning"`
	Assignments []*Assignment `json:"assignments"`
	Status      string        `json:"status"`
}

// Service runs the constraint scheduler and manages planning
// lifecycle. Runs are serialized: two concurrent optimizations can
// never both claim the same pending test.
type Service struct {
	repo      Repository
	tests     TestSource
	samples   SampleSource
	calendar  CalendarLoader
	pool      *pgxpool.Pool
	notifier  Notifier
	recipient string
	tuning    Tuning
	now       func() time.Time

	mu sync.Mutex
}

func NewService(repo Repository, tests TestSource, samples SampleSource, cal CalendarLoader, pool *pgxpool.Pool) *Service {
	return &Service{
		repo:     repo,
		tests:    tests,
		samples:  samples,
		calendar: cal,
		pool:     pool,
		tuning:   DefaultTuning(),
		now:      time.Now,
	}
}

// WithNotifier enables best-effort notifications on planning events.
func (s *Service) WithNotifier(n Notifier, recipient string) *Service {
	s.notifier = n
	s.recipient = recipient
	return s
}

// WithTuning overrides the solver settings. Zero fields keep their
// defaults.
func (s *Service) WithTuning(t Tuning) *Service {
	if t.SolveBudget > 0 {
		s.tuning.SolveBudget = t.SolveBudget
	}
	if t.MaxHorizonDays > 0 {
		s.tuning.MaxHorizonDays = t.MaxHorizonDays
	}
	for section, limit := range t.SectionLimits {
		if limit > 0 {
			s.tuning.SectionLimits[section] = limit
		}
	}
	return s
}

// RunOptimization schedules the pending tests of a section (or all
// sections) over the horizon and persists the resulting planning as a
// draft. Tests are not mutated unless the full planning commits.
func (s *Service) RunOptimization(ctx context.Context, horizonStart, horizonEnd time.Time, section string) (*Result, error) {
	horizonStart = calendar.DateOnly(horizonStart)
	horizonEnd = calendar.DateOnly(horizonEnd)

	if section != "" && section != sample.SectionRoute && section != sample.SectionMecanique {
		return nil, &ValidationError{Msg: fmt.Sprintf("unknown section %q", section)}
	}
	days := int(horizonEnd.Sub(horizonStart).Hours() / 24)
	if days <= 0 {
		return nil, &ValidationError{Msg: "horizon end must be after horizon start"}
	}
	if days > s.tuning.MaxHorizonDays {
		return nil, &ValidationError{Msg: fmt.Sprintf("horizon of %d days exceeds the %d day cap", days, s.tuning.MaxHorizonDays)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	began := s.now()
	pending, err := s.tests.ListPending(ctx, section)
	if err != nil {
		return nil, fmt.Errorf("list pending tests: %w", err)
	}

	if len(pending) == 0 {
		p := &Planning{
			Section:      section,
			HorizonStart: horizonStart,
			HorizonEnd:   horizonEnd,
			Status:       StatusDraft,
			Optimal:      true,
		}
		if err := s.repo.Create(ctx, p); err != nil {
			return nil, err
		}
		telemetry.SolverRunCounter(sectionLabel(section), ResultNoPendingTests)
		return &Result{Planning: p, Status: ResultNoPendingTests}, nil
	}

	snap, err := s.buildSnapshot(ctx, horizonStart, days, pending)
	if err != nil {
		return nil, err
	}
	session, err := NewSession(*snap)
	if err != nil {
		return nil, s.noteFailure(ctx, section, horizonStart, err)
	}

	solveCtx, cancel := context.WithTimeout(ctx, s.tuning.SolveBudget)
	defer cancel()
	sol, err := session.Solve(solveCtx)
	if err != nil {
		return nil, s.noteFailure(ctx, section, horizonStart, err)
	}
	telemetry.ObserveSolverDuration(sol.Elapsed)

	p := &Planning{
		Section:      section,
		HorizonStart: horizonStart,
		HorizonEnd:   horizonEnd,
		Status:       StatusDraft,
		Objective:    sol.Objective,
		Makespan:     sol.Makespan,
		Optimal:      sol.Optimal,
		TaskCount:    len(sol.Placements),
		SolveMillis:  sol.Elapsed.Milliseconds(),
	}

	var assignments []*Assignment
	err = s.inTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, p); err != nil {
			return err
		}
		for _, pl := range sol.Placements {
			a := &Assignment{
				PlanningID:  p.ID,
				TestID:      pl.TaskID,
				SampleID:    pl.SampleID,
				TestType:    pl.TestType,
				Section:     pl.Section,
				StartOffset: pl.Start,
				EndOffset:   pl.End,
				StartDate:   horizonStart.AddDate(0, 0, pl.Start),
				EndDate:     horizonStart.AddDate(0, 0, pl.End),
			}
			if err := s.repo.CreateAssignment(txCtx, a); err != nil {
				return err
			}
			if err := s.tests.MarkScheduled(txCtx, a.TestID, a.StartDate, a.EndDate); err != nil {
				return err
			}
			assignments = append(assignments, a)
		}
		return nil
	})
	if err != nil {
		telemetry.SolverRunCounter(sectionLabel(section), "persist_failed")
		return nil, fmt.Errorf("persist planning: %w", err)
	}

	status := ResultOptimal
	if !sol.Optimal {
		status = ResultTimeBudgetExceeded
	}
	telemetry.SolverRunCounter(sectionLabel(section), status)
	log.Info().
		Str("planning", p.ID.String()).
		Str("section", sectionLabel(section)).
		Int("tasks", p.TaskCount).
		Int("makespan", p.Makespan).
		Float64("objective", p.Objective).
		Dur("elapsed", s.now().Sub(began)).
		Bool("optimal", sol.Optimal).
		Msg("optimization run complete")
	return &Result{Planning: p, Assignments: assignments, Status: status}, nil
}

// buildSnapshot resolves samples and closed days into the solver input.
func (s *Service) buildSnapshot(ctx context.Context, start time.Time, days int, pending []*sample.Test) (*Snapshot, error) {
	cal, err := s.calendar.LoadCalendar(ctx, start, start.AddDate(0, 0, days))
	if err != nil {
		return nil, fmt.Errorf("load calendar: %w", err)
	}

	today := calendar.DateOnly(s.now())
	samples := make(map[uuid.UUID]*sample.Sample)
	tasks := make([]TaskSpec, 0, len(pending))
	for _, t := range pending {
		smp, ok := samples[t.SampleID]
		if !ok {
			smp, err = s.samples.GetByID(ctx, t.SampleID)
			if err != nil {
				return nil, fmt.Errorf("resolve sample for test %s: %w", t.ID, err)
			}
			samples[t.SampleID] = smp
		}
		urgent := smp.Priority == sample.PriorityUrgent || t.Priority == sample.PriorityUrgent
		tasks = append(tasks, TaskSpec{
			ID:        t.ID,
			SampleID:  t.SampleID,
			TestType:  t.TestType,
			Section:   t.Section,
			Duration:  t.DurationDays,
			Rank:      sample.TypeRank(t.TestType),
			Priority:  PriorityScore(urgent, smp.ReceptionDate, t.DurationDays, t.Resumed, today),
			Reception: smp.ReceptionDate,
		})
	}

	return &Snapshot{
		Start:       start,
		HorizonDays: days,
		Tasks:       tasks,
		Closed: map[string]map[int]bool{
			sample.SectionRoute:     cal.ClosedOffsets(start, days, sample.SectionRoute),
			sample.SectionMecanique: cal.ClosedOffsets(start, days, sample.SectionMecanique),
		},
		SectionLimits: s.tuning.SectionLimits,
	}, nil
}

func (s *Service) noteFailure(ctx context.Context, section string, start time.Time, err error) error {
	var inf *InfeasibleError
	if errors.As(err, &inf) {
		telemetry.SolverRunCounter(sectionLabel(section), "infeasible")
		s.notify(ctx, "planning-infeasible", map[string]string{
			"section": sectionLabel(section),
			"date":    start.Format("2006-01-02"),
			"reason":  inf.Error(),
		})
	}
	return err
}

// Activate promotes a draft planning, atomically archiving whichever
// planning was active before. At most one planning is active at once.
func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*Planning, error) {
	var p *Planning
	err := s.inTx(ctx, func(txCtx context.Context) error {
		var err error
		p, err = s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if p.Status != StatusDraft {
			return &ValidationError{Msg: fmt.Sprintf("planning is %s, only drafts can be activated", p.Status)}
		}
		if _, err := s.repo.ArchiveActive(txCtx); err != nil {
			return err
		}
		now := s.now()
		if err := s.repo.SetStatus(txCtx, id, StatusActive, &now); err != nil {
			return err
		}
		p.Status = StatusActive
		p.ActivatedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, "planning-activated", map[string]string{
		"section":    sectionLabel(p.Section),
		"date":       p.HorizonStart.Format("2006-01-02"),
		"task_count": strconv.Itoa(p.TaskCount),
		"end_date":   p.HorizonEnd.Format("2006-01-02"),
	})
	return p, nil
}

// Archive demotes a planning without promoting another. Discarding a
// draft that never went active releases its tests back to pending, so
// a later optimization run can pick them up again.
func (s *Service) Archive(ctx context.Context, id uuid.UUID) error {
	return s.inTx(ctx, func(txCtx context.Context) error {
		p, err := s.repo.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if p.Status == StatusArchived {
			return nil
		}
		if err := s.repo.SetStatus(txCtx, id, StatusArchived, nil); err != nil {
			return err
		}
		if p.ActivatedAt != nil {
			return nil
		}
		assignments, err := s.repo.ListAssignments(txCtx, p.ID)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if err := s.tests.MarkPending(txCtx, a.TestID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Planning, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetActive(ctx context.Context) (*Planning, error) {
	return s.repo.GetActive(ctx)
}

func (s *Service) List(ctx context.Context, section, status string, limit, offset int) ([]*Planning, int, error) {
	return s.repo.List(ctx, section, status, limit, offset)
}

func (s *Service) Assignments(ctx context.Context, planningID uuid.UUID) ([]*Assignment, error) {
	return s.repo.ListAssignments(ctx, planningID)
}

// DispatchDue flips tests of the active planning to in_progress when
// their scheduled start falls on the given day. Returns how many tests
// were dispatched.
func (s *Service) DispatchDue(ctx context.Context, day time.Time) (int, error) {
	day = calendar.DateOnly(day)
	active, err := s.repo.GetActive(ctx)
	if err != nil {
		return 0, err
	}
	if active == nil {
		return 0, nil
	}
	due, err := s.repo.ListAssignmentsStarting(ctx, active.ID, day)
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for _, a := range due {
		if err := s.tests.MarkInProgress(ctx, a.TestID, day); err != nil {
			log.Warn().Err(err).Str("test", a.TestID.String()).Msg("dispatch skipped")
			continue
		}
		dispatched++
	}
	if dispatched > 0 {
		log.Info().Int("count", dispatched).Time("day", day).Msg("tests dispatched")
	}
	return dispatched, nil
}

// OptimizeWeekly runs the standing weekly optimization: a two week
// horizon starting next Monday, all sections.
func (s *Service) OptimizeWeekly(ctx context.Context) (*Result, error) {
	start := nextMonday(calendar.DateOnly(s.now()))
	return s.RunOptimization(ctx, start, start.AddDate(0, 0, WeeklyHorizonDays), "")
}

func nextMonday(d time.Time) time.Time {
	offset := (int(time.Monday) - int(d.Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	return d.AddDate(0, 0, offset)
}

// inTx wraps fn in a database transaction. Without a pool (in-memory
// repositories) fn runs directly.
func (s *Service) inTx(ctx context.Context, fn func(context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	return db.WithTx(ctx, s.pool, fn)
}

func (s *Service) notify(ctx context.Context, template string, data map[string]string) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.SendFromTemplate(ctx, template, data, s.recipient); err != nil {
		log.Warn().Err(err).Str("template", template).Msg("notification failed")
	}
}

func sectionLabel(section string) string {
	if section == "" {
		return "all"
	}
	return section
}
