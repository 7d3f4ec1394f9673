package planning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snertp/labsched/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const planningCols = `id, section, horizon_start, horizon_end, status, objective, makespan,
	optimal, task_count, solve_millis, activated_at, created_at, updated_at`

const assignmentCols = `id, planning_id, test_id, sample_id, test_type, section,
	start_offset, end_offset, start_date, end_date, created_at`

type repoPG struct {
	pool *pgxpool.Pool
}

// NewRepoPG returns a Postgres-backed Repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func scanPlanning(row pgx.Row) (*Planning, error) {
	var p Planning
	err := row.Scan(&p.ID, &p.Section, &p.HorizonStart, &p.HorizonEnd, &p.Status, &p.Objective,
		&p.Makespan, &p.Optimal, &p.TaskCount, &p.SolveMillis, &p.ActivatedAt,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, p *Planning) error {
	p.ID = uuid.New()
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO planning (id, section, horizon_start, horizon_end, status, objective,
			makespan, optimal, task_count, solve_millis, activated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.Section, p.HorizonStart, p.HorizonEnd, p.Status, p.Objective,
		p.Makespan, p.Optimal, p.TaskCount, p.SolveMillis, p.ActivatedAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert planning: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Planning, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+planningCols+` FROM planning WHERE id = $1`, id)
	p, err := scanPlanning(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPlanningNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get planning: %w", err)
	}
	return p, nil
}

func (r *repoPG) GetActive(ctx context.Context) (*Planning, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+planningCols+` FROM planning WHERE status = $1`, StatusActive)
	p, err := scanPlanning(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active planning: %w", err)
	}
	return p, nil
}

func (r *repoPG) List(ctx context.Context, section, status string, limit, offset int) ([]*Planning, int, error) {
	where := ""
	args := []any{limit, offset}
	n := 2
	if section != "" {
		n++
		where += fmt.Sprintf(" AND section = $%d", n)
		args = append(args, section)
	}
	if status != "" {
		n++
		where += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, status)
	}

	// The count query has no limit/offset, so its placeholders shift.
	countWhere := ""
	var countArgs []any
	k := 0
	if section != "" {
		k++
		countWhere += fmt.Sprintf(" AND section = $%d", k)
		countArgs = append(countArgs, section)
	}
	if status != "" {
		k++
		countWhere += fmt.Sprintf(" AND status = $%d", k)
		countArgs = append(countArgs, status)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM planning WHERE 1=1`+countWhere, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count plannings: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+planningCols+` FROM planning WHERE 1=1`+where+` ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list plannings: %w", err)
	}
	defer rows.Close()

	var out []*Planning
	for rows.Next() {
		p, err := scanPlanning(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan planning: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *repoPG) SetStatus(ctx context.Context, id uuid.UUID, status string, activatedAt *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE planning SET status = $2, activated_at = COALESCE($3, activated_at), updated_at = $4
		WHERE id = $1`,
		id, status, activatedAt, time.Now())
	if err != nil {
		return fmt.Errorf("set planning status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlanningNotFound
	}
	return nil
}

func (r *repoPG) ArchiveActive(ctx context.Context) (*uuid.UUID, error) {
	var id uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE planning SET status = $1, updated_at = $2
		WHERE status = $3
		RETURNING id`,
		StatusArchived, time.Now(), StatusActive).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("archive active planning: %w", err)
	}
	return &id, nil
}

func (r *repoPG) CreateAssignment(ctx context.Context, a *Assignment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO assignment (id, planning_id, test_id, sample_id, test_type, section,
			start_offset, end_offset, start_date, end_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		a.ID, a.PlanningID, a.TestID, a.SampleID, a.TestType, a.Section,
		a.StartOffset, a.EndOffset, a.StartDate, a.EndDate, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

func (r *repoPG) ListAssignments(ctx context.Context, planningID uuid.UUID) ([]*Assignment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+assignmentCols+` FROM assignment WHERE planning_id = $1 ORDER BY start_offset, test_type`,
		planningID)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func (r *repoPG) ListAssignmentsStarting(ctx context.Context, planningID uuid.UUID, date time.Time) ([]*Assignment, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+assignmentCols+` FROM assignment
		 WHERE planning_id = $1 AND start_date::date = $2::date
		 ORDER BY test_type`,
		planningID, date)
	if err != nil {
		return nil, fmt.Errorf("list assignments starting: %w", err)
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func collectAssignments(rows pgx.Rows) ([]*Assignment, error) {
	var out []*Assignment
	for rows.Next() {
		var a Assignment
		err := rows.Scan(&a.ID, &a.PlanningID, &a.TestID, &a.SampleID, &a.TestType, &a.Section,
			&a.StartOffset, &a.EndOffset, &a.StartDate, &a.EndDate, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *repoPG) CountActive(ctx context.Context) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM planning WHERE status = $1`, StatusActive).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active plannings: %w", err)
	}
	return n, nil
}
