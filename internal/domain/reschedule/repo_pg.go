package reschedule

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

const taskCols = `id, sample_id, target_at, action, status, executed_at, created_at, updated_at`

type taskRepoPG struct {
	pool *pgxpool.Pool
}

// NewTaskRepoPG returns a Postgres-backed TaskRepository.
func NewTaskRepoPG(pool *pgxpool.Pool) TaskRepository {
	return &taskRepoPG{pool: pool}
}

func (r *taskRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func scanTask(row pgx.Row) (*DeferredTask, error) {
	var t DeferredTask
	err := row.Scan(&t.ID, &t.SampleID, &t.TargetAt, &t.Action, &t.Status, &t.ExecutedAt,
		&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *taskRepoPG) Create(ctx context.Context, t *DeferredTask) error {
	t.ID = uuid.New()
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO deferred_task (id, sample_id, target_at, action, status, executed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.SampleID, t.TargetAt, t.Action, t.Status, t.ExecutedAt, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert deferred task: %w", err)
	}
	return nil
}

func (r *taskRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DeferredTask, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+taskCols+` FROM deferred_task WHERE id = $1`, id)
	t, err := scanTask(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get deferred task: %w", err)
	}
	return t, nil
}

func (r *taskRepoPG) List(ctx context.Context, status string, limit, offset int) ([]*DeferredTask, int, error) {
	where := ""
	args := []any{limit, offset}
	countWhere := ""
	var countArgs []any
	if status != "" {
		where = ` WHERE status = $3`
		args = append(args, status)
		countWhere = ` WHERE status = $1`
		countArgs = append(countArgs, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM deferred_task`+countWhere, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count deferred tasks: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+taskCols+` FROM deferred_task`+where+` ORDER BY target_at LIMIT $1 OFFSET $2`,
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list deferred tasks: %w", err)
	}
	defer rows.Close()

	var out []*DeferredTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan deferred task: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *taskRepoPG) ListDue(ctx context.Context, now time.Time) ([]*DeferredTask, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+taskCols+` FROM deferred_task WHERE status = $1 AND target_at <= $2 ORDER BY target_at`,
		TaskStatusPending, now)
	if err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	defer rows.Close()

	var out []*DeferredTask
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deferred task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *taskRepoPG) SetStatus(ctx context.Context, id uuid.UUID, status string, executedAt *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE deferred_task SET status = $2, executed_at = COALESCE($3, executed_at), updated_at = $4
		WHERE id = $1`,
		id, status, executedAt, time.Now())
	if err != nil {
		return fmt.Errorf("set deferred task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTaskNotFound
	}
	return nil
}
