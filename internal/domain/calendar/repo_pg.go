package calendar

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snertp/labsched/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type ruleRepoPG struct{ pool *pgxpool.Pool }

func NewRuleRepoPG(pool *pgxpool.Pool) RuleRepository { return &ruleRepoPG{pool: pool} }

func (r *ruleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const ruleCols = `id, name, start_date, end_date, section, created_at, updated_at`

func (r *ruleRepoPG) scanRule(row pgx.Row) (*ClosedDayRule, error) {
	var cr ClosedDayRule
	err := row.Scan(&cr.ID, &cr.Name, &cr.StartDate, &cr.EndDate, &cr.Section,
		&cr.CreatedAt, &cr.UpdatedAt)
	return &cr, err
}

func (r *ruleRepoPG) Create(ctx context.Context, cr *ClosedDayRule) error {
	cr.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO closed_day_rule (id, name, start_date, end_date, section)
		VALUES ($1,$2,$3,$4,$5)`,
		cr.ID, cr.Name, cr.StartDate, cr.EndDate, cr.Section)
	return err
}

func (r *ruleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ClosedDayRule, error) {
	return r.scanRule(r.conn(ctx).QueryRow(ctx, `SELECT `+ruleCols+` FROM closed_day_rule WHERE id = $1`, id))
}

func (r *ruleRepoPG) Update(ctx context.Context, cr *ClosedDayRule) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE closed_day_rule SET name=$2, start_date=$3, end_date=$4, section=$5, updated_at=NOW()
		WHERE id = $1`,
		cr.ID, cr.Name, cr.StartDate, cr.EndDate, cr.Section)
	return err
}

func (r *ruleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM closed_day_rule WHERE id = $1`, id)
	return err
}

func (r *ruleRepoPG) List(ctx context.Context, limit, offset int) ([]*ClosedDayRule, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM closed_day_rule`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+ruleCols+` FROM closed_day_rule ORDER BY start_date LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ClosedDayRule
	for rows.Next() {
		cr, err := r.scanRule(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, cr)
	}
	return items, total, nil
}

func (r *ruleRepoPG) ListInRange(ctx context.Context, rangeStart, rangeEnd time.Time) ([]*ClosedDayRule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+ruleCols+` FROM closed_day_rule
		WHERE start_date <= $2 AND end_date >= $1
		ORDER BY start_date`, rangeStart, rangeEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ClosedDayRule
	for rows.Next() {
		cr, err := r.scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, cr)
	}
	return items, rows.Err()
}
