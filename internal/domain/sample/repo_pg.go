package sample

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

const sampleCols = `id, code, nature, reception_date, priority, status, requested_types,
	dispatch_date, return_date, confidence, return_confidence, created_at, updated_at`

const testCols = `id, sample_id, test_type, section, duration_days, status, priority, resumed,
	planned_dispatch, scheduled_start, scheduled_end, started_at, created_at, updated_at`

type sampleRepoPG struct {
	pool *pgxpool.Pool
}

// NewSampleRepoPG returns a Postgres-backed SampleRepository.
func NewSampleRepoPG(pool *pgxpool.Pool) SampleRepository {
	return &sampleRepoPG{pool: pool}
}

func (r *sampleRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func scanSample(row pgx.Row) (*Sample, error) {
	var s Sample
	err := row.Scan(&s.ID, &s.Code, &s.Nature, &s.ReceptionDate, &s.Priority, &s.Status,
		&s.RequestedTypes, &s.DispatchDate, &s.ReturnDate, &s.Confidence, &s.ReturnConfidence,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sampleRepoPG) Create(ctx context.Context, s *Sample) error {
	s.ID = uuid.New()
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO sample (id, code, nature, reception_date, priority, status, requested_types,
			dispatch_date, return_date, confidence, return_confidence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.Code, s.Nature, s.ReceptionDate, s.Priority, s.Status, s.RequestedTypes,
		s.DispatchDate, s.ReturnDate, s.Confidence, s.ReturnConfidence, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return nil
}

func (r *sampleRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Sample, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+sampleCols+` FROM sample WHERE id = $1`, id)
	s, err := scanSample(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSampleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sample: %w", err)
	}
	return s, nil
}

func (r *sampleRepoPG) GetByCode(ctx context.Context, code string) (*Sample, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+sampleCols+` FROM sample WHERE code = $1`, code)
	s, err := scanSample(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSampleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sample by code: %w", err)
	}
	return s, nil
}

func (r *sampleRepoPG) Update(ctx context.Context, s *Sample) error {
	s.UpdatedAt = time.Now()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE sample SET nature = $2, reception_date = $3, priority = $4, status = $5,
			requested_types = $6, dispatch_date = $7, return_date = $8, confidence = $9,
			return_confidence = $10, updated_at = $11
		WHERE id = $1`,
		s.ID, s.Nature, s.ReceptionDate, s.Priority, s.Status, s.RequestedTypes,
		s.DispatchDate, s.ReturnDate, s.Confidence, s.ReturnConfidence, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update sample: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSampleNotFound
	}
	return nil
}

func (r *sampleRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM sample WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete sample: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSampleNotFound
	}
	return nil
}

func (r *sampleRepoPG) List(ctx context.Context, status string, limit, offset int) ([]*Sample, int, error) {
	where := ""
	args := []any{limit, offset}
	if status != "" {
		where = ` WHERE status = $3`
		args = append(args, status)
	}

	var total int
	countArgs := args[2:]
	countWhere := ""
	if status != "" {
		countWhere = ` WHERE status = $1`
	}
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM sample`+countWhere, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count samples: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+sampleCols+` FROM sample`+where+` ORDER BY reception_date DESC, code DESC LIMIT $1 OFFSET $2`,
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list samples: %w", err)
	}
	defer rows.Close()

	var out []*Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan sample: %w", err)
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *sampleRepoPG) CountByYear(ctx context.Context, year int) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM sample WHERE EXTRACT(YEAR FROM reception_date) = $1`, year).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count samples by year: %w", err)
	}
	return n, nil
}

func (r *sampleRepoPG) QueueDepths(ctx context.Context) (map[string]int, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT t.test_type, COUNT(*)
		FROM lab_test t
		JOIN sample s ON s.id = t.sample_id
		WHERE t.status = $1 AND s.status = $2
		GROUP BY t.test_type`,
		TestStatusPending, SampleStatusWaiting)
	if err != nil {
		return nil, fmt.Errorf("queue depths: %w", err)
	}
	defer rows.Close()

	depths := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("scan queue depth: %w", err)
		}
		depths[typ] = n
	}
	return depths, rows.Err()
}

type testRepoPG struct {
	pool *pgxpool.Pool
}

// NewTestRepoPG returns a Postgres-backed TestRepository.
func NewTestRepoPG(pool *pgxpool.Pool) TestRepository {
	return &testRepoPG{pool: pool}
}

func (r *testRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func scanTest(row pgx.Row) (*Test, error) {
	var t Test
	err := row.Scan(&t.ID, &t.SampleID, &t.TestType, &t.Section, &t.DurationDays, &t.Status,
		&t.Priority, &t.Resumed, &t.PlannedDispatch, &t.ScheduledStart, &t.ScheduledEnd,
		&t.StartedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *testRepoPG) Create(ctx context.Context, t *Test) error {
	t.ID = uuid.New()
	now := time.Now()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO lab_test (id, sample_id, test_type, section, duration_days, status, priority,
			resumed, planned_dispatch, scheduled_start, scheduled_end, started_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		t.ID, t.SampleID, t.TestType, t.Section, t.DurationDays, t.Status, t.Priority,
		t.Resumed, t.PlannedDispatch, t.ScheduledStart, t.ScheduledEnd, t.StartedAt,
		t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert test: %w", err)
	}
	return nil
}

func (r *testRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Test, error) {
	row := r.conn(ctx).QueryRow(ctx,
		`SELECT `+testCols+` FROM lab_test WHERE id = $1`, id)
	t, err := scanTest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test: %w", err)
	}
	return t, nil
}

func (r *testRepoPG) Update(ctx context.Context, t *Test) error {
	t.UpdatedAt = time.Now()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_test SET test_type = $2, section = $3, duration_days = $4, status = $5,
			priority = $6, resumed = $7, planned_dispatch = $8, scheduled_start = $9,
			scheduled_end = $10, started_at = $11, updated_at = $12
		WHERE id = $1`,
		t.ID, t.TestType, t.Section, t.DurationDays, t.Status, t.Priority, t.Resumed,
		t.PlannedDispatch, t.ScheduledStart, t.ScheduledEnd, t.StartedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update test: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTestNotFound
	}
	return nil
}

func (r *testRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM lab_test WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete test: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTestNotFound
	}
	return nil
}

func (r *testRepoPG) ListBySample(ctx context.Context, sampleID uuid.UUID) ([]*Test, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+testCols+` FROM lab_test WHERE sample_id = $1 ORDER BY created_at`, sampleID)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	defer rows.Close()
	return collectTests(rows)
}

func (r *testRepoPG) ListPending(ctx context.Context, section string) ([]*Test, error) {
	where := `WHERE status = $1`
	args := []any{TestStatusPending}
	if section != "" {
		where += ` AND section = $2`
		args = append(args, section)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+testCols+` FROM lab_test `+where+` ORDER BY created_at`, args...)
	if err != nil {
		return nil, fmt.Errorf("list pending tests: %w", err)
	}
	defer rows.Close()
	return collectTests(rows)
}

func collectTests(rows pgx.Rows) ([]*Test, error) {
	var out []*Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *testRepoPG) CountStartsOn(ctx context.Context, testType string, date time.Time) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM lab_test
		WHERE test_type = $1 AND scheduled_start::date = $2::date
		  AND status IN ($3, $4)`,
		testType, date, TestStatusScheduled, TestStatusInProgress).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count starts: %w", err)
	}
	return n, nil
}

func (r *testRepoPG) MarkScheduled(ctx context.Context, id uuid.UUID, start, end time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_test SET status = $2, scheduled_start = $3, scheduled_end = $4, updated_at = $5
		WHERE id = $1`,
		id, TestStatusScheduled, start, end, time.Now())
	if err != nil {
		return fmt.Errorf("mark scheduled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTestNotFound
	}
	return nil
}

func (r *testRepoPG) MarkInProgress(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_test SET status = $2, started_at = $3, updated_at = $4
		WHERE id = $1 AND status = $5`,
		id, TestStatusInProgress, startedAt, time.Now(), TestStatusScheduled)
	if err != nil {
		return fmt.Errorf("mark in progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w or not scheduled", ErrTestNotFound)
	}
	return nil
}

func (r *testRepoPG) MarkPending(ctx context.Context, id uuid.UUID) error {
	// No-rows is not an error: a test that was completed or dispatched
	// in the meantime keeps its state.
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE lab_test SET status = $2, scheduled_start = NULL, scheduled_end = NULL, updated_at = $3
		WHERE id = $1 AND status = $4`,
		id, TestStatusPending, time.Now(), TestStatusScheduled)
	if err != nil {
		return fmt.Errorf("mark pending: %w", err)
	}
	return nil
}
