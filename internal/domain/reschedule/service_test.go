package reschedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/snertp/labsched/internal/domain/sample"
)

type mockTaskRepo struct {
	tasks map[uuid.UUID]*DeferredTask
}

func newMockTaskRepo() *mockTaskRepo {
	return &mockTaskRepo{tasks: make(map[uuid.UUID]*DeferredTask)}
}

func (m *mockTaskRepo) Create(_ context.Context, t *DeferredTask) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *mockTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*DeferredTask, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTaskRepo) List(_ context.Context, status string, limit, offset int) ([]*DeferredTask, int, error) {
	var out []*DeferredTask
	for _, t := range m.tasks {
		if status == "" || t.Status == status {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockTaskRepo) ListDue(_ context.Context, now time.Time) ([]*DeferredTask, error) {
	var out []*DeferredTask
	for _, t := range m.tasks {
		if t.Status == TaskStatusPending && !t.TargetAt.After(now) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockTaskRepo) SetStatus(_ context.Context, id uuid.UUID, status string, executedAt *time.Time) error {
	t, ok := m.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	t.Status = status
	if executedAt != nil {
		t.ExecutedAt = executedAt
	}
	return nil
}

type mockSamples struct {
	samples map[uuid.UUID]*sample.Sample
}

func (m *mockSamples) GetByID(_ context.Context, id uuid.UUID) (*sample.Sample, error) {
	s, ok := m.samples[id]
	if !ok {
		return nil, sample.ErrSampleNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSamples) Update(_ context.Context, s *sample.Sample) error {
	if _, ok := m.samples[s.ID]; !ok {
		return sample.ErrSampleNotFound
	}
	cp := *s
	m.samples[s.ID] = &cp
	return nil
}

type mockTests struct {
	tests map[uuid.UUID]*sample.Test
}

func (m *mockTests) ListBySample(_ context.Context, sampleID uuid.UUID) ([]*sample.Test, error) {
	var out []*sample.Test
	for _, t := range m.tests {
		if t.SampleID == sampleID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockTests) Update(_ context.Context, t *sample.Test) error {
	if _, ok := m.tests[t.ID]; !ok {
		return sample.ErrTestNotFound
	}
	cp := *t
	m.tests[t.ID] = &cp
	return nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func fixture() (*Service, *mockTaskRepo, *mockSamples, *mockTests, uuid.UUID) {
	smpID := uuid.New()
	testID := uuid.New()
	samples := &mockSamples{samples: map[uuid.UUID]*sample.Sample{
		smpID: {ID: smpID, Code: "A-0003/26", Nature: "Argile", RequestedTypes: []string{"Oedometre"}},
	}}
	tests := &mockTests{tests: map[uuid.UUID]*sample.Test{
		testID: {ID: testID, SampleID: smpID, TestType: "Oedometre", Section: sample.SectionMecanique,
			DurationDays: 18, Status: sample.TestStatusPending},
	}}
	tasks := newMockTaskRepo()
	svc := NewService(tasks, samples, tests)
	svc.now = func() time.Time { return date(2026, 2, 2) }
	return svc, tasks, samples, tests, smpID
}

func TestDelay_ShiftsDatesAndCreatesTask(t *testing.T) {
	svc, tasks, samples, tests, smpID := fixture()

	result, err := svc.Delay(context.Background(), smpID, 4)
	if err != nil {
		t.Fatalf("Delay failed: %v", err)
	}

	// Calendar days, not working days: Feb 2 + 4 = Feb 6.
	wantDispatch := date(2026, 2, 6)
	if !result.NewDispatchDate.Equal(wantDispatch) {
		t.Errorf("dispatch = %v, want %v", result.NewDispatchDate, wantDispatch)
	}
	// 18 day duration plus the 2 day buffer.
	wantReturn := date(2026, 2, 26)
	if !result.NewReturnDate.Equal(wantReturn) {
		t.Errorf("return = %v, want %v", result.NewReturnDate, wantReturn)
	}

	smp := samples.samples[smpID]
	if smp.DispatchDate == nil || !smp.DispatchDate.Equal(wantDispatch) {
		t.Errorf("sample dispatch = %v, want %v", smp.DispatchDate, wantDispatch)
	}
	if smp.ReturnDate == nil || !smp.ReturnDate.Equal(wantReturn) {
		t.Errorf("sample return = %v, want %v", smp.ReturnDate, wantReturn)
	}

	for _, tt := range tests.tests {
		if tt.PlannedDispatch == nil || !tt.PlannedDispatch.Equal(wantDispatch) {
			t.Errorf("test planned dispatch = %v, want %v", tt.PlannedDispatch, wantDispatch)
		}
	}

	if len(tasks.tasks) != 1 {
		t.Fatalf("got %d deferred tasks, want exactly 1", len(tasks.tasks))
	}
	task := tasks.tasks[result.DeferredTaskID]
	wantTarget := time.Date(2026, 2, 6, 8, 30, 0, 0, time.UTC)
	if !task.TargetAt.Equal(wantTarget) {
		t.Errorf("target = %v, want %v", task.TargetAt, wantTarget)
	}
	if task.Action != ActionResumeDispatch {
		t.Errorf("action = %q, want resume_dispatch", task.Action)
	}
}

func TestDelay_RedelayOverwritesAndDuplicatesTask(t *testing.T) {
	svc, tasks, samples, _, smpID := fixture()
	ctx := context.Background()

	if _, err := svc.Delay(ctx, smpID, 2); err != nil {
		t.Fatalf("first Delay failed: %v", err)
	}
	result, err := svc.Delay(ctx, smpID, 7)
	if err != nil {
		t.Fatalf("second Delay failed: %v", err)
	}

	wantDispatch := date(2026, 2, 9)
	if got := samples.samples[smpID].DispatchDate; got == nil || !got.Equal(wantDispatch) {
		t.Errorf("dispatch = %v, want %v after re-delay", got, wantDispatch)
	}
	if len(tasks.tasks) != 2 {
		t.Errorf("got %d deferred tasks, want 2 (one per delay)", len(tasks.tasks))
	}
	_ = result
}

func TestDelay_Validation(t *testing.T) {
	svc, _, _, _, smpID := fixture()
	ctx := context.Background()

	if _, err := svc.Delay(ctx, smpID, 0); err == nil {
		t.Error("expected error for zero delay")
	}
	if _, err := svc.Delay(ctx, smpID, -3); err == nil {
		t.Error("expected error for negative delay")
	}
	if _, err := svc.Delay(ctx, uuid.New(), 2); err == nil {
		t.Error("expected not found for unknown sample")
	}
}

func TestExecuteDue_RunsPastTargets(t *testing.T) {
	svc, tasks, _, _, smpID := fixture()
	ctx := context.Background()

	if _, err := svc.Delay(ctx, smpID, 4); err != nil {
		t.Fatalf("Delay failed: %v", err)
	}

	// Before the target nothing runs.
	n, err := svc.ExecuteDue(ctx)
	if err != nil {
		t.Fatalf("ExecuteDue failed: %v", err)
	}
	if n != 0 {
		t.Errorf("executed %d tasks before the target", n)
	}

	svc.now = func() time.Time { return time.Date(2026, 2, 6, 9, 0, 0, 0, time.UTC) }
	n, err = svc.ExecuteDue(ctx)
	if err != nil {
		t.Fatalf("ExecuteDue failed: %v", err)
	}
	if n != 1 {
		t.Errorf("executed = %d, want 1", n)
	}
	for _, task := range tasks.tasks {
		if task.Status != TaskStatusExecuted {
			t.Errorf("task status = %q, want executed", task.Status)
		}
		if task.ExecutedAt == nil {
			t.Error("executed task has no execution time")
		}
	}
}

func TestCancel(t *testing.T) {
	svc, tasks, _, _, smpID := fixture()
	ctx := context.Background()

	result, err := svc.Delay(ctx, smpID, 3)
	if err != nil {
		t.Fatalf("Delay failed: %v", err)
	}
	if err := svc.Cancel(ctx, result.DeferredTaskID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if got := tasks.tasks[result.DeferredTaskID].Status; got != TaskStatusCancelled {
		t.Errorf("status = %q, want cancelled", got)
	}
	// A cancelled task cannot be cancelled again.
	if err := svc.Cancel(ctx, result.DeferredTaskID); err == nil {
		t.Error("expected error cancelling twice")
	}
}
