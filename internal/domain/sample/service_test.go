package sample

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/snertp/labsched/internal/domain/capacity"
)

type mockSampleRepo struct {
	samples map[uuid.UUID]*Sample
}

func newMockSampleRepo() *mockSampleRepo {
	return &mockSampleRepo{samples: make(map[uuid.UUID]*Sample)}
}

func (m *mockSampleRepo) Create(_ context.Context, s *Sample) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	s.UpdatedAt = s.CreatedAt
	cp := *s
	m.samples[s.ID] = &cp
	return nil
}

func (m *mockSampleRepo) GetByID(_ context.Context, id uuid.UUID) (*Sample, error) {
	s, ok := m.samples[id]
	if !ok {
		return nil, ErrSampleNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSampleRepo) GetByCode(_ context.Context, code string) (*Sample, error) {
	for _, s := range m.samples {
		if s.Code == code {
			cp := *s
			return &cp, nil
		}
	}
	return nil, ErrSampleNotFound
}

func (m *mockSampleRepo) Update(_ context.Context, s *Sample) error {
	if _, ok := m.samples[s.ID]; !ok {
		return ErrSampleNotFound
	}
	cp := *s
	m.samples[s.ID] = &cp
	return nil
}

func (m *mockSampleRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.samples[id]; !ok {
		return ErrSampleNotFound
	}
	delete(m.samples, id)
	return nil
}

func (m *mockSampleRepo) List(_ context.Context, status string, limit, offset int) ([]*Sample, int, error) {
	var out []*Sample
	for _, s := range m.samples {
		if status == "" || s.Status == status {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockSampleRepo) CountByYear(_ context.Context, year int) (int, error) {
	n := 0
	for _, s := range m.samples {
		if s.ReceptionDate.Year() == year {
			n++
		}
	}
	return n, nil
}

func (m *mockSampleRepo) QueueDepths(_ context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

type mockTestRepo struct {
	tests map[uuid.UUID]*Test
}

func newMockTestRepo() *mockTestRepo {
	return &mockTestRepo{tests: make(map[uuid.UUID]*Test)}
}

func (m *mockTestRepo) Create(_ context.Context, t *Test) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	m.tests[t.ID] = &cp
	return nil
}

func (m *mockTestRepo) GetByID(_ context.Context, id uuid.UUID) (*Test, error) {
	t, ok := m.tests[id]
	if !ok {
		return nil, ErrTestNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTestRepo) Update(_ context.Context, t *Test) error {
	if _, ok := m.tests[t.ID]; !ok {
		return ErrTestNotFound
	}
	cp := *t
	m.tests[t.ID] = &cp
	return nil
}

func (m *mockTestRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := m.tests[id]; !ok {
		return ErrTestNotFound
	}
	delete(m.tests, id)
	return nil
}

func (m *mockTestRepo) ListBySample(_ context.Context, sampleID uuid.UUID) ([]*Test, error) {
	var out []*Test
	for _, t := range m.tests {
		if t.SampleID == sampleID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockTestRepo) ListPending(_ context.Context, section string) ([]*Test, error) {
	var out []*Test
	for _, t := range m.tests {
		if t.Status == TestStatusPending && (section == "" || t.Section == section) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockTestRepo) CountStartsOn(_ context.Context, testType string, date time.Time) (int, error) {
	n := 0
	for _, t := range m.tests {
		if t.TestType == testType && t.ScheduledStart != nil && t.ScheduledStart.Equal(date) {
			n++
		}
	}
	return n, nil
}

func (m *mockTestRepo) MarkScheduled(_ context.Context, id uuid.UUID, start, end time.Time) error {
	t, ok := m.tests[id]
	if !ok {
		return ErrTestNotFound
	}
	t.Status = TestStatusScheduled
	t.ScheduledStart = &start
	t.ScheduledEnd = &end
	return nil
}

func (m *mockTestRepo) MarkInProgress(_ context.Context, id uuid.UUID, startedAt time.Time) error {
	t, ok := m.tests[id]
	if !ok {
		return ErrTestNotFound
	}
	t.Status = TestStatusInProgress
	t.StartedAt = &startedAt
	return nil
}

func (m *mockTestRepo) MarkPending(_ context.Context, id uuid.UUID) error {
	t, ok := m.tests[id]
	if !ok || t.Status != TestStatusScheduled {
		return nil
	}
	t.Status = TestStatusPending
	t.ScheduledStart = nil
	t.ScheduledEnd = nil
	return nil
}

type stubTable struct{}

func (stubTable) LoadTable(_ context.Context) (capacity.Table, error) {
	return capacity.DefaultTable(), nil
}

func newTestService() (*Service, *mockSampleRepo, *mockTestRepo) {
	samples := newMockSampleRepo()
	tests := newMockTestRepo()
	return NewService(samples, tests, stubTable{}), samples, tests
}

func TestCreateSample_GeneratesCodeAndTests(t *testing.T) {
	svc, _, tests := newTestService()

	smp := &Sample{
		Nature:         "Gravier",
		ReceptionDate:  time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC),
		RequestedTypes: []string{"AG", "CBR"},
	}
	if err := svc.CreateSample(context.Background(), smp); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	if smp.Code != "G-0001/26" {
		t.Errorf("code = %q, want G-0001/26", smp.Code)
	}
	if smp.Status != SampleStatusWaiting {
		t.Errorf("status = %q, want waiting", smp.Status)
	}
	if smp.Priority != PriorityNormal {
		t.Errorf("priority = %q, want normal", smp.Priority)
	}
	if h := smp.ReceptionDate.Hour(); h != 0 {
		t.Errorf("reception date not truncated, hour = %d", h)
	}

	created, err := svc.ListTests(context.Background(), smp.ID)
	if err != nil {
		t.Fatalf("ListTests failed: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("got %d tests, want 2", len(created))
	}
	durations := map[string]int{}
	for _, tt := range created {
		durations[tt.TestType] = tt.DurationDays
		if tt.Status != TestStatusPending {
			t.Errorf("%s status = %q, want pending", tt.TestType, tt.Status)
		}
		if tt.Section != SectionRoute {
			t.Errorf("%s section = %q, want route", tt.TestType, tt.Section)
		}
	}
	if durations["AG"] != 5 || durations["CBR"] != 9 {
		t.Errorf("durations = %v, want AG:5 CBR:9", durations)
	}
	_ = tests
}

func TestCreateSample_SequenceIncrements(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()
	reception := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)

	first := &Sample{Nature: "Argile", ReceptionDate: reception, RequestedTypes: []string{"Oedometre"}}
	if err := svc.CreateSample(ctx, first); err != nil {
		t.Fatalf("first CreateSample failed: %v", err)
	}
	second := &Sample{Nature: "Argile", ReceptionDate: reception, RequestedTypes: []string{"Cisaillement"}}
	if err := svc.CreateSample(ctx, second); err != nil {
		t.Fatalf("second CreateSample failed: %v", err)
	}

	if first.Code != "A-0001/26" || second.Code != "A-0002/26" {
		t.Errorf("codes = %q, %q; want A-0001/26, A-0002/26", first.Code, second.Code)
	}
}

func TestCreateSample_AccentedNaturePrefix(t *testing.T) {
	svc, _, _ := newTestService()
	reception := time.Date(2026, 5, 11, 0, 0, 0, 0, time.UTC)

	smp := &Sample{Nature: " éboulis", ReceptionDate: reception, RequestedTypes: []string{"AG"}}
	if err := svc.CreateSample(context.Background(), smp); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	if smp.Code != "É-0001/26" {
		t.Errorf("code = %q, want É-0001/26", smp.Code)
	}
}

func TestCreateSample_Validation(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		smp  *Sample
	}{
		{"missing nature", &Sample{RequestedTypes: []string{"AG"}}},
		{"no types", &Sample{Nature: "Sable"}},
		{"unknown type", &Sample{Nature: "Sable", RequestedTypes: []string{"Triaxial"}}},
		{"duplicate type", &Sample{Nature: "Sable", RequestedTypes: []string{"AG", "AG"}}},
		{"bad priority", &Sample{Nature: "Sable", Priority: "critical", RequestedTypes: []string{"AG"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.CreateSample(ctx, tc.smp); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestAddTest_RejectsDuplicate(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	smp := &Sample{Nature: "Limon", RequestedTypes: []string{"Proctor"}}
	if err := svc.CreateSample(ctx, smp); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	if _, err := svc.AddTest(ctx, smp.ID, "Proctor"); err == nil {
		t.Error("expected duplicate type error")
	}
	added, err := svc.AddTest(ctx, smp.ID, "Oedometre")
	if err != nil {
		t.Fatalf("AddTest failed: %v", err)
	}
	if added.Section != SectionMecanique || added.DurationDays != 18 {
		t.Errorf("added test = %+v, want mecanique section and 18 days", added)
	}

	updated, err := svc.GetSample(ctx, smp.ID)
	if err != nil {
		t.Fatalf("GetSample failed: %v", err)
	}
	if len(updated.RequestedTypes) != 2 {
		t.Errorf("requested types = %v, want 2 entries", updated.RequestedTypes)
	}
}

func TestRejectAndResume(t *testing.T) {
	svc, samples, _ := newTestService()
	ctx := context.Background()

	smp := &Sample{Nature: "Tuf", RequestedTypes: []string{"CBR"}}
	if err := svc.CreateSample(ctx, smp); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	created, _ := svc.ListTests(ctx, smp.ID)
	testID := created[0].ID

	rejected, err := svc.RejectTest(ctx, testID)
	if err != nil {
		t.Fatalf("RejectTest failed: %v", err)
	}
	if rejected.Status != TestStatusRejected {
		t.Errorf("status = %q, want rejected", rejected.Status)
	}

	resumed, err := svc.ResumeTest(ctx, testID)
	if err != nil {
		t.Fatalf("ResumeTest failed: %v", err)
	}
	if resumed.Status != TestStatusPending {
		t.Errorf("status = %q, want pending", resumed.Status)
	}
	if resumed.Priority != PriorityUrgent {
		t.Errorf("priority = %q, want urgent", resumed.Priority)
	}
	if !resumed.Resumed {
		t.Error("resumed flag not set")
	}

	escalated := samples.samples[smp.ID]
	if escalated.Priority != PriorityUrgent {
		t.Errorf("sample priority = %q, want urgent", escalated.Priority)
	}

	// A pending test cannot be resumed again.
	if _, err := svc.ResumeTest(ctx, testID); err == nil {
		t.Error("expected error resuming a pending test")
	}
}

func TestCompleteTest_FinishesSample(t *testing.T) {
	svc, samples, tests := newTestService()
	ctx := context.Background()

	smp := &Sample{Nature: "Gres", RequestedTypes: []string{"AG", "Proctor"}}
	if err := svc.CreateSample(ctx, smp); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	created, _ := svc.ListTests(ctx, smp.ID)

	start := time.Date(2026, 4, 6, 0, 0, 0, 0, time.UTC)
	for _, tt := range created {
		if err := tests.MarkScheduled(ctx, tt.ID, start, start.AddDate(0, 0, tt.DurationDays)); err != nil {
			t.Fatalf("MarkScheduled failed: %v", err)
		}
	}

	if _, err := svc.CompleteTest(ctx, created[0].ID); err != nil {
		t.Fatalf("first CompleteTest failed: %v", err)
	}
	if samples.samples[smp.ID].Status == SampleStatusCompleted {
		t.Fatal("sample completed with one test still open")
	}

	if _, err := svc.CompleteTest(ctx, created[1].ID); err != nil {
		t.Fatalf("second CompleteTest failed: %v", err)
	}
	if got := samples.samples[smp.ID].Status; got != SampleStatusCompleted {
		t.Errorf("sample status = %q, want completed", got)
	}
}
