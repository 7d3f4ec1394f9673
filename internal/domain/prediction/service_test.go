package prediction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/snertp/labsched/internal/domain/calendar"
	"github.com/snertp/labsched/internal/domain/capacity"
	"github.com/snertp/labsched/internal/domain/sample"
)

type mockSampleSource struct {
	samples map[uuid.UUID]*sample.Sample
	depths  map[string]int
}

func (m *mockSampleSource) GetByID(_ context.Context, id uuid.UUID) (*sample.Sample, error) {
	s, ok := m.samples[id]
	if !ok {
		return nil, sample.ErrSampleNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockSampleSource) Update(_ context.Context, s *sample.Sample) error {
	if _, ok := m.samples[s.ID]; !ok {
		return sample.ErrSampleNotFound
	}
	cp := *s
	m.samples[s.ID] = &cp
	return nil
}

func (m *mockSampleSource) QueueDepths(_ context.Context) (map[string]int, error) {
	return m.depths, nil
}

type stubTable struct{}

func (stubTable) LoadTable(_ context.Context) (capacity.Table, error) {
	return capacity.DefaultTable(), nil
}

type stubCalendar struct{}

func (stubCalendar) LoadCalendar(_ context.Context, _, _ time.Time) (calendar.Calendar, error) {
	return calendar.NewCalendar(nil), nil
}

func TestEstimateAndStore_PersistsDates(t *testing.T) {
	id := uuid.New()
	src := &mockSampleSource{
		samples: map[uuid.UUID]*sample.Sample{
			id: {
				ID:             id,
				Code:           "G-0007/26",
				Nature:         "Gravier",
				RequestedTypes: []string{"AG", "Proctor"},
			},
		},
		depths: map[string]int{"AG": 12},
	}

	svc := NewService(src, stubTable{}, stubCalendar{})
	svc.now = func() time.Time { return date(2026, 1, 5) }

	pred, err := svc.EstimateAndStore(context.Background(), id)
	if err != nil {
		t.Fatalf("EstimateAndStore failed: %v", err)
	}

	stored := src.samples[id]
	if stored.DispatchDate == nil || !stored.DispatchDate.Equal(pred.DispatchDate) {
		t.Errorf("stored dispatch = %v, want %v", stored.DispatchDate, pred.DispatchDate)
	}
	if stored.ReturnDate == nil || !stored.ReturnDate.Equal(pred.ReturnDate) {
		t.Errorf("stored return = %v, want %v", stored.ReturnDate, pred.ReturnDate)
	}
	if stored.Confidence == nil || *stored.Confidence != 90 {
		t.Errorf("stored confidence = %v, want 90", stored.Confidence)
	}
	if stored.ReturnConfidence == nil || *stored.ReturnConfidence != 85 {
		t.Errorf("stored return confidence = %v, want 85", stored.ReturnConfidence)
	}
}

func TestEstimateForSample_DoesNotPersist(t *testing.T) {
	id := uuid.New()
	src := &mockSampleSource{
		samples: map[uuid.UUID]*sample.Sample{
			id: {ID: id, Code: "S-0001/26", Nature: "Sable", RequestedTypes: []string{"AG"}},
		},
		depths: map[string]int{},
	}

	svc := NewService(src, stubTable{}, stubCalendar{})
	svc.now = func() time.Time { return date(2026, 1, 5) }

	if _, err := svc.EstimateForSample(context.Background(), id); err != nil {
		t.Fatalf("EstimateForSample failed: %v", err)
	}
	if src.samples[id].DispatchDate != nil {
		t.Error("advisory estimate should not persist dates")
	}
}

func TestEstimateForSample_NotFound(t *testing.T) {
	svc := NewService(&mockSampleSource{samples: map[uuid.UUID]*sample.Sample{}}, stubTable{}, stubCalendar{})
	if _, err := svc.EstimateForSample(context.Background(), uuid.New()); err == nil {
		t.Error("expected not found error")
	}
}
