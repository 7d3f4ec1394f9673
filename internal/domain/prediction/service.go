package prediction

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/snertp/labsched/internal/domain/calendar"
	"github.com/snertp/labsched/internal/domain/capacity"
	"github.com/snertp/labsched/internal/domain/sample"
	"github.com/snertp/labsched/internal/platform/telemetry"
)

// SampleSource is the slice of sample persistence the estimator needs.
type SampleSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*sample.Sample, error)
	Update(ctx context.Context, s *sample.Sample) error
	QueueDepths(ctx context.Context) (map[string]int, error)
}

// TableLoader provides the effective capacity table.
type TableLoader interface {
	LoadTable(ctx context.Context) (capacity.Table, error)
}

// CalendarLoader provides a calendar snapshot covering a date range.
type CalendarLoader interface {
	LoadCalendar(ctx context.Context, rangeStart, rangeEnd time.Time) (calendar.Calendar, error)
}

// Service glues the pure estimator to live queue depths and calendars.
type Service struct {
	samples  SampleSource
	table    TableLoader
	calendar CalendarLoader
	now      func() time.Time
}

func NewService(samples SampleSource, table TableLoader, cal CalendarLoader) *Service {
	return &Service{samples: samples, table: table, calendar: cal, now: time.Now}
}

// EstimateForSample computes advisory dates for a registered sample
// without persisting anything.
func (s *Service) EstimateForSample(ctx context.Context, sampleID uuid.UUID) (*DatePrediction, error) {
	smp, err := s.samples.GetByID(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	pred, err := s.estimate(ctx, smp)
	if err != nil {
		return nil, err
	}
	telemetry.PredictionCounter(smp.Nature, "advisory")
	return pred, nil
}

// EstimateAndStore computes advisory dates and writes them back onto
// the sample record.
func (s *Service) EstimateAndStore(ctx context.Context, sampleID uuid.UUID) (*DatePrediction, error) {
	smp, err := s.samples.GetByID(ctx, sampleID)
	if err != nil {
		return nil, err
	}
	pred, err := s.estimate(ctx, smp)
	if err != nil {
		return nil, err
	}

	smp.DispatchDate = &pred.DispatchDate
	smp.ReturnDate = &pred.ReturnDate
	smp.Confidence = &pred.DispatchConfidence
	smp.ReturnConfidence = &pred.ReturnConfidence
	if err := s.samples.Update(ctx, smp); err != nil {
		return nil, fmt.Errorf("store prediction: %w", err)
	}

	telemetry.PredictionCounter(smp.Nature, "stored")
	log.Debug().
		Str("sample", smp.Code).
		Time("dispatch", pred.DispatchDate).
		Time("return", pred.ReturnDate).
		Int("confidence", pred.DispatchConfidence).
		Msg("prediction stored")
	return pred, nil
}

func (s *Service) estimate(ctx context.Context, smp *sample.Sample) (*DatePrediction, error) {
	depths, err := s.samples.QueueDepths(ctx)
	if err != nil {
		return nil, fmt.Errorf("queue depths: %w", err)
	}
	table, err := s.table.LoadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("load capacity table: %w", err)
	}

	today := calendar.DateOnly(s.now())
	cal, err := s.calendar.LoadCalendar(ctx, today, today)
	if err != nil {
		return nil, fmt.Errorf("load calendar: %w", err)
	}
	return Estimate(today, smp.RequestedTypes, depths, table, cal)
}
