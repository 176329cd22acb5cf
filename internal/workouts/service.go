package workouts

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

type Service struct {
	repo         Repo
	storeTimeout time.Duration
	metrics      *metrics.Manager
	now          func() time.Time
}

func NewService(repo Repo, storeTimeout time.Duration, metricsManager *metrics.Manager) *Service {
	return &Service{
		repo:         repo,
		storeTimeout: storeTimeout,
		metrics:      metricsManager,
		now:          time.Now,
	}
}

// SaveWorkout creates the record for (owner, date), or merges entries into it.
// An empty timeOfDay is replaced by the current wall-clock time.
func (s *Service) SaveWorkout(
	ctx context.Context,
	owner string,
	entries Entries,
	date string,
	timeOfDay string,
) (_ SaveStatus, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.save")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	if err := ValidateRecord(owner, entries, date); err != nil {
		s.countSave("invalid")
		return StatusUnknown, err
	}
	if timeOfDay == "" {
		timeOfDay = s.now().Format(TimeLayout)
	}
	span.SetAttributes(
		attribute.String("date", date),
		attribute.Int("entries", len(entries)),
	)

	var status SaveStatus
	err = s.withStore(ctx, "upsert", func(ctx context.Context) error {
		var upsertErr error
		status, upsertErr = s.repo.Upsert(ctx, owner, date, entries, timeOfDay)
		return upsertErr
	})
	if err != nil {
		s.countSave("failed")
		return StatusUnknown, fmt.Errorf("save workout: %w", err)
	}

	s.countSave(status.String())
	span.SetAttributes(attribute.String("status", status.String()))
	return status, nil
}

// GetWorkout returns the entries recorded on a single date, as a list of at most one element.
func (s *Service) GetWorkout(ctx context.Context, owner, date string) (_ []DayWorkout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.get")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if _, err := validateDate(date); err != nil {
		return nil, err
	}

	var record *Record
	err = s.withStore(ctx, "find_one", func(ctx context.Context) error {
		var findErr error
		record, findErr = s.repo.FindOne(ctx, owner, date)
		return findErr
	})
	if err != nil {
		return nil, fmt.Errorf("get workout: %w", err)
	}

	if record == nil {
		return []DayWorkout{}, nil
	}
	return []DayWorkout{{
		Entries: record.Entries,
		Time:    record.LastUpdatedTime,
	}}, nil
}

// GetRecentWorkouts returns the owner's records in the 7 days ending at throughDate, oldest first.
func (s *Service) GetRecentWorkouts(ctx context.Context, owner, throughDate string) (_ []Record, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.recent")
	defer func() {
		tracing.EndSpan(span, err)
	}()

	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	through, err := validateDate(throughDate)
	if err != nil {
		return nil, err
	}

	from, to := RecentWindow(through)
	span.SetAttributes(attribute.String("from", from), attribute.String("to", to))

	var records []Record
	err = s.withStore(ctx, "find_range", func(ctx context.Context) error {
		var findErr error
		records, findErr = s.repo.FindRange(ctx, owner, from, to)
		return findErr
	})
	if err != nil {
		return nil, fmt.Errorf("get recent workouts: %w", err)
	}

	if records == nil {
		records = []Record{}
	}
	slices.SortFunc(records, func(a, b Record) int {
		return strings.Compare(a.Date, b.Date)
	})
	return records, nil
}

// withStore runs op under the store timeout. A timeout is reported as ErrStoreUnavailable.
func (s *Service) withStore(ctx context.Context, operation string, op func(ctx context.Context) error) error {
	if s.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.storeTimeout)
		defer cancel()
	}

	start := time.Now()
	err := op(ctx)
	if s.metrics != nil {
		s.metrics.HistogramStoreDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}

	if err != nil && !errors.Is(err, ErrStoreUnavailable) && errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}

func (s *Service) countSave(outcome string) {
	if s.metrics != nil {
		s.metrics.CounterWorkoutSaves.WithLabelValues(outcome).Inc()
	}
}

// ValidateRecord checks a record the way SaveWorkout accepts it.
func ValidateRecord(owner string, entries Entries, date string) error {
	if err := validateOwner(owner); err != nil {
		return err
	}
	if len(entries) == 0 {
		return NewValidationError("entries", "required")
	}
	for name := range entries {
		if strings.TrimSpace(name) == "" {
			return NewValidationError("entries", "workout name must not be empty")
		}
	}
	_, err := validateDate(date)
	return err
}

func validateOwner(owner string) error {
	if strings.TrimSpace(owner) == "" {
		return NewValidationError("owner", "required")
	}
	return nil
}

func validateDate(date string) (time.Time, error) {
	if date == "" {
		return time.Time{}, NewValidationError("date", "required")
	}
	parsed, err := ParseDate(date)
	if err != nil {
		return time.Time{}, NewValidationError("date", "must be a YYYY-MM-DD calendar date")
	}
	return parsed, nil
}
