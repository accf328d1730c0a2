// Package schedule translates declarative recurrence specs into cron expressions.
package schedule

import (
	"errors"
	"fmt"

	"github.com/coreza/coreza/pkg/models"
	"github.com/robfig/cron/v3"
)

var (
	// ErrUnsupportedInterval is returned when the interval is not one of the
	// five recognized units.
	ErrUnsupportedInterval = errors.New("unsupported interval")

	// ErrFieldOutOfRange is returned when count, hour or minute falls outside
	// its allowed range.
	ErrFieldOutOfRange = errors.New("schedule field out of range")
)

// ValidationError wraps schedule validation failures with the offending
// spec, so callers can surface the exact input that was rejected.
type ValidationError struct {
	Spec models.ScheduleSpec
	Err  error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid schedule %+v: %v", e.Spec, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Translate converts a ScheduleSpec into a standard 5-field cron expression
// (minute hour day-of-month month day-of-week).
//
// The Weeks mapping ignores count and the Months mapping reuses count as the
// day of month. Both are carried over from the system this engine replaces;
// changing them would silently alter live schedules, so they stay until the
// intended semantics are confirmed.
func Translate(spec models.ScheduleSpec) (string, error) {
	if err := validate(spec); err != nil {
		return "", &ValidationError{Spec: spec, Err: err}
	}

	var expr string

	switch spec.Interval {
	case models.IntervalMinutes:
		expr = fmt.Sprintf("*/%d * * * *", spec.Count)
	case models.IntervalHours:
		expr = fmt.Sprintf("%d */%d * * *", spec.Minute, spec.Count)
	case models.IntervalDays:
		expr = fmt.Sprintf("%d %d */%d * *", spec.Minute, spec.Hour, spec.Count)
	case models.IntervalWeeks:
		expr = fmt.Sprintf("%d %d * * *", spec.Minute, spec.Hour)
	case models.IntervalMonths:
		expr = fmt.Sprintf("%d %d %d * *", spec.Minute, spec.Hour, spec.Count)
	default:
		return "", &ValidationError{Spec: spec, Err: ErrUnsupportedInterval}
	}

	// Fail closed on anything the trigger registry's parser would reject.
	if _, err := cron.ParseStandard(expr); err != nil {
		return "", &ValidationError{Spec: spec, Err: fmt.Errorf("derived expression %q: %w", expr, err)}
	}

	return expr, nil
}

func validate(spec models.ScheduleSpec) error {
	if !spec.Interval.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnsupportedInterval, spec.Interval)
	}

	if spec.Count < 1 {
		return fmt.Errorf("%w: count %d (must be >= 1)", ErrFieldOutOfRange, spec.Count)
	}

	if spec.Hour < 0 || spec.Hour > 23 {
		return fmt.Errorf("%w: hour %d", ErrFieldOutOfRange, spec.Hour)
	}

	if spec.Minute < 0 || spec.Minute > 59 {
		return fmt.Errorf("%w: minute %d", ErrFieldOutOfRange, spec.Minute)
	}

	return nil
}
