package models

import (
	"fmt"
	"strconv"
)

// Interval is the unit of a declarative recurrence.
type Interval string

const (
	IntervalMinutes Interval = "Minutes"
	IntervalHours   Interval = "Hours"
	IntervalDays    Interval = "Days"
	IntervalWeeks   Interval = "Weeks"
	IntervalMonths  Interval = "Months"
)

// Intervals lists every recognized recurrence unit.
var Intervals = []Interval{IntervalMinutes, IntervalHours, IntervalDays, IntervalWeeks, IntervalMonths}

// IsValid reports whether the interval is one of the five recognized units.
func (i Interval) IsValid() bool {
	for _, known := range Intervals {
		if i == known {
			return true
		}
	}

	return false
}

// ScheduleSpec is the declarative recurrence a Scheduler node carries. It is
// the source of truth for scheduling; the derived cron expression is never
// hand-edited.
type ScheduleSpec struct {
	Interval Interval `json:"interval" validate:"required"`
	Count    int      `json:"count"    validate:"min=1"`
	Hour     int      `json:"hour"     validate:"min=0,max=23"`
	Minute   int      `json:"minute"   validate:"min=0,max=59"`
}

// ScheduleSpecFromValues builds a ScheduleSpec from a Scheduler node's values
// mapping. Numeric fields arrive as JSON numbers or strings depending on how
// the workflow was authored; absent fields default to count=1, hour=0,
// minute=0.
func ScheduleSpecFromValues(values map[string]any) (ScheduleSpec, error) {
	interval, _ := values["interval"].(string)

	count, err := intField(values, "count", 1)
	if err != nil {
		return ScheduleSpec{}, err
	}

	hour, err := intField(values, "hour", 0)
	if err != nil {
		return ScheduleSpec{}, err
	}

	minute, err := intField(values, "minute", 0)
	if err != nil {
		return ScheduleSpec{}, err
	}

	return ScheduleSpec{
		Interval: Interval(interval),
		Count:    count,
		Hour:     hour,
		Minute:   minute,
	}, nil
}

func intField(values map[string]any, key string, def int) (int, error) {
	raw, ok := values[key]
	if !ok || raw == nil || raw == "" {
		return def, nil
	}

	switch v := raw.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("field %q must be an integer: %w", key, err)
		}

		return parsed, nil
	default:
		return 0, fmt.Errorf("field %q must be an integer, got %T", key, raw)
	}
}
