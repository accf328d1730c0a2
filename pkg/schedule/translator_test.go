package schedule

import (
	"testing"

	"github.com/coreza/coreza/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name     string
		spec     models.ScheduleSpec
		expected string
	}{
		{
			name:     "every five minutes",
			spec:     models.ScheduleSpec{Interval: models.IntervalMinutes, Count: 5},
			expected: "*/5 * * * *",
		},
		{
			name:     "every two hours at half past",
			spec:     models.ScheduleSpec{Interval: models.IntervalHours, Count: 2, Minute: 30},
			expected: "30 */2 * * *",
		},
		{
			name:     "every three days at 9:15",
			spec:     models.ScheduleSpec{Interval: models.IntervalDays, Count: 3, Hour: 9, Minute: 15},
			expected: "15 9 */3 * *",
		},
		{
			name:     "weeks drops the count",
			spec:     models.ScheduleSpec{Interval: models.IntervalWeeks, Count: 2, Hour: 8, Minute: 45},
			expected: "45 8 * * *",
		},
		{
			name:     "months reuses count as day of month",
			spec:     models.ScheduleSpec{Interval: models.IntervalMonths, Count: 15, Hour: 6, Minute: 0},
			expected: "0 6 15 * *",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Translate(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, expr)
		})
	}
}

func TestTranslate_Validation(t *testing.T) {
	tests := []struct {
		name     string
		spec     models.ScheduleSpec
		expected error
	}{
		{
			name:     "unknown interval",
			spec:     models.ScheduleSpec{Interval: "Fortnights", Count: 1},
			expected: ErrUnsupportedInterval,
		},
		{
			name:     "empty interval",
			spec:     models.ScheduleSpec{Count: 1},
			expected: ErrUnsupportedInterval,
		},
		{
			name:     "zero count",
			spec:     models.ScheduleSpec{Interval: models.IntervalMinutes, Count: 0},
			expected: ErrFieldOutOfRange,
		},
		{
			name:     "hour too large",
			spec:     models.ScheduleSpec{Interval: models.IntervalDays, Count: 1, Hour: 24},
			expected: ErrFieldOutOfRange,
		},
		{
			name:     "negative minute",
			spec:     models.ScheduleSpec{Interval: models.IntervalHours, Count: 1, Minute: -1},
			expected: ErrFieldOutOfRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Translate(tt.spec)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.expected)

			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestTranslate_FailsClosedOnUnparseableExpression(t *testing.T) {
	// Months with count 32 produces a day-of-month the cron parser rejects,
	// demonstrating the second validation layer.
	_, err := Translate(models.ScheduleSpec{Interval: models.IntervalMonths, Count: 32})
	require.Error(t, err)

	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}
