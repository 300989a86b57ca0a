package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestGenerateSlots(t *testing.T) {
	tests := []struct {
		name       string
		startDate  time.Time
		endDate    time.Time
		dayOfWeek  time.Weekday
		startTime  string
		duration   time.Duration
		wantStarts []time.Time
	}{
		{
			// Jan 2024: Mondays fall on the 1st, 8th, 15th, 22nd, and 29th.
			// The exclusive boundary on the 29th drops the last one.
			name:      "four Mondays in January",
			startDate: date(2024, time.January, 1),
			endDate:   date(2024, time.January, 29),
			dayOfWeek: time.Monday,
			startTime: "18:00",
			duration:  90 * time.Minute,
			wantStarts: []time.Time{
				time.Date(2024, time.January, 1, 18, 0, 0, 0, time.UTC),
				time.Date(2024, time.January, 8, 18, 0, 0, 0, time.UTC),
				time.Date(2024, time.January, 15, 18, 0, 0, 0, time.UTC),
				time.Date(2024, time.January, 22, 18, 0, 0, 0, time.UTC),
			},
		},
		{
			name:      "start date advanced to first matching weekday",
			startDate: date(2024, time.January, 2), // a Tuesday
			endDate:   date(2024, time.January, 16),
			dayOfWeek: time.Friday,
			startTime: "10:30",
			duration:  time.Hour,
			wantStarts: []time.Time{
				time.Date(2024, time.January, 5, 10, 30, 0, 0, time.UTC),
				time.Date(2024, time.January, 12, 10, 30, 0, 0, time.UTC),
			},
		},
		{
			name:       "no matching weekday before boundary",
			startDate:  date(2024, time.January, 2), // Tuesday
			endDate:    date(2024, time.January, 5), // Friday, exclusive
			dayOfWeek:  time.Saturday,
			startTime:  "09:00",
			duration:   time.Hour,
			wantStarts: nil,
		},
		{
			name:       "empty range",
			startDate:  date(2024, time.March, 4),
			endDate:    date(2024, time.March, 4),
			dayOfWeek:  time.Monday,
			startTime:  "12:00",
			duration:   time.Hour,
			wantStarts: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots, err := GenerateSlots(tt.startDate, tt.endDate, tt.dayOfWeek, tt.startTime, tt.duration)
			require.NoError(t, err)
			require.Len(t, slots, len(tt.wantStarts))
			for i, want := range tt.wantStarts {
				assert.True(t, slots[i].Start.Equal(want), "slot %d: got %v, want %v", i, slots[i].Start, want)
				assert.True(t, slots[i].End.Equal(want.Add(tt.duration)), "slot %d end", i)
			}
		})
	}
}

func TestGenerateSlots_DefaultDuration(t *testing.T) {
	slots, err := GenerateSlots(date(2024, time.January, 1), date(2024, time.January, 8), time.Monday, "18:00", 0)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, DefaultSessionDuration, slots[0].End.Sub(slots[0].Start))
}

func TestGenerateSlots_InvalidStartTime(t *testing.T) {
	_, err := GenerateSlots(date(2024, time.January, 1), date(2024, time.January, 29), time.Monday, "6pm", time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStartTime)
}

func TestNextWeekday(t *testing.T) {
	// 2024-01-22 is a Monday.
	from := date(2024, time.January, 22)

	next, ok := NextWeekday(from, time.Monday, 14)
	require.True(t, ok)
	assert.True(t, next.Equal(date(2024, time.January, 29)), "same weekday lands one week later, not on the from date")

	next, ok = NextWeekday(from, time.Wednesday, 14)
	require.True(t, ok)
	assert.True(t, next.Equal(date(2024, time.January, 24)))

	_, ok = NextWeekday(from, time.Friday, 3)
	assert.False(t, ok, "Friday is 4 days out, beyond the 3-day window")
}

func TestParseStartTime(t *testing.T) {
	hour, minute, err := ParseStartTime("18:30")
	require.NoError(t, err)
	assert.Equal(t, 18, hour)
	assert.Equal(t, 30, minute)

	_, _, err = ParseStartTime("25:00")
	assert.Error(t, err)
}
