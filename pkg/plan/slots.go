package plan

import (
	"errors"
	"fmt"
	"time"

	"github.com/courtly/courtly/internal/utils"
	"github.com/courtly/courtly/pkg/booking"
)

// DefaultSessionDuration is used when a plan does not specify a session length.
const DefaultSessionDuration = 90 * time.Minute

// ErrInvalidStartTime is returned when a plan's time of day is not "HH:MM".
var ErrInvalidStartTime = errors.New("start time must be HH:MM")

// ParseStartTime parses a plan's "HH:MM" time of day.
func ParseStartTime(startTime string) (hour, minute int, err error) {
	parsed, err := time.Parse("15:04", startTime)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid start time %q: %w", startTime, ErrInvalidStartTime)
	}
	return parsed.Hour(), parsed.Minute(), nil
}

// GenerateSlots computes the occurrences of a weekly contract. The start date
// is advanced to the first date matching dayOfWeek, then stepped in fixed
// 7-day increments; one slot is emitted per step while the step's date is
// strictly before endDateExclusive. The exclusive boundary makes an N-week
// selection yield exactly N occurrences. Pure and deterministic; returns an
// empty list when no matching weekday precedes the boundary.
func GenerateSlots(startDate, endDateExclusive time.Time, dayOfWeek time.Weekday, startTime string, duration time.Duration) ([]booking.Slot, error) {
	hour, minute, err := ParseStartTime(startTime)
	if err != nil {
		return nil, err
	}
	if duration <= 0 {
		duration = DefaultSessionDuration
	}

	date := utils.Midnight(startDate)
	boundary := utils.Midnight(endDateExclusive)
	for date.Weekday() != dayOfWeek {
		date = date.AddDate(0, 0, 1)
	}

	slots := make([]booking.Slot, 0, 8)
	for date.Before(boundary) {
		start := time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location())
		slots = append(slots, booking.Slot{Start: start, End: start.Add(duration)})
		date = date.AddDate(0, 0, 7)
	}
	return slots, nil
}

// NextWeekday returns the first date matching dayOfWeek within maxDays after
// from (exclusive of from itself), or false when none falls in the window.
// Incident extensions use it to find the replacement occurrence just past the
// plan's end date.
func NextWeekday(from time.Time, dayOfWeek time.Weekday, maxDays int) (time.Time, bool) {
	date := utils.Midnight(from)
	for i := 1; i <= maxDays; i++ {
		candidate := date.AddDate(0, 0, i)
		if candidate.Weekday() == dayOfWeek {
			return candidate, true
		}
	}
	return time.Time{}, false
}
