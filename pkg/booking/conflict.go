package booking

import (
	"context"
	"fmt"
	"time"
)

// Slot is one concrete time interval, half-open: [Start, End).
type Slot struct {
	Start time.Time
	End   time.Time
}

// ConflictError reports the first occurrence that overlaps an existing
// reservation on the same court.
type ConflictError struct {
	CourtId int64
	At      time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("court already booked on %s", e.At.Format("2006-01-02 15:04"))
}

// overlaps tests half-open interval overlap. Back-to-back intervals
// (end == start) do not overlap.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// FindConflict tests each slot in order against the existing bookings and
// returns the first overlap found, or nil. Canceled bookings must already be
// filtered out by the caller.
func FindConflict(courtId int64, slots []Slot, existing []Booking) *ConflictError {
	for _, slot := range slots {
		for _, b := range existing {
			if overlaps(slot.Start, slot.End, b.StartTime, b.EndTime) {
				return &ConflictError{CourtId: courtId, At: slot.Start}
			}
		}
	}
	return nil
}

// ConflictDetector validates candidate slots against a court's timeline.
type ConflictDetector struct {
	repo Repository
}

func NewConflictDetector(repo Repository) *ConflictDetector {
	return &ConflictDetector{repo: repo}
}

// CheckConflicts fetches all non-canceled bookings on the court intersecting
// the candidate window and returns a *ConflictError on the first overlapping
// slot. excludePlanId removes a plan's own bookings from the candidate set,
// which a plan needs when validating its own reschedule.
func (d *ConflictDetector) CheckConflicts(ctx context.Context, courtId int64, slots []Slot, excludePlanId *int64) error {
	if len(slots) == 0 {
		return nil
	}

	windowStart := slots[0].Start
	windowEnd := slots[0].End
	for _, s := range slots[1:] {
		if s.Start.Before(windowStart) {
			windowStart = s.Start
		}
		if s.End.After(windowEnd) {
			windowEnd = s.End
		}
	}

	existing, err := d.repo.ListForCourtBetween(ctx, courtId, windowStart, windowEnd, excludePlanId)
	if err != nil {
		return fmt.Errorf("failed to fetch bookings for conflict check: %w", err)
	}

	if conflict := FindConflict(courtId, slots, existing); conflict != nil {
		return conflict
	}
	return nil
}
