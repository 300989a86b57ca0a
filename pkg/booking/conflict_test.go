package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotAt(day int, hour, minute int, duration time.Duration) Slot {
	start := time.Date(2024, time.June, day, hour, minute, 0, 0, time.UTC)
	return Slot{Start: start, End: start.Add(duration)}
}

func bookingAt(day int, hour, minute int, duration time.Duration) Booking {
	s := slotAt(day, hour, minute, duration)
	return Booking{CourtId: 1, StartTime: s.Start, EndTime: s.End, PaymentStatus: StatusPending}
}

func TestFindConflict(t *testing.T) {
	tests := []struct {
		name     string
		slots    []Slot
		existing []Booking
		wantAt   *time.Time
	}{
		{
			name:     "back to back slots do not conflict",
			slots:    []Slot{slotAt(3, 11, 30, 90*time.Minute)},
			existing: []Booking{bookingAt(3, 10, 0, 90*time.Minute)},
			wantAt:   nil,
		},
		{
			name:     "partial overlap conflicts",
			slots:    []Slot{slotAt(3, 11, 0, time.Hour)},
			existing: []Booking{bookingAt(3, 10, 0, 90*time.Minute)},
			wantAt:   ptrTime(time.Date(2024, time.June, 3, 11, 0, 0, 0, time.UTC)),
		},
		{
			name:     "containment conflicts",
			slots:    []Slot{slotAt(3, 10, 30, 30*time.Minute)},
			existing: []Booking{bookingAt(3, 10, 0, 2*time.Hour)},
			wantAt:   ptrTime(time.Date(2024, time.June, 3, 10, 30, 0, 0, time.UTC)),
		},
		{
			name:     "different day does not conflict",
			slots:    []Slot{slotAt(4, 10, 0, time.Hour)},
			existing: []Booking{bookingAt(3, 10, 0, time.Hour)},
			wantAt:   nil,
		},
		{
			name: "first conflicting slot is reported",
			slots: []Slot{
				slotAt(3, 8, 0, time.Hour),
				slotAt(3, 10, 30, time.Hour),
				slotAt(3, 14, 0, time.Hour),
			},
			existing: []Booking{
				bookingAt(3, 10, 0, 90*time.Minute),
				bookingAt(3, 14, 0, time.Hour),
			},
			wantAt: ptrTime(time.Date(2024, time.June, 3, 10, 30, 0, 0, time.UTC)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conflict := FindConflict(1, tt.slots, tt.existing)
			if tt.wantAt == nil {
				assert.Nil(t, conflict)
			} else {
				require.NotNil(t, conflict)
				assert.True(t, conflict.At.Equal(*tt.wantAt))
				assert.Equal(t, int64(1), conflict.CourtId)
			}
		})
	}
}

func TestConflictError_Message(t *testing.T) {
	err := &ConflictError{CourtId: 2, At: time.Date(2024, time.June, 3, 18, 0, 0, 0, time.UTC)}
	assert.Equal(t, "court already booked on 2024-06-03 18:00", err.Error())
}

func TestConflictDetector_ExcludesPlan(t *testing.T) {
	repo := NewRepositoryStub()
	planId := int64(7)
	b := bookingAt(3, 18, 0, 90*time.Minute)
	b.OrgId = 1
	b.RecurringPlanId = &planId
	_, err := repo.StoreBooking(context.Background(), b)
	require.NoError(t, err)

	detector := NewConflictDetector(repo)
	slots := []Slot{slotAt(3, 18, 0, 90*time.Minute)}

	err = detector.CheckConflicts(context.Background(), 1, slots, nil)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)

	// The same slots pass when the plan's own bookings are excluded.
	require.NoError(t, detector.CheckConflicts(context.Background(), 1, slots, &planId))
}

func TestConflictDetector_IgnoresCanceled(t *testing.T) {
	repo := NewRepositoryStub()
	b := bookingAt(3, 18, 0, 90*time.Minute)
	b.OrgId = 1
	stored, err := repo.StoreBooking(context.Background(), b)
	require.NoError(t, err)
	require.NoError(t, repo.MarkCanceled(context.Background(), 1, stored.Id, "rain"))

	detector := NewConflictDetector(repo)
	err = detector.CheckConflicts(context.Background(), 1, []Slot{slotAt(3, 18, 0, 90*time.Minute)}, nil)
	assert.NoError(t, err)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
