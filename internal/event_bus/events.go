package event_bus

import "time"

const (
	BookingCreatedEvent  EventType = "booking.created"
	BookingCanceledEvent EventType = "booking.canceled"
	PlanCreatedEvent     EventType = "plan.created"
	PlanExtendedEvent    EventType = "plan.extended"
)

type BookingCreated struct {
	BookingId int64
	CourtId   int64
	StartTime time.Time
	EndTime   time.Time
}

type BookingCanceled struct {
	BookingId int64
	CourtId   int64
	Reason    string
}

type PlanCreated struct {
	PlanId    int64
	CourtId   int64
	Sessions  int
	StartDate time.Time
	EndDate   time.Time
}

type PlanExtended struct {
	PlanId        int64
	OldBookingId  int64
	NewBookingId  int64
	NewOccurrence time.Time
}
